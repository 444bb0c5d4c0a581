package provision

import "errors"

var (
	ErrInvalidRequirement            = errors.New("provision: invalid requirement")
	ErrProbeFailed                   = errors.New("provision: presence check could not run")
	ErrInstallCommandFailed          = errors.New("provision: install command failed")
	ErrPostInstallVerificationFailed = errors.New("provision: post-install verification failed")
)
