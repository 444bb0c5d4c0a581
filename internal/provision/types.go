package provision

import (
	"fmt"
	"strings"

	"github.com/danmuck/provisionctl/internal/tools"
)

type Status string

const (
	StatusSkipped   Status = "skipped"
	StatusInstalled Status = "installed"
	StatusFailed    Status = "failed"
)

// Step is one external command of an install action or post-install hook.
type Step struct {
	Name string
	Args []string
	Dir  string
}

func (s Step) String() string {
	return s.command(nil).String()
}

func (s Step) command(extraPath []string) tools.Command {
	return tools.Command{Name: s.Name, Args: s.Args, Dir: s.Dir, ExtraPath: extraPath}
}

// Requirement is one external tool the environment must provide.
type Requirement struct {
	Name        string
	Probe       Probe
	Install     []Step
	PostInstall []Step
	// BinDirs are searched by path probes and reported as PATH additions once installed.
	BinDirs []string
}

// Validate checks the fields ensure relies on.
func (r Requirement) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidRequirement)
	}
	if r.Probe == nil {
		return fmt.Errorf("%w: %s: missing presence check", ErrInvalidRequirement, r.Name)
	}
	for i, step := range append(append([]Step{}, r.Install...), r.PostInstall...) {
		if strings.TrimSpace(step.Name) == "" {
			return fmt.Errorf("%w: %s: step[%d] missing command", ErrInvalidRequirement, r.Name, i)
		}
	}
	return nil
}

// Plan is an ordered list of requirements; each may assume earlier ones succeeded.
type Plan struct {
	Requirements []Requirement
}

// NewPlan validates every requirement and rejects duplicate names.
func NewPlan(reqs ...Requirement) (Plan, error) {
	seen := make(map[string]struct{}, len(reqs))
	for _, req := range reqs {
		if err := req.Validate(); err != nil {
			return Plan{}, err
		}
		if _, ok := seen[req.Name]; ok {
			return Plan{}, fmt.Errorf("%w: duplicate name %q", ErrInvalidRequirement, req.Name)
		}
		seen[req.Name] = struct{}{}
	}
	return Plan{Requirements: reqs}, nil
}

// Outcome is the result of ensuring one requirement.
type Outcome struct {
	Name   string
	Status Status
	// Path is the location reported by the presence check, when it has one.
	Path   string
	Reason string
	Err    error
}

func (o Outcome) String() string {
	switch {
	case o.Reason != "":
		return fmt.Sprintf("%s: %s (%s)", o.Name, o.Status, o.Reason)
	case o.Path != "":
		return fmt.Sprintf("%s: %s (%s)", o.Name, o.Status, o.Path)
	default:
		return fmt.Sprintf("%s: %s", o.Name, o.Status)
	}
}
