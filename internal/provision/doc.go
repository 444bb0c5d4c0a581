// Package provision owns presence checks and ordered installation of external
// toolchains.
//
// Ownership boundary:
// - requirement and plan shapes
//
// - ensure (probe -> install -> re-probe -> hook) per requirement
//
// - fail-fast plan execution and the final report
//
// The provisioner never mutates the process environment. PATH additions are
// passed to child processes per command and returned to the caller as
// instructions.
package provision
