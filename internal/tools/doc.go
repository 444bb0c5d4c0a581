// Package tools provides the external process boundary used by the provisioner.
//
// Ownership boundary:
// - command execution (local exec and remote ssh)
//
// - PATH search primitives shared by presence probes and runners
//
// Runners never modify the calling process environment. PATH additions for a
// child process travel with the Command value.
package tools
