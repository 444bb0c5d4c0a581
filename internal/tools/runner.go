package tools

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
)

// ErrTransport marks failures to reach the execution host, as opposed to a
// command that ran and exited non-zero.
var ErrTransport = errors.New("tools: transport failure")

// ExitNotFound is the exit status reported when the executable cannot be resolved.
const ExitNotFound int32 = 127

// Command is one external process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// ExtraPath is appended to the child's PATH for this invocation only.
	ExtraPath []string
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result carries captured output and exit status of one command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int32
}

// CommandRunner abstracts command execution for probes and install steps.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner executes commands on the local host.
type ExecRunner struct{}

// Run resolves the executable against PATH plus cmd.ExtraPath and waits for it.
// A non-nil error always comes with a non-zero ExitCode.
func (r ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	name := c.Name
	env := os.Environ()
	if len(c.ExtraPath) > 0 {
		dirs := append(SplitPath(EnvValue(env, "PATH")), c.ExtraPath...)
		env = WithEnv(env, "PATH", JoinPath(dirs))
		if resolved, err := LookPath(c.Name, dirs); err == nil {
			name = resolved
		}
	}

	cmd := exec.CommandContext(ctx, name, c.Args...)
	cmd.Env = env
	cmd.Dir = c.Dir
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = int32(exitErr.ExitCode())
		if res.ExitCode == 0 {
			res.ExitCode = -1
		}
		return res, err
	}

	res.ExitCode = 1
	var execErr *exec.Error
	if errors.As(err, &execErr) || errors.Is(err, os.ErrNotExist) {
		res.ExitCode = ExitNotFound
	}
	return res, err
}
