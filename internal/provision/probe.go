package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/provisionctl/internal/tools"
)

// ProbeEnv is what a presence check may look at. Probes must not change anything.
type ProbeEnv struct {
	Runner tools.CommandRunner
	// SearchPath is the snapshot PATH followed by ExtraPath.
	SearchPath []string
	// ExtraPath holds bin dirs of this requirement and of earlier satisfied ones.
	ExtraPath []string
}

// Probe is a side-effect-free presence check. A missing tool is reported as
// found=false with a nil error; errors mean the check itself could not run.
type Probe interface {
	Check(ctx context.Context, env ProbeEnv) (location string, found bool, err error)
	Describe() string
}

// PathProbe looks for an executable on the search path without spawning anything.
type PathProbe struct {
	Binary string
}

func (p PathProbe) Describe() string {
	return "path:" + p.Binary
}

func (p PathProbe) Check(_ context.Context, env ProbeEnv) (string, bool, error) {
	path, err := tools.LookPath(p.Binary, env.SearchPath)
	if errors.Is(err, tools.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return path, true, nil
}

// CommandProbe treats exit status 0 of a read-only command as presence.
// The first line of stdout, if any, becomes the reported location.
type CommandProbe struct {
	Command Step
}

func (p CommandProbe) Describe() string {
	return "command:" + p.Command.String()
}

func (p CommandProbe) Check(ctx context.Context, env ProbeEnv) (string, bool, error) {
	if env.Runner == nil {
		return "", false, fmt.Errorf("%w: command probe without runner", ErrProbeFailed)
	}
	res, err := env.Runner.Run(ctx, p.Command.command(env.ExtraPath))
	if err != nil {
		if errors.Is(err, tools.ErrTransport) || ctx.Err() != nil {
			return "", false, fmt.Errorf("%w: %s: %v", ErrProbeFailed, p.Command.String(), err)
		}
		return "", false, nil
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(res.Stdout)), "\n")
	return strings.TrimSpace(line), true, nil
}
