package provision

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/danmuck/provisionctl/internal/tools"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config wires a Provisioner.
type Config struct {
	Runner      tools.CommandRunner
	Environment Environment
	// Logger defaults to the global zerolog logger.
	Logger *zerolog.Logger
}

// Provisioner runs plans sequentially against one execution host.
type Provisioner struct {
	runner tools.CommandRunner
	env    Environment
	logger zerolog.Logger
}

func New(cfg Config) *Provisioner {
	runner := cfg.Runner
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Provisioner{
		runner: runner,
		env:    cfg.Environment,
		logger: logger.With().Str("component", "provision").Logger(),
	}
}

// Ensure makes one requirement present: Skipped when the probe already
// succeeds, otherwise install, re-probe, hook.
func (p *Provisioner) Ensure(ctx context.Context, req Requirement) Outcome {
	return p.ensure(ctx, req, nil)
}

// Run ensures each requirement in order and stops at the first failure.
// Bin dirs of satisfied requirements are visible to later ones.
func (p *Provisioner) Run(ctx context.Context, plan Plan) Report {
	var report Report
	var visible []string
	for _, req := range plan.Requirements {
		outcome := p.ensure(ctx, req, visible)
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Status == StatusFailed {
			p.logger.Error().Str("tool", req.Name).Err(outcome.Err).Msg("provision.run halted")
			return report
		}
		visible = appendUnique(visible, req.BinDirs...)
		report.PathAdditions = appendUnique(report.PathAdditions, p.missingFromPath(req, outcome)...)
	}
	p.logger.Info().Int("requirements", len(plan.Requirements)).Msg("provision.run complete")
	return report
}

// missingFromPath returns the bin dirs the operator still has to add to PATH.
// Installed requirements report every bin dir; skipped ones report the bin dir
// their probe found them in, so a rerun keeps printing the same instructions.
func (p *Provisioner) missingFromPath(req Requirement, outcome Outcome) []string {
	var dirs []string
	switch outcome.Status {
	case StatusInstalled:
		dirs = req.BinDirs
	case StatusSkipped:
		if !filepath.IsAbs(outcome.Path) {
			return nil
		}
		found := filepath.Dir(outcome.Path)
		for _, dir := range req.BinDirs {
			if filepath.Clean(dir) == found {
				dirs = []string{dir}
				break
			}
		}
	}
	var out []string
	for _, dir := range dirs {
		if !p.env.OnPath(dir) {
			out = append(out, dir)
		}
	}
	return out
}

func (p *Provisioner) ensure(ctx context.Context, req Requirement, visible []string) Outcome {
	logger := p.logger.With().Str("tool", req.Name).Logger()
	if err := req.Validate(); err != nil {
		return failed(req.Name, err.Error(), err)
	}

	extra := appendUnique(append([]string(nil), req.BinDirs...), visible...)
	probeEnv := ProbeEnv{
		Runner:     p.runner,
		SearchPath: append(append([]string(nil), p.env.Path...), extra...),
		ExtraPath:  extra,
	}

	location, found, err := req.Probe.Check(ctx, probeEnv)
	if err != nil {
		return failed(req.Name, "presence check could not run", err)
	}
	if found {
		logger.Info().Str("path", location).Msg("provision.ensure skipped")
		if filepath.IsAbs(location) && !p.env.OnPath(filepath.Dir(location)) {
			logger.Warn().Str("path", location).Msg("provision.ensure present outside PATH")
		}
		return Outcome{Name: req.Name, Status: StatusSkipped, Path: location}
	}

	if len(req.Install) == 0 {
		err := fmt.Errorf("%w: %s not found and no install steps defined", ErrPostInstallVerificationFailed, req.Name)
		return failed(req.Name, "tool not found and no install action", err)
	}

	logger.Info().Str("probe", req.Probe.Describe()).Int("steps", len(req.Install)).Msg("provision.ensure installing")
	for _, step := range req.Install {
		if outcome, ok := p.runStep(ctx, logger, req.Name, step, extra); !ok {
			return outcome
		}
	}

	location, found, err = req.Probe.Check(ctx, probeEnv)
	if err != nil {
		return failed(req.Name, "presence check could not run", err)
	}
	if !found {
		err := fmt.Errorf("%w: %s still not detected by %s", ErrPostInstallVerificationFailed, req.Name, req.Probe.Describe())
		return failed(req.Name, "tool still not detected after install", err)
	}

	for _, step := range req.PostInstall {
		if outcome, ok := p.runStep(ctx, logger, req.Name, step, extra); !ok {
			return outcome
		}
	}

	logger.Info().Str("path", location).Msg("provision.ensure installed")
	return Outcome{Name: req.Name, Status: StatusInstalled, Path: location}
}

func (p *Provisioner) runStep(ctx context.Context, logger zerolog.Logger, name string, step Step, extra []string) (Outcome, bool) {
	logger.Info().Str("cmd", step.String()).Msg("provision.install exec")
	res, err := p.runner.Run(ctx, step.command(extra))
	if err == nil {
		return Outcome{}, true
	}

	reason := fmt.Sprintf("install command exited with status %d", res.ExitCode)
	if errors.Is(err, tools.ErrTransport) {
		reason = "install command could not reach host"
	} else if ctx.Err() != nil {
		reason = "install command interrupted"
	}
	wrapped := fmt.Errorf(
		"%w: cmd=%s args=%q exit=%d stdout=%q stderr=%q: %v",
		ErrInstallCommandFailed,
		step.Name,
		strings.Join(step.Args, " "),
		res.ExitCode,
		strings.TrimSpace(string(res.Stdout)),
		strings.TrimSpace(string(res.Stderr)),
		err,
	)
	return failed(name, reason, wrapped), false
}

func failed(name string, reason string, err error) Outcome {
	return Outcome{Name: name, Status: StatusFailed, Reason: reason, Err: err}
}

func appendUnique(dst []string, items ...string) []string {
	for _, item := range items {
		if item == "" {
			continue
		}
		dup := false
		for _, existing := range dst {
			if existing == item {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, item)
		}
	}
	return dst
}
