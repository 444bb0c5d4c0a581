package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/provisionctl/internal/config"
	"github.com/danmuck/provisionctl/internal/logging"
	"github.com/danmuck/provisionctl/internal/observability"
	"github.com/danmuck/provisionctl/internal/provision"
	"github.com/danmuck/provisionctl/internal/tools"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	logging.ConfigureRuntime()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Environ(), os.Stdout, nil)
	stop()
	os.Exit(code)
}

// run executes one provisioning pass. A nil runner selects the one named by
// the plan file. Only PATH instructions are written to stdout.
func run(ctx context.Context, environ []string, stdout io.Writer, runner tools.CommandRunner) int {
	env := provision.ReadEnvironment(environ)
	logger := log.With().Str("run_id", uuid.NewString()).Logger()

	file, source, err := config.Resolve(func(key string) string {
		v, _ := env.Lookup(key)
		return v
	})
	if err != nil {
		logger.Error().Err(err).Msg("provisionctl config failed")
		return exitConfig
	}
	plan, err := file.Plan(env)
	if err != nil {
		logger.Error().Err(err).Str("source", source).Msg("provisionctl plan invalid")
		return exitConfig
	}
	if runner == nil {
		runner, err = file.Runner.Runner(env)
		if err != nil {
			logger.Error().Err(err).Str("source", source).Msg("provisionctl runner invalid")
			return exitConfig
		}
	}
	logger.Info().
		Str("source", source).
		Str("runner", file.Runner.Kind).
		Int("requirements", len(plan.Requirements)).
		Msg("provisionctl plan loaded")

	started := time.Now()
	report := provision.New(provision.Config{
		Runner:      runner,
		Environment: env,
		Logger:      &logger,
	}).Run(ctx, plan)

	for _, outcome := range report.Outcomes {
		event := logger.Info()
		if outcome.Status == provision.StatusFailed {
			event = logger.Error().Err(outcome.Err)
		}
		event.Str("tool", outcome.Name).Str("status", string(outcome.Status)).Msg(outcome.String())
	}
	for _, line := range report.Instructions() {
		fmt.Fprintln(stdout, line)
	}
	if path, ok := env.Lookup(observability.EnvMetricsFile); ok && path != "" {
		metrics := observability.NewRunMetrics()
		metrics.Record(report, time.Since(started), time.Now())
		if err := metrics.WriteTextfile(path); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("provisionctl metrics write failed")
		}
	}

	if err := report.Err(); err != nil {
		logger.Error().
			Err(err).
			Int("attempted", len(report.Outcomes)).
			Int("requirements", len(plan.Requirements)).
			Msg("provisionctl failed")
		return exitFailed
	}
	logger.Info().
		Int("skipped", report.Count(provision.StatusSkipped)).
		Int("installed", report.Count(provision.StatusInstalled)).
		Msg("provisionctl done")
	return exitOK
}
