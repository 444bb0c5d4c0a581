package provision

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/danmuck/provisionctl/internal/tools"
)

func TestPathProbeSearchesExtraDirs(t *testing.T) {
	dir := t.TempDir()
	want := writeExecutable(t, dir, "flutter")

	got, found, err := PathProbe{Binary: "flutter"}.Check(context.Background(), ProbeEnv{SearchPath: []string{"/nonexistent", dir}})
	if err != nil || !found {
		t.Fatalf("expected found, got found=%v err=%v", found, err)
	}
	if got != want {
		t.Fatalf("unexpected location: %q", got)
	}

	_, found, err = PathProbe{Binary: "flutter"}.Check(context.Background(), ProbeEnv{SearchPath: []string{"/nonexistent"}})
	if err != nil || found {
		t.Fatalf("expected not found without error, got found=%v err=%v", found, err)
	}
}

func TestCommandProbeUsesExitStatus(t *testing.T) {
	runner := &fakeRunner{handlers: map[string]func(tools.Command) (tools.Result, error){
		"docker": func(tools.Command) (tools.Result, error) {
			return tools.Result{Stdout: []byte("sha256:abc\nmore\n")}, nil
		},
		"python3": exitsWith(1),
	}}
	env := ProbeEnv{Runner: runner, ExtraPath: []string{"/opt/bin"}}

	loc, found, err := CommandProbe{Command: Step{Name: "docker", Args: []string{"image", "inspect", "neo4j:5"}}}.Check(context.Background(), env)
	if err != nil || !found {
		t.Fatalf("expected found, got found=%v err=%v", found, err)
	}
	if loc != "sha256:abc" {
		t.Fatalf("unexpected location: %q", loc)
	}

	_, found, err = CommandProbe{Command: Step{Name: "python3", Args: []string{"-c", "import faiss"}}}.Check(context.Background(), env)
	if err != nil || found {
		t.Fatalf("expected absent without error, got found=%v err=%v", found, err)
	}

	if runner.commands[0].ExtraPath[0] != "/opt/bin" {
		t.Fatalf("expected extra path forwarded, got %+v", runner.commands[0].ExtraPath)
	}
}

func TestCommandProbeTransportFailureIsError(t *testing.T) {
	runner := &fakeRunner{handlers: map[string]func(tools.Command) (tools.Result, error){
		"true": func(tools.Command) (tools.Result, error) {
			return tools.Result{ExitCode: 255}, fmt.Errorf("%w: dial tcp: refused", tools.ErrTransport)
		},
	}}
	_, _, err := CommandProbe{Command: Step{Name: "true"}}.Check(context.Background(), ProbeEnv{Runner: runner})
	if !errors.Is(err, ErrProbeFailed) {
		t.Fatalf("expected ErrProbeFailed, got %v", err)
	}

	_, _, err = CommandProbe{Command: Step{Name: "true"}}.Check(context.Background(), ProbeEnv{})
	if !errors.Is(err, ErrProbeFailed) {
		t.Fatalf("expected ErrProbeFailed without runner, got %v", err)
	}
}

func TestEnsureProbeErrorFailsRequirement(t *testing.T) {
	runner := &fakeRunner{handlers: map[string]func(tools.Command) (tools.Result, error){
		"docker": func(tools.Command) (tools.Result, error) {
			return tools.Result{ExitCode: 255}, tools.ErrTransport
		},
	}}
	outcome := New(Config{Runner: runner}).Ensure(context.Background(), Requirement{
		Name:    "neo4j-image",
		Probe:   CommandProbe{Command: Step{Name: "docker", Args: []string{"image", "inspect", "neo4j:5"}}},
		Install: []Step{{Name: "docker", Args: []string{"pull", "neo4j:5"}}},
	})
	if outcome.Status != StatusFailed || !errors.Is(outcome.Err, ErrProbeFailed) {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(runner.commands) != 1 {
		t.Fatalf("expected install not attempted, got %v", runner.lines())
	}
}

func TestProbeDescribe(t *testing.T) {
	if got := (PathProbe{Binary: "go"}).Describe(); got != "path:go" {
		t.Fatalf("unexpected describe: %q", got)
	}
	got := CommandProbe{Command: Step{Name: "docker", Args: []string{"image", "inspect", "neo4j:5"}}}.Describe()
	if got != "command:docker image inspect neo4j:5" {
		t.Fatalf("unexpected describe: %q", got)
	}
}
