package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/provisionctl/internal/provision"
	"github.com/danmuck/provisionctl/internal/tools"
)

// Plan converts the file into an ordered provisioning plan, expanding
// $VAR references against the environment snapshot.
func (f File) Plan(env provision.Environment) (provision.Plan, error) {
	reqs := make([]provision.Requirement, 0, len(f.Tools))
	for i, tool := range f.Tools {
		req, err := tool.requirement(env)
		if err != nil {
			return provision.Plan{}, fmt.Errorf("tool[%d] %s: %w", i, tool.Name, err)
		}
		reqs = append(reqs, req)
	}
	return provision.NewPlan(reqs...)
}

// Runner builds the command runner selected by the file.
func (r RunnerConfig) Runner(env provision.Environment) (tools.CommandRunner, error) {
	switch r.Kind {
	case RunnerLocal, "":
		return tools.ExecRunner{}, nil
	case RunnerSSH:
		var timeout time.Duration
		if raw := strings.TrimSpace(r.SSHTimeout); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: runner ssh_timeout: %v", ErrInvalidConfig, err)
			}
			timeout = d
		}
		key, err := expandPath(env, "ssh_key", strings.TrimSpace(r.SSHKey))
		if err != nil {
			return nil, err
		}
		known, err := expandPath(env, "ssh_known_hosts", strings.TrimSpace(r.SSHKnownHosts))
		if err != nil {
			return nil, err
		}
		return tools.SSHRunner{
			Host:                        strings.TrimSpace(r.SSHHost),
			Port:                        strings.TrimSpace(r.SSHPort),
			User:                        strings.TrimSpace(r.SSHUser),
			KeyPath:                     key,
			KnownHostsPath:              known,
			InsecureSkipHostKeyChecking: r.SSHInsecure,
			Timeout:                     timeout,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown runner kind %q", ErrInvalidConfig, r.Kind)
	}
}

func (t ToolConfig) requirement(env provision.Environment) (provision.Requirement, error) {
	binDirs := make([]string, 0, len(t.BinDirs))
	for _, dir := range t.BinDirs {
		expanded, err := expandPath(env, "bin_dirs", strings.TrimSpace(dir))
		if err != nil {
			return provision.Requirement{}, err
		}
		if expanded == "" {
			continue
		}
		binDirs = append(binDirs, expanded)
	}
	req := provision.Requirement{Name: t.Name}
	if len(binDirs) > 0 {
		req.BinDirs = binDirs
	}

	switch t.Probe {
	case ProbeCommand:
		argv := expandAll(env, t.ProbeCommand)
		if len(argv) == 0 {
			return provision.Requirement{}, fmt.Errorf("%w: probe_command required", ErrInvalidConfig)
		}
		req.Probe = provision.CommandProbe{Command: provision.Step{Name: argv[0], Args: argv[1:]}}
	default:
		req.Probe = provision.PathProbe{Binary: env.Expand(t.Binary)}
	}

	steps, err := t.Install.steps(env)
	if err != nil {
		return provision.Requirement{}, err
	}
	req.Install = steps

	hooks, err := provision.CommandSteps(expandArgvs(env, t.Install.PostInstall))
	if err != nil {
		return provision.Requirement{}, err
	}
	if len(hooks) > 0 {
		req.PostInstall = hooks
	}
	return req, nil
}

func (in InstallConfig) steps(env provision.Environment) ([]provision.Step, error) {
	var steps []provision.Step
	var err error
	switch in.Method {
	case MethodNone:
		return nil, nil
	case MethodGo:
		steps, err = provision.GoInstallSteps(in.Module, in.Version)
	case MethodGit:
		var dest string
		if dest, err = expandPath(env, "dest", strings.TrimSpace(in.Dest)); err != nil {
			return nil, err
		}
		steps, err = provision.GitCloneSteps(in.Repo, env.Expand(in.Branch), env.Expand(in.Ref), dest)
	case MethodBrew:
		steps, err = provision.BrewSteps(in.Tap, in.Package)
	case MethodCommand:
		if len(in.Commands) == 0 {
			return nil, fmt.Errorf("%w: command install requires commands", ErrInvalidConfig)
		}
		steps, err = provision.CommandSteps(expandArgvs(env, in.Commands))
	default:
		return nil, fmt.Errorf("%w: unknown install method %q", ErrInvalidConfig, in.Method)
	}
	if err != nil {
		return nil, err
	}

	if dir := strings.TrimSpace(in.Dir); dir != "" {
		dir, err = expandPath(env, "dir", dir)
		if err != nil {
			return nil, err
		}
		for i := range steps {
			steps[i].Dir = dir
		}
	}
	return steps, nil
}

// expandPath expands a filesystem path and rejects it when a referenced
// variable is unset or empty; "$HOME/sdk" must not become "/sdk".
func expandPath(env provision.Environment, field string, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	out, missing := env.ExpandRequired(value)
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s %q references unset %s", ErrInvalidConfig, field, value, strings.Join(missing, ", "))
	}
	return out, nil
}

func expandAll(env provision.Environment, in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, env.Expand(s))
	}
	return out
}

func expandArgvs(env provision.Environment, in [][]string) [][]string {
	out := make([][]string, 0, len(in))
	for _, argv := range in {
		out = append(out, expandAll(env, argv))
	}
	return out
}
