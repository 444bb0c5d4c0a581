package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names an optional plan file replacing the built-in plan.
const EnvConfigPath = "PROVISIONCTL_CONFIG"

var ErrInvalidConfig = errors.New("config: invalid plan file")

const (
	RunnerLocal = "local"
	RunnerSSH   = "ssh"

	ProbePath    = "path"
	ProbeCommand = "command"

	MethodNone    = ""
	MethodGo      = "go"
	MethodGit     = "git"
	MethodBrew    = "brew"
	MethodCommand = "command"
)

// File is the on-disk plan shape shared by TOML and YAML.
type File struct {
	Runner RunnerConfig `toml:"runner" yaml:"runner"`
	Tools  []ToolConfig `toml:"tool" yaml:"tool"`
}

type RunnerConfig struct {
	Kind          string `toml:"kind" yaml:"kind"`
	SSHHost       string `toml:"ssh_host" yaml:"ssh_host"`
	SSHPort       string `toml:"ssh_port" yaml:"ssh_port"`
	SSHUser       string `toml:"ssh_user" yaml:"ssh_user"`
	SSHKey        string `toml:"ssh_key" yaml:"ssh_key"`
	SSHKnownHosts string `toml:"ssh_known_hosts" yaml:"ssh_known_hosts"`
	SSHInsecure   bool   `toml:"ssh_insecure_skip_host_key_check" yaml:"ssh_insecure_skip_host_key_check"`
	SSHTimeout    string `toml:"ssh_timeout" yaml:"ssh_timeout"`
}

type ToolConfig struct {
	Name         string        `toml:"name" yaml:"name"`
	Probe        string        `toml:"probe" yaml:"probe"`
	Binary       string        `toml:"binary" yaml:"binary"`
	ProbeCommand []string      `toml:"probe_command" yaml:"probe_command"`
	BinDirs      []string      `toml:"bin_dirs" yaml:"bin_dirs"`
	Install      InstallConfig `toml:"install" yaml:"install"`
}

type InstallConfig struct {
	Method      string     `toml:"method" yaml:"method"`
	Module      string     `toml:"module" yaml:"module"`
	Version     string     `toml:"version" yaml:"version"`
	Repo        string     `toml:"repo" yaml:"repo"`
	Branch      string     `toml:"branch" yaml:"branch"`
	Ref         string     `toml:"ref" yaml:"ref"`
	Dest        string     `toml:"dest" yaml:"dest"`
	Package     string     `toml:"package" yaml:"package"`
	Tap         string     `toml:"tap" yaml:"tap"`
	Commands    [][]string `toml:"commands" yaml:"commands"`
	Dir         string     `toml:"dir" yaml:"dir"`
	PostInstall [][]string `toml:"post_install" yaml:"post_install"`
}

// Load reads a plan file, picking the decoder from the extension.
// Unknown keys are rejected in both formats.
func Load(path string) (File, error) {
	var f File
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		f, err = decodeTOMLFile(path)
	case ".yaml", ".yml":
		f, err = decodeYAMLFile(path)
	default:
		return File{}, fmt.Errorf("config load failed (%s): %w: unsupported extension %q", path, ErrInvalidConfig, ext)
	}
	if err != nil {
		return File{}, err
	}

	applyDefaults(&f)
	if err := Validate(f); err != nil {
		return File{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return f, nil
}

// Default returns the built-in plan.
func Default() (File, error) {
	var f File
	meta, err := toml.Decode(DefaultPlanTOML, &f)
	if err != nil {
		return File{}, fmt.Errorf("config parse failed (built-in): %w", err)
	}
	if err := checkUndecoded(meta); err != nil {
		return File{}, fmt.Errorf("config parse failed (built-in): %w", err)
	}
	applyDefaults(&f)
	if err := Validate(f); err != nil {
		return File{}, fmt.Errorf("config invalid (built-in): %w", err)
	}
	return f, nil
}

// Resolve loads the file named by PROVISIONCTL_CONFIG, or the built-in plan
// when it is unset.
func Resolve(getenv func(string) string) (File, string, error) {
	path := strings.TrimSpace(getenv(EnvConfigPath))
	if path == "" {
		f, err := Default()
		return f, "built-in", err
	}
	f, err := Load(path)
	return f, path, err
}

func decodeTOMLFile(path string) (File, error) {
	var f File
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return File{}, fmt.Errorf("config load failed (%s): %w", path, err)
		}
		return File{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := checkUndecoded(meta); err != nil {
		return File{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return f, nil
}

func checkUndecoded(meta toml.MetaData) error {
	undecoded := meta.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}
	keys := make([]string, 0, len(undecoded))
	for _, key := range undecoded {
		keys = append(keys, key.String())
	}
	sort.Strings(keys)
	return fmt.Errorf("%w: unknown keys %s", ErrInvalidConfig, strings.Join(keys, ", "))
}

func decodeYAMLFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return f, nil
}

func applyDefaults(f *File) {
	f.Runner.Kind = strings.ToLower(strings.TrimSpace(f.Runner.Kind))
	if f.Runner.Kind == "" {
		f.Runner.Kind = RunnerLocal
	}
	for i := range f.Tools {
		tool := &f.Tools[i]
		tool.Name = strings.TrimSpace(tool.Name)
		tool.Probe = strings.ToLower(strings.TrimSpace(tool.Probe))
		if tool.Probe == "" {
			tool.Probe = ProbePath
		}
		if strings.TrimSpace(tool.Binary) == "" {
			tool.Binary = tool.Name
		}
		tool.Install.Method = strings.ToLower(strings.TrimSpace(tool.Install.Method))
		if tool.Install.Method == MethodNone && len(tool.Install.Commands) > 0 {
			tool.Install.Method = MethodCommand
		}
	}
}

// Validate checks structure only; method-specific fields are checked when the
// plan is built.
func Validate(f File) error {
	switch f.Runner.Kind {
	case RunnerLocal:
	case RunnerSSH:
		if strings.TrimSpace(f.Runner.SSHHost) == "" {
			return fmt.Errorf("%w: runner ssh_host is required", ErrInvalidConfig)
		}
		if strings.TrimSpace(f.Runner.SSHUser) == "" {
			return fmt.Errorf("%w: runner ssh_user is required", ErrInvalidConfig)
		}
		if strings.TrimSpace(f.Runner.SSHKey) == "" {
			return fmt.Errorf("%w: runner ssh_key is required", ErrInvalidConfig)
		}
		if raw := strings.TrimSpace(f.Runner.SSHTimeout); raw != "" {
			if _, err := time.ParseDuration(raw); err != nil {
				return fmt.Errorf("%w: runner ssh_timeout: %v", ErrInvalidConfig, err)
			}
		}
	default:
		return fmt.Errorf("%w: unknown runner kind %q", ErrInvalidConfig, f.Runner.Kind)
	}

	seen := make(map[string]struct{}, len(f.Tools))
	for i, tool := range f.Tools {
		if err := validateTool(tool, f.Runner.Kind); err != nil {
			return fmt.Errorf("tool[%d] invalid: %w", i, err)
		}
		if _, ok := seen[tool.Name]; ok {
			return fmt.Errorf("tool[%d] invalid: %w: duplicate name %q", i, ErrInvalidConfig, tool.Name)
		}
		seen[tool.Name] = struct{}{}
	}
	return nil
}

func validateTool(tool ToolConfig, runnerKind string) error {
	if tool.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if !isValidName(tool.Name) {
		return fmt.Errorf("%w: invalid name format %q", ErrInvalidConfig, tool.Name)
	}
	switch tool.Probe {
	case ProbePath:
		if runnerKind != RunnerLocal {
			return fmt.Errorf("%w: %s: path probe requires the local runner", ErrInvalidConfig, tool.Name)
		}
	case ProbeCommand:
		if len(tool.ProbeCommand) == 0 || strings.TrimSpace(tool.ProbeCommand[0]) == "" {
			return fmt.Errorf("%w: %s: probe_command is required for command probes", ErrInvalidConfig, tool.Name)
		}
	default:
		return fmt.Errorf("%w: %s: unknown probe %q", ErrInvalidConfig, tool.Name, tool.Probe)
	}
	switch tool.Install.Method {
	case MethodNone, MethodGo, MethodGit, MethodBrew, MethodCommand:
	default:
		return fmt.Errorf("%w: %s: unknown install method %q", ErrInvalidConfig, tool.Name, tool.Install.Method)
	}
	if tool.Install.Method == MethodNone && len(tool.Install.PostInstall) > 0 {
		return fmt.Errorf("%w: %s: post_install without an install method", ErrInvalidConfig, tool.Name)
	}
	return nil
}

// isValidName accepts lowercase ids like "gomobile" or "neo4j-image": letters,
// digits and single . - _ separators, never leading or trailing.
func isValidName(name string) bool {
	if name == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if (i == 0 || i == len(name)-1) && isSep {
			return false
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
