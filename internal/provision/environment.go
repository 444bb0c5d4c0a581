package provision

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/provisionctl/internal/tools"
)

// Environment is the read-only snapshot of process variables taken at start.
type Environment struct {
	Path   []string
	Home   string
	GoPath string
	GoBin  string
	vars   map[string]string
}

// ReadEnvironment snapshots an environ-style list (normally os.Environ()).
// GOPATH falls back to $HOME/go and GOBIN to the first GOPATH entry's bin dir,
// matching the go tool's own defaults.
func ReadEnvironment(environ []string) Environment {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		vars[key] = value
	}

	env := Environment{
		Path: tools.SplitPath(vars["PATH"]),
		Home: vars["HOME"],
		vars: vars,
	}

	gopath := tools.SplitPath(vars["GOPATH"])
	switch {
	case len(gopath) > 0:
		env.GoPath = gopath[0]
	case env.Home != "":
		env.GoPath = filepath.Join(env.Home, "go")
	}

	env.GoBin = strings.TrimSpace(vars["GOBIN"])
	if env.GoBin == "" && env.GoPath != "" {
		env.GoBin = filepath.Join(env.GoPath, "bin")
	}
	return env
}

// Lookup returns a snapshot variable; GOPATH and GOBIN report the resolved defaults.
func (e Environment) Lookup(key string) (string, bool) {
	switch key {
	case "GOPATH":
		return e.GoPath, e.GoPath != ""
	case "GOBIN":
		return e.GoBin, e.GoBin != ""
	case "HOME":
		return e.Home, e.Home != ""
	}
	v, ok := e.vars[key]
	return v, ok
}

// Expand replaces $VAR and ${VAR} from the snapshot. A leading ~/ expands to HOME.
func (e Environment) Expand(s string) string {
	out, _ := e.ExpandRequired(s)
	return out
}

// ExpandRequired is Expand that also returns the referenced variables which
// are unset or empty, so callers can reject paths that would collapse.
func (e Environment) ExpandRequired(s string) (string, []string) {
	var missing []string
	if strings.HasPrefix(s, "~/") {
		if e.Home == "" {
			missing = append(missing, "HOME")
		} else {
			s = filepath.Join(e.Home, s[2:])
		}
	}
	out := os.Expand(s, func(key string) string {
		v, _ := e.Lookup(key)
		if v == "" {
			missing = appendUnique(missing, key)
		}
		return v
	})
	return out, missing
}

// OnPath reports whether dir is already listed in the snapshot PATH.
func (e Environment) OnPath(dir string) bool {
	clean := filepath.Clean(dir)
	for _, p := range e.Path {
		if filepath.Clean(p) == clean {
			return true
		}
	}
	return false
}
