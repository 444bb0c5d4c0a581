package provision

import (
	"fmt"
	"net/url"
	"strings"
)

// GitCloneSteps clones repo at branch (a branch or tag name) into dest.
// A non-empty ref is fetched and checked out detached afterwards.
func GitCloneSteps(repo string, branch string, ref string, dest string) ([]Step, error) {
	repo = strings.TrimSpace(repo)
	dest = strings.TrimSpace(dest)
	if err := validateRepoURL(repo); err != nil {
		return nil, err
	}
	if dest == "" {
		return nil, fmt.Errorf("%w: git clone missing destination", ErrInvalidRequirement)
	}

	args := []string{"clone"}
	if b := strings.TrimSpace(branch); b != "" {
		args = append(args, "--branch", b, "--single-branch")
	}
	args = append(args, repo, dest)
	steps := []Step{{Name: "git", Args: args}}

	if r := strings.TrimSpace(ref); r != "" {
		steps = append(steps,
			Step{Name: "git", Args: []string{"-C", dest, "fetch", "origin", r}},
			Step{Name: "git", Args: []string{"-C", dest, "checkout", "FETCH_HEAD"}},
		)
	}
	return steps, nil
}

// GoInstallSteps fetches and builds module@version into GOBIN.
func GoInstallSteps(module string, version string) ([]Step, error) {
	module = strings.TrimSpace(module)
	if module == "" || strings.Contains(module, "@") {
		return nil, fmt.Errorf("%w: invalid go module path %q", ErrInvalidRequirement, module)
	}
	version = strings.TrimSpace(version)
	if version == "" {
		version = "latest"
	}
	return []Step{{Name: "go", Args: []string{"install", module + "@" + version}}}, nil
}

// BrewSteps installs pkg, tapping first when tap is set.
func BrewSteps(tap string, pkg string) ([]Step, error) {
	pkg = strings.TrimSpace(pkg)
	if pkg == "" {
		return nil, fmt.Errorf("%w: missing package for brew install", ErrInvalidRequirement)
	}
	var steps []Step
	if t := strings.TrimSpace(tap); t != "" {
		steps = append(steps, Step{Name: "brew", Args: []string{"tap", t}})
	}
	return append(steps, Step{Name: "brew", Args: []string{"install", pkg}}), nil
}

// CommandSteps turns argv lists into steps.
func CommandSteps(argvs [][]string) ([]Step, error) {
	steps := make([]Step, 0, len(argvs))
	for i, argv := range argvs {
		if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
			return nil, fmt.Errorf("%w: command[%d] is empty", ErrInvalidRequirement, i)
		}
		steps = append(steps, Step{Name: argv[0], Args: append([]string(nil), argv[1:]...)})
	}
	return steps, nil
}

func validateRepoURL(repo string) error {
	u, err := url.Parse(repo)
	if err != nil {
		return fmt.Errorf("%w: repo=%q parse error: %v", ErrInvalidRequirement, repo, err)
	}
	switch u.Scheme {
	case "https", "ssh", "git", "file":
	default:
		return fmt.Errorf("%w: repo=%q unsupported scheme", ErrInvalidRequirement, repo)
	}
	if u.Scheme != "file" && u.Host == "" {
		return fmt.Errorf("%w: repo=%q missing host", ErrInvalidRequirement, repo)
	}
	if strings.TrimSpace(u.Path) == "" || u.Path == "/" {
		return fmt.Errorf("%w: repo=%q missing repository path", ErrInvalidRequirement, repo)
	}
	return nil
}
