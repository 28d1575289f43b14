package version

import (
	"os/exec"
	"runtime/debug"
	"strings"
)

// Set through -ldflags at release time.
var (
	Version = ""
	Commit  = "unknown"
	Date    = "unknown"
)

// Resolve returns the full version string. Release builds report the
// ldflags version; `go install` builds fall back to the module version
// from the build info; builds from a git checkout not on a tag get a
// describe suffix.
func Resolve() string {
	return resolveVersion(Version, readBuildVersion, runGit)
}

func resolveVersion(base string, buildVersion func() string, git func(...string) (string, error)) string {
	if base == "" {
		base = strings.TrimPrefix(buildVersion(), "v")
	}
	if base == "" {
		base = "0.0.0"
	}

	suffix := computeGitSuffix(base, git)
	if suffix == "" {
		return base
	}
	return base + "-" + suffix
}

func computeGitSuffix(base string, git func(...string) (string, error)) string {
	if _, err := git("rev-parse", "--git-dir"); err != nil {
		return ""
	}

	if _, err := git("describe", "--tags", "--exact-match"); err == nil {
		return ""
	}

	desc, err := git("describe", "--tags", "--dirty", "--always")
	if err != nil {
		return ""
	}

	prefix := "v" + base + "-"
	if strings.HasPrefix(desc, prefix) {
		return strings.TrimPrefix(desc, prefix)
	}

	return desc
}

func readBuildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "(devel)" {
		return ""
	}
	return info.Main.Version
}

func runGit(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
