package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultCacheDirFor mirrors the whisper library's default download root:
// $XDG_CACHE_HOME/whisper, falling back to ~/.cache/whisper on every OS.
func DefaultCacheDirFor(homeDir, xdgCacheHome string) (string, error) {
	if xdgCacheHome != "" {
		return filepath.Join(xdgCacheHome, "whisper"), nil
	}
	if homeDir == "" {
		return "", errors.New("home directory is empty")
	}
	return filepath.Join(homeDir, ".cache", "whisper"), nil
}

func ResolveCacheDir(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}

	xdg := os.Getenv("XDG_CACHE_HOME")
	if xdg != "" {
		return DefaultCacheDirFor("", xdg)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	return DefaultCacheDirFor(homeDir, "")
}

// InterpreterNames lists the executable names probed on PATH, most specific first.
func InterpreterNames(goos string) []string {
	if goos == "windows" {
		return []string{"python.exe", "python3.exe", "py.exe"}
	}
	return []string{"python3", "python"}
}

// VenvInterpreterCandidates returns interpreter paths of virtualenvs living
// next to the given directory.
func VenvInterpreterCandidates(goos, baseDir string) []string {
	binDir, exe := "bin", "python"
	if goos == "windows" {
		binDir, exe = "Scripts", "python.exe"
	}

	candidates := make([]string, 0, 2)
	for _, venv := range []string{"venv", ".venv"} {
		candidates = append(candidates, filepath.Join(baseDir, venv, binDir, exe))
	}
	return candidates
}
