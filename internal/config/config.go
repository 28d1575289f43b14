package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvPython       = "WHISPER_BRIDGE_PYTHON"
	EnvRequirements = "WHISPER_BRIDGE_REQUIREMENTS"
	EnvCacheDir     = "WHISPER_BRIDGE_CACHE_DIR"
	EnvJSONLogs     = "WHISPER_BRIDGE_LOG_JSON"
	EnvVerbose      = "WHISPER_BRIDGE_VERBOSE"

	DefaultEnvFile      = ".env"
	DefaultRequirements = "requirements.txt"
)

type Config struct {
	Python       string
	Requirements string
	CacheDir     string
	JSONLogs     bool
	Verbose      bool
}

// Load reads envFile when present and layers the process environment on
// top of it. A missing file is not an error.
func Load(envFile string) (Config, error) {
	fileValues := map[string]string{}
	if envFile != "" {
		values, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileValues = values
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read %s: %w", envFile, err)
		}
	}

	return FromLookup(func(key string) (string, bool) {
		if value, ok := os.LookupEnv(key); ok && value != "" {
			return value, true
		}
		value, ok := fileValues[key]
		return value, ok
	})
}

func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, fallback string) string {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
		return fallback
	}

	cfg := Config{
		Python:       get(EnvPython, ""),
		Requirements: get(EnvRequirements, DefaultRequirements),
		CacheDir:     get(EnvCacheDir, ""),
	}

	var err error
	if cfg.JSONLogs, err = parseBool(EnvJSONLogs, get(EnvJSONLogs, "false")); err != nil {
		return Config{}, err
	}
	if cfg.Verbose, err = parseBool(EnvVerbose, get(EnvVerbose, "false")); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func parseBool(key, value string) (bool, error) {
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, value)
	}
	return parsed, nil
}
