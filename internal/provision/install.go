package provision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fmueller/whisperbridge/internal/python"
	"go.uber.org/zap"
)

var ErrRequirementsMissing = errors.New("requirements manifest not found")

type InstallOptions struct {
	Requirements string
	Stdout       io.Writer
	Stderr       io.Writer
	Logger       *zap.Logger
}

// InstallRequirements runs `python -m pip install -r <manifest>` with the
// installer's output passed through. It is never retried.
func InstallRequirements(ctx context.Context, interp *python.Interpreter, opts InstallOptions) error {
	if interp == nil {
		return python.ErrInterpreterNotFound
	}

	manifest := strings.TrimSpace(opts.Requirements)
	if manifest == "" {
		return errors.New("requirements manifest path is required")
	}

	info, err := os.Stat(manifest)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrRequirementsMissing, manifest)
		}
		return fmt.Errorf("stat requirements manifest: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("requirements manifest %s is a directory", manifest)
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var captured bytes.Buffer
	logger.Info("installing requirements", zap.String("manifest", manifest), zap.String("python", interp.Path))
	runErr := interp.Run(ctx, stdout, io.MultiWriter(stderr, &captured), "-m", "pip", "install", "-r", manifest)
	if runErr == nil {
		return nil
	}

	if isMissingPipError(captured.String()) {
		return fmt.Errorf("pip is not available for %s; install it with `%s -m ensurepip --upgrade`", interp.Path, interp.Path)
	}
	if code, ok := python.ExitCode(runErr); ok {
		return fmt.Errorf("pip install -r %s exited with status %d", manifest, code)
	}
	return fmt.Errorf("run pip: %w", runErr)
}

func isMissingPipError(stderr string) bool {
	value := strings.ToLower(stderr)
	return strings.Contains(value, "no module named pip")
}
