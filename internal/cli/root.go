package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fmueller/whisperbridge/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// ExitError carries the status a command wants its process to exit with.
// Output describing the failure has already been written.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps a command error to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

type commonState struct {
	verbose    bool
	jsonLogs   bool
	noProgress bool

	logger *zap.Logger
	out    io.Writer

	loadConfig    func() (config.Config, error)
	executableDir func() string
}

func bindLoggingFlags(cmd *cobra.Command, s *commonState) {
	cmd.Flags().BoolVar(&s.verbose, "verbose", s.verbose, "Enable verbose logs")
	cmd.Flags().BoolVar(&s.jsonLogs, "json", s.jsonLogs, "Enable JSON logging")
}

func bindProgressFlag(cmd *cobra.Command, s *commonState) {
	cmd.Flags().BoolVar(&s.noProgress, "no-progress", s.noProgress, "Disable progress indicators")
}

func (s *commonState) config() (config.Config, error) {
	if s.loadConfig == nil {
		return config.Load(config.DefaultEnvFile)
	}
	return s.loadConfig()
}

func (s *commonState) exeDir() string {
	if s.executableDir == nil {
		return currentExecutableDir()
	}
	return s.executableDir()
}

func (s *commonState) log() *zap.Logger {
	if s.logger == nil {
		return zap.NewNop()
	}
	return s.logger
}

func (s *commonState) progressEnabled() bool {
	if s.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func (s *commonState) outWriter() io.Writer {
	if s.out == nil {
		return os.Stdout
	}
	return s.out
}

func currentExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}
