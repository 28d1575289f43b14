package python

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"syscall"

	"github.com/fmueller/whisperbridge/internal/platform"
	"go.uber.org/zap"
)

var ErrInterpreterNotFound = errors.New("python interpreter not found")

type Interpreter struct {
	Path   string
	Env    []string
	Logger *zap.Logger
}

type FindOptions struct {
	// Override is an explicit interpreter path; when set nothing else is tried.
	Override string
	// SearchDir is checked for venv/ and .venv/ virtualenvs.
	SearchDir string
	GOOS      string
	LookPath  func(string) (string, error)
	Logger    *zap.Logger
}

// Result is the outcome of a process that was started and waited for.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

func Find(opts FindOptions) (*Interpreter, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if override := strings.TrimSpace(opts.Override); override != "" {
		if err := ensureExecutable(override); err != nil {
			return nil, fmt.Errorf("python override is not executable: %w", err)
		}
		return &Interpreter{Path: override, Logger: logger}, nil
	}

	for _, candidate := range Candidates(opts) {
		if err := ensureExecutable(candidate); err == nil {
			logger.Debug("using virtualenv interpreter", zap.String("python", candidate))
			return &Interpreter{Path: candidate, Logger: logger}, nil
		}
	}

	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	goos := opts.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}

	names := platform.InterpreterNames(goos)
	for _, name := range names {
		if resolved, err := lookPath(name); err == nil {
			logger.Debug("using interpreter from PATH", zap.String("python", resolved))
			return &Interpreter{Path: resolved, Logger: logger}, nil
		}
	}

	return nil, fmt.Errorf("%w (tried %s on PATH)", ErrInterpreterNotFound, strings.Join(names, ", "))
}

// Candidates lists the virtualenv interpreters Find probes before PATH.
func Candidates(opts FindOptions) []string {
	if strings.TrimSpace(opts.SearchDir) == "" {
		return nil
	}
	goos := opts.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	return platform.VenvInterpreterCandidates(goos, opts.SearchDir)
}

// WithPythonPath returns a copy whose child processes see dirs prepended
// to PYTHONPATH.
func (i *Interpreter) WithPythonPath(dirs ...string) *Interpreter {
	entries := make([]string, 0, len(dirs)+1)
	for _, dir := range dirs {
		if strings.TrimSpace(dir) != "" {
			entries = append(entries, dir)
		}
	}
	if len(entries) == 0 {
		return i
	}
	if existing := os.Getenv("PYTHONPATH"); existing != "" {
		entries = append(entries, existing)
	}

	env := make([]string, 0, len(i.Env)+1)
	env = append(env, i.Env...)
	env = append(env, "PYTHONPATH="+strings.Join(entries, string(os.PathListSeparator)))

	return &Interpreter{Path: i.Path, Env: env, Logger: i.Logger}
}

// Capture runs the interpreter and collects its output. A non-zero exit is
// reported through Result.ExitCode; the error is reserved for processes
// that could not be started.
func (i *Interpreter) Capture(ctx context.Context, args ...string) (Result, error) {
	var stdout, stderr bytes.Buffer
	err := i.Run(ctx, &stdout, &stderr, args...)

	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return result, nil
	}

	if code, ok := ExitCode(err); ok {
		result.ExitCode = code
		return result, nil
	}

	return Result{}, err
}

// Run executes the interpreter with the given streams attached.
func (i *Interpreter) Run(ctx context.Context, stdout, stderr io.Writer, args ...string) error {
	if strings.TrimSpace(i.Path) == "" {
		return ErrInterpreterNotFound
	}

	cmd := exec.CommandContext(ctx, i.Path, args...)
	if len(i.Env) > 0 {
		cmd.Env = append(os.Environ(), i.Env...)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	i.log().Debug("running python", zap.String("python", i.Path), zap.Strings("args", args))
	return cmd.Run()
}

// HasModule reports whether `import <name>` succeeds in this interpreter.
func (i *Interpreter) HasModule(ctx context.Context, name string) bool {
	result, err := i.Capture(ctx, "-c", "import "+name)
	if err != nil {
		i.log().Debug("module probe could not start", zap.String("module", name), zap.Error(err))
		return false
	}
	if result.ExitCode != 0 {
		i.log().Debug("module not importable", zap.String("module", name), zap.String("stderr", strings.TrimSpace(result.Stderr)))
		return false
	}
	return true
}

// ExitCode extracts the child's exit status from err. Signal terminations
// map to 128+signal like a POSIX shell.
func ExitCode(err error) (int, bool) {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 0, false
	}

	if code := exitErr.ExitCode(); code >= 0 {
		return code, true
	}

	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal()), true
	}
	return 1, true
}

func (i *Interpreter) log() *zap.Logger {
	if i.Logger == nil {
		return zap.NewNop()
	}
	return i.Logger
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}
