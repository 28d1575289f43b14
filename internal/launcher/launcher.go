package launcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fmueller/whisperbridge/internal/python"
	"github.com/fmueller/whisperbridge/internal/whisper"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// NotFoundMessage is the text hosts match on when the library is missing.
const NotFoundMessage = "Whisper not found. Please run setup.py first."

var ErrWhisperNotFound = errors.New(NotFoundMessage)

type Options struct {
	// Python is an explicit interpreter path.
	Python string
	// ExecutableDir is the launcher's own directory. It is searched for
	// virtualenvs and prepended to PYTHONPATH.
	ExecutableDir string
	Logger        *zap.Logger
}

// Resolve finds an interpreter that can import the whisper package.
func Resolve(ctx context.Context, opts Options) (*python.Interpreter, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	interp, err := python.Find(python.FindOptions{
		Override:  opts.Python,
		SearchDir: opts.ExecutableDir,
		Logger:    logger,
	})
	if err != nil {
		logger.Debug("no usable python interpreter", zap.Error(err))
		return nil, ErrWhisperNotFound
	}

	interp = interp.WithPythonPath(opts.ExecutableDir)
	if !interp.HasModule(ctx, whisper.ModuleName) {
		return nil, ErrWhisperNotFound
	}

	return interp, nil
}

// Invoke runs `python -m whisper` with args forwarded untouched.
func Invoke(ctx context.Context, interp *python.Interpreter, args []string) (python.Result, error) {
	argv := make([]string, 0, len(args)+2)
	argv = append(argv, "-m", whisper.ModuleName)
	argv = append(argv, args...)
	return interp.Capture(ctx, argv...)
}

// Relay writes the outcome of Invoke to w and returns the exit code the
// launcher must terminate with.
func Relay(w io.Writer, result python.Result, invokeErr error) int {
	if invokeErr != nil {
		_ = WriteError(w, invokeErr.Error())
		return 1
	}

	if result.ExitCode == 0 {
		fmt.Fprintln(w, result.Stdout)
		return 0
	}

	_ = WriteError(w, result.Stderr)
	return result.ExitCode
}

// Run resolves, invokes and relays in one pass.
func Run(ctx context.Context, opts Options, args []string, w io.Writer) int {
	interp, err := Resolve(ctx, opts)
	if err != nil {
		_ = WriteError(w, NotFoundMessage)
		return 1
	}

	result, err := Invoke(ctx, interp, args)
	return Relay(w, result, err)
}

// WriteError prints a single-line {"error": "..."} object.
func WriteError(w io.Writer, message string) error {
	line, err := FormatError(message)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, line)
	return err
}

// FormatError renders message as {"error": "<message>"} without a trailing newline.
func FormatError(message string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(message); err != nil {
		return "", fmt.Errorf("encode error message: %w", err)
	}
	return `{"error": ` + strings.TrimRight(buf.String(), "\n") + `}`, nil
}
