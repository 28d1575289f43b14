package launcher

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fmueller/whisperbridge/internal/python"
	"github.com/stretchr/testify/require"
)

const stubWhisperPython = `#!/bin/sh
if [ "$1" = "-c" ] && [ "$2" = "import whisper" ]; then
  exit 0
fi
if [ "$1" = "-m" ] && [ "$2" = "whisper" ]; then
  shift 2
  case "$1" in
    ok) printf 'hello transcript'; exit 0 ;;
    bad) printf 'bad audio format' >&2; exit 2 ;;
    args) shift; printf '[%s]' "$@"; exit 0 ;;
    pythonpath) printf '%s' "$PYTHONPATH"; exit 0 ;;
  esac
fi
echo "unexpected: $*" >&2
exit 99
`

const stubPythonWithoutWhisper = `#!/bin/sh
echo "ModuleNotFoundError: No module named 'whisper'" >&2
exit 1
`

func writeStub(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "python")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func runLauncher(t *testing.T, opts Options, args ...string) (string, int) {
	t.Helper()

	out := new(bytes.Buffer)
	code := Run(context.Background(), opts, args, out)
	return out.String(), code
}

func TestRunRelaysStdoutOnSuccess(t *testing.T) {
	t.Parallel()

	out, code := runLauncher(t, Options{Python: writeStub(t, stubWhisperPython)}, "ok")
	require.Equal(t, 0, code)
	require.Equal(t, "hello transcript\n", out)
}

func TestRunReportsStderrAndExitCodeOnFailure(t *testing.T) {
	t.Parallel()

	out, code := runLauncher(t, Options{Python: writeStub(t, stubWhisperPython)}, "bad")
	require.Equal(t, 2, code)
	require.Equal(t, `{"error": "bad audio format"}`+"\n", out)
}

func TestRunForwardsArgumentsVerbatim(t *testing.T) {
	t.Parallel()

	out, code := runLauncher(t, Options{Python: writeStub(t, stubWhisperPython)},
		"args", "audio file.wav", "--model", "tiny", "--help", "$HOME", "")
	require.Equal(t, 0, code)
	require.Equal(t, "[audio file.wav][--model][tiny][--help][$HOME][]\n", out)
}

func TestRunPrependsExecutableDirToPythonPath(t *testing.T) {
	t.Parallel()

	exeDir := t.TempDir()
	out, code := runLauncher(t, Options{Python: writeStub(t, stubWhisperPython), ExecutableDir: exeDir}, "pythonpath")
	require.Equal(t, 0, code)
	require.True(t, strings.HasPrefix(out, exeDir), "PYTHONPATH should start with %s, got %q", exeDir, out)
}

func TestRunReportsMissingLibrary(t *testing.T) {
	t.Parallel()

	out, code := runLauncher(t, Options{Python: writeStub(t, stubPythonWithoutWhisper)}, "ok")
	require.Equal(t, 1, code)
	require.Equal(t, `{"error": "Whisper not found. Please run setup.py first."}`+"\n", out)
}

func TestRunReportsMissingInterpreter(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	out, code := runLauncher(t, Options{ExecutableDir: t.TempDir()}, "ok")
	require.Equal(t, 1, code)
	require.Equal(t, `{"error": "Whisper not found. Please run setup.py first."}`+"\n", out)
}

func TestResolveFindsVirtualenvNextToExecutable(t *testing.T) {
	t.Parallel()

	exeDir := t.TempDir()
	venvPython := filepath.Join(exeDir, "venv", "bin", "python")
	require.NoError(t, os.MkdirAll(filepath.Dir(venvPython), 0o755))
	require.NoError(t, os.WriteFile(venvPython, []byte(stubWhisperPython), 0o755))

	interp, err := Resolve(context.Background(), Options{ExecutableDir: exeDir})
	require.NoError(t, err)
	require.Equal(t, venvPython, interp.Path)
}

func TestResolveMissingLibraryIsSentinel(t *testing.T) {
	t.Parallel()

	_, err := Resolve(context.Background(), Options{Python: writeStub(t, stubPythonWithoutWhisper)})
	require.ErrorIs(t, err, ErrWhisperNotFound)
}

func TestInvokeSpawnFailureIsReportedWithExitOne(t *testing.T) {
	t.Parallel()

	interp := &python.Interpreter{Path: filepath.Join(t.TempDir(), "vanished-python")}
	result, err := Invoke(context.Background(), interp, []string{"audio.wav"})
	require.Error(t, err)

	out := new(bytes.Buffer)
	code := Relay(out, result, err)
	require.Equal(t, 1, code)

	expected, formatErr := FormatError(err.Error())
	require.NoError(t, formatErr)
	require.Equal(t, expected+"\n", out.String())
	require.Contains(t, out.String(), "vanished-python")
}

func TestRelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		result   python.Result
		err      error
		wantOut  string
		wantCode int
	}{
		{
			name:     "success keeps stdout untouched",
			result:   python.Result{Stdout: "line one\nline two\n", Stderr: "progress noise"},
			wantOut:  "line one\nline two\n\n",
			wantCode: 0,
		},
		{
			name:     "non-zero exit carries stderr",
			result:   python.Result{ExitCode: 4, Stdout: "partial", Stderr: "Traceback\n  boom\n"},
			wantOut:  `{"error": "Traceback\n  boom\n"}` + "\n",
			wantCode: 4,
		},
		{
			name:     "spawn error",
			err:      errors.New(`exec: "python3": executable file not found in $PATH`),
			wantOut:  `{"error": "exec: \"python3\": executable file not found in $PATH"}` + "\n",
			wantCode: 1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out := new(bytes.Buffer)
			code := Relay(out, tt.result, tt.err)
			require.Equal(t, tt.wantCode, code)
			require.Equal(t, tt.wantOut, out.String())
		})
	}
}

func TestFormatErrorDoesNotEscapeHTML(t *testing.T) {
	t.Parallel()

	line, err := FormatError(`<file> & "quotes"`)
	require.NoError(t, err)
	require.Equal(t, `{"error": "<file> & \"quotes\""}`, line)
}
