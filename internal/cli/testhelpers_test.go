package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/fmueller/whisperbridge/internal/config"
	"github.com/fmueller/whisperbridge/internal/provision"
	"github.com/fmueller/whisperbridge/internal/python"
	"github.com/fmueller/whisperbridge/internal/whisper"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, cmd *cobra.Command, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func staticConfig(cfg config.Config) func() (config.Config, error) {
	return func() (config.Config, error) {
		return cfg, nil
	}
}

func writeStubPython(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "python")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

type countingFetcher struct {
	calls []string
	fail  map[string]bool
}

func (f *countingFetcher) Fetch(_ context.Context, model whisper.Model) error {
	f.calls = append(f.calls, model.Name)
	if f.fail[model.Name] {
		return errors.New("connection reset by peer")
	}
	return nil
}

// hookedSetup returns a setup state whose python, installer and fetcher are
// replaced by fakes.
func hookedSetup(installErr error, fetcher *countingFetcher) (*setupState, *int) {
	installCalls := 0
	app := &setupState{
		requirements: config.DefaultRequirements,
		fetch:        fetchPython,
		findPythonFn: func() (*python.Interpreter, error) {
			return &python.Interpreter{Path: "/usr/bin/python3"}, nil
		},
		installFn: func(context.Context, *python.Interpreter, io.Writer, io.Writer) error {
			installCalls++
			return installErr
		},
		fetcherFn: func(*python.Interpreter, io.Writer) (provision.Fetcher, error) {
			return fetcher, nil
		},
	}
	app.loadConfig = staticConfig(config.Config{Requirements: config.DefaultRequirements})
	return app, &installCalls
}
