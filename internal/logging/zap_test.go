package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewJSONWritesToOutput(t *testing.T) {
	t.Parallel()

	buf := new(bytes.Buffer)
	logger, err := New(Options{JSON: true, Output: buf})
	require.NoError(t, err)

	logger.Info("model downloaded")
	require.NoError(t, logger.Sync())
	require.Contains(t, buf.String(), `"msg":"model downloaded"`)
}

func TestNewQuietDropsInfo(t *testing.T) {
	t.Parallel()

	buf := new(bytes.Buffer)
	logger, err := New(Options{Quiet: true, Output: buf})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}

func TestNewVerboseOverridesQuiet(t *testing.T) {
	t.Parallel()

	buf := new(bytes.Buffer)
	logger, err := New(Options{Quiet: true, Verbose: true, Output: buf})
	require.NoError(t, err)

	logger.Debug("probe")
	require.Contains(t, buf.String(), "probe")
}
