package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShouldPrintUsageHint(t *testing.T) {
	t.Parallel()

	require.True(t, shouldPrintUsageHint(errors.New("unknown command \"bad\" for \"whisper-setup\"")))
	require.True(t, shouldPrintUsageHint(errors.New("unknown flag: --oops")))
	require.True(t, shouldPrintUsageHint(errors.New("flag needs an argument: --models")))
	require.True(t, shouldPrintUsageHint(errors.New(`unknown model "huge" (known models: tiny, base, small, medium, large)`)))
	require.False(t, shouldPrintUsageHint(errors.New("install requirements: pip install -r requirements.txt exited with status 1")))
	require.False(t, shouldPrintUsageHint(nil))
}
