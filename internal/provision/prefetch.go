package provision

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/fmueller/whisperbridge/internal/download"
	"github.com/fmueller/whisperbridge/internal/python"
	"github.com/fmueller/whisperbridge/internal/whisper"
	"go.uber.org/zap"
)

// Fetcher makes one model available in the local cache.
type Fetcher interface {
	Fetch(ctx context.Context, model whisper.Model) error
}

type Failure struct {
	Model string
	Err   error
}

type Summary struct {
	Fetched []string
	Failed  []Failure
}

func (s Summary) FailedNames() []string {
	names := make([]string, 0, len(s.Failed))
	for _, failure := range s.Failed {
		names = append(names, failure.Model)
	}
	return names
}

type Prefetcher struct {
	Fetcher Fetcher
	Out     io.Writer
	Logger  *zap.Logger
}

// Run fetches every model in order. A failing model is reported and
// skipped; it never stops the remaining ones.
func (p *Prefetcher) Run(ctx context.Context, models []whisper.Model) Summary {
	out := p.Out
	if out == nil {
		out = io.Discard
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	fmt.Fprintln(out, "Downloading Whisper models...")

	var summary Summary
	for _, model := range models {
		if err := ctx.Err(); err != nil {
			summary.Failed = append(summary.Failed, Failure{Model: model.Name, Err: err})
			continue
		}

		fmt.Fprintf(out, "Downloading %s model...\n", model.Name)
		if err := p.Fetcher.Fetch(ctx, model); err != nil {
			fmt.Fprintf(out, "Failed to download %s model: %v\n", model.Name, err)
			logger.Warn("model download failed", zap.String("model", model.Name), zap.Error(err))
			summary.Failed = append(summary.Failed, Failure{Model: model.Name, Err: err})
			continue
		}

		fmt.Fprintf(out, "%s model downloaded\n", model.Name)
		summary.Fetched = append(summary.Fetched, model.Name)
	}

	return summary
}

// PythonFetcher drives whisper.load_model so the library populates its
// own cache exactly as it would on first use.
type PythonFetcher struct {
	Interpreter  *python.Interpreter
	DownloadRoot string
	// Passthrough mirrors the loader's output to this writer as it runs.
	Passthrough io.Writer
	Spinner     func(description string) func()
}

func (f *PythonFetcher) Fetch(ctx context.Context, model whisper.Model) error {
	if f.Interpreter == nil {
		return python.ErrInterpreterNotFound
	}

	stop := func() {}
	if f.Spinner != nil {
		stop = f.Spinner(fmt.Sprintf("Loading %s", model.Name))
	}

	var stdout, stderr bytes.Buffer
	outW, errW := io.Writer(&stdout), io.Writer(&stderr)
	if f.Passthrough != nil {
		outW = io.MultiWriter(&stdout, f.Passthrough)
		errW = io.MultiWriter(&stderr, f.Passthrough)
	}

	err := f.Interpreter.Run(ctx, outW, errW, "-c", whisper.LoadScript(model.Name, f.DownloadRoot))
	stop()
	if err == nil {
		return nil
	}

	detail := lastLine(stderr.String())
	if code, ok := python.ExitCode(err); ok {
		if detail != "" {
			return fmt.Errorf("load_model exited with status %d (%s)", code, detail)
		}
		return fmt.Errorf("load_model exited with status %d", code)
	}
	return fmt.Errorf("run python: %w", err)
}

// HTTPFetcher downloads checkpoints straight into the cache directory and
// verifies the digest pinned in the checkpoint URL.
type HTTPFetcher struct {
	CacheDir   string
	NoProgress bool
	HTTPClient *http.Client
	Logger     *zap.Logger
	// BaseURL replaces the scheme and host of registry URLs when set.
	BaseURL string
}

func (f *HTTPFetcher) Fetch(ctx context.Context, model whisper.Model) error {
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	resolved, err := whisper.ResolveCached(model, f.CacheDir)
	if err != nil {
		return err
	}

	if resolved.Cached {
		err := download.VerifyFileChecksum(resolved.Path, model.SHA256())
		if err == nil {
			logger.Info("model already cached", zap.String("model", model.Name), zap.String("path", resolved.Path))
			return nil
		}
		logger.Warn("cached model failed verification; downloading fresh copy", zap.String("model", model.Name), zap.Error(err))
		if err := os.Remove(resolved.Path); err != nil {
			return fmt.Errorf("remove corrupt checkpoint: %w", err)
		}
	}

	return download.DownloadFile(ctx, download.Options{
		URL:            f.modelURL(model),
		Destination:    resolved.Path,
		ExpectedSHA256: model.SHA256(),
		Description:    "downloading " + model.Name,
		NoProgress:     f.NoProgress,
		HTTPClient:     f.HTTPClient,
		Logger:         logger,
	})
}

func (f *HTTPFetcher) modelURL(model whisper.Model) string {
	if f.BaseURL == "" {
		return model.URL
	}

	base, err := url.Parse(f.BaseURL)
	if err != nil {
		return model.URL
	}
	target, err := url.Parse(model.URL)
	if err != nil {
		return model.URL
	}

	target.Scheme = base.Scheme
	target.Host = base.Host
	target.Path = strings.TrimRight(base.Path, "/") + target.Path
	return target.String()
}

func lastLine(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
