package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fmueller/whisperbridge/internal/config"
	"github.com/fmueller/whisperbridge/internal/logging"
	"github.com/fmueller/whisperbridge/internal/platform"
	"github.com/fmueller/whisperbridge/internal/provision"
	"github.com/fmueller/whisperbridge/internal/python"
	"github.com/fmueller/whisperbridge/internal/version"
	"github.com/fmueller/whisperbridge/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	fetchPython = "python"
	fetchHTTP   = "http"
)

type setupState struct {
	commonState

	python       string
	requirements string
	models       []string
	downloadRoot string
	fetch        string
	skipModels   bool

	findPythonFn func() (*python.Interpreter, error)
	installFn    func(ctx context.Context, interp *python.Interpreter, stdout, stderr io.Writer) error
	fetcherFn    func(interp *python.Interpreter, stderr io.Writer) (provision.Fetcher, error)
}

func NewSetupCmd() *cobra.Command {
	return newSetupCmd(&setupState{
		requirements: config.DefaultRequirements,
		fetch:        fetchPython,
	})
}

func newSetupCmd(app *setupState) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "whisper-setup",
		Short:         "Install Whisper requirements and pre-download speech models",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.applyConfig(cmd); err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{Verbose: app.verbose, JSON: app.jsonLogs, Output: cmd.ErrOrStderr()})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.logger = logger
			app.out = cmd.OutOrStdout()
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.run(cmd.Context(), cmd.ErrOrStderr())
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindLoggingFlags(cmd, &app.commonState)
	bindProgressFlag(cmd, &app.commonState)
	cmd.Flags().StringVar(&app.requirements, "requirements", app.requirements, "Requirements manifest passed to pip install -r")
	cmd.Flags().StringVar(&app.python, "python", app.python, "Python interpreter to install into (default: venv next to the binary, then python3/python on PATH)")
	cmd.Flags().StringSliceVar(&app.models, "models", app.models, "Models to pre-download (default "+strings.Join(whisper.ModelNames(), ",")+")")
	cmd.Flags().StringVar(&app.downloadRoot, "download-root", app.downloadRoot, "Model cache directory (default: the library's cache, ~/.cache/whisper)")
	cmd.Flags().StringVar(&app.fetch, "fetch", app.fetch, "How to pre-download models: python|http")
	cmd.Flags().BoolVar(&app.skipModels, "skip-models", app.skipModels, "Only install requirements")

	return cmd
}

// applyConfig fills every flag the user did not set from the environment.
func (a *setupState) applyConfig(cmd *cobra.Command) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if !flags.Changed("python") {
		a.python = cfg.Python
	}
	if !flags.Changed("requirements") && cfg.Requirements != "" {
		a.requirements = cfg.Requirements
	}
	if !flags.Changed("download-root") {
		a.downloadRoot = cfg.CacheDir
	}
	if !flags.Changed("json") {
		a.jsonLogs = cfg.JSONLogs
	}
	if !flags.Changed("verbose") {
		a.verbose = cfg.Verbose
	}
	return nil
}

func (a *setupState) run(ctx context.Context, stderr io.Writer) error {
	out := a.outWriter()

	models, err := whisper.SelectModels(a.models)
	if err != nil {
		return err
	}
	if a.fetch != fetchPython && a.fetch != fetchHTTP {
		return fmt.Errorf("unknown fetch mode %q (expected %s or %s)", a.fetch, fetchPython, fetchHTTP)
	}

	var cacheDir string
	if a.fetch == fetchHTTP && !a.skipModels {
		cacheDir, err = platform.ResolveCacheDir(a.downloadRoot)
		if err != nil {
			return fmt.Errorf("resolve model cache directory: %w", err)
		}
	}

	fmt.Fprintln(out, "Whisper Setup")
	fmt.Fprintln(out, strings.Repeat("=", 40))
	fmt.Fprintln(out, "Installing Whisper requirements...")

	interp, err := a.findPython()
	if err == nil {
		err = a.install(ctx, interp, out, stderr)
	}
	if err != nil {
		fmt.Fprintf(out, "Failed to install requirements: %v\n", err)
		return fmt.Errorf("install requirements: %w", err)
	}
	fmt.Fprintln(out, "Requirements installed successfully")

	if !a.skipModels {
		fetcher, err := a.newFetcher(interp, cacheDir, stderr)
		if err != nil {
			return err
		}

		prefetcher := &provision.Prefetcher{Fetcher: fetcher, Out: out, Logger: a.log()}
		summary := prefetcher.Run(ctx, models)
		if len(summary.Failed) > 0 {
			a.log().Warn("some models were not pre-downloaded; the library fetches them on first use", zap.Strings("models", summary.FailedNames()))
		} else {
			a.log().Info("all models pre-downloaded", zap.Strings("models", summary.Fetched))
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Setup completed successfully!")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "You can now transcribe with:")
	fmt.Fprintln(out, "whisper-launcher <audio-file> [whisper options]")
	return nil
}

func (a *setupState) findPython() (*python.Interpreter, error) {
	if a.findPythonFn != nil {
		return a.findPythonFn()
	}
	return python.Find(python.FindOptions{
		Override:  a.python,
		SearchDir: a.exeDir(),
		Logger:    a.log(),
	})
}

func (a *setupState) install(ctx context.Context, interp *python.Interpreter, stdout, stderr io.Writer) error {
	if a.installFn != nil {
		return a.installFn(ctx, interp, stdout, stderr)
	}
	return provision.InstallRequirements(ctx, interp, provision.InstallOptions{
		Requirements: a.requirements,
		Stdout:       stdout,
		Stderr:       stderr,
		Logger:       a.log(),
	})
}

func (a *setupState) newFetcher(interp *python.Interpreter, cacheDir string, stderr io.Writer) (provision.Fetcher, error) {
	if a.fetcherFn != nil {
		return a.fetcherFn(interp, stderr)
	}

	if a.fetch == fetchHTTP {
		return &provision.HTTPFetcher{CacheDir: cacheDir, NoProgress: a.noProgress, Logger: a.log()}, nil
	}

	fetcher := &provision.PythonFetcher{Interpreter: interp, DownloadRoot: a.downloadRoot}
	if a.verbose {
		fetcher.Passthrough = stderr
	} else {
		spin := a.progressEnabled()
		fetcher.Spinner = func(description string) func() {
			return startSpinner(spin, description)
		}
	}
	return fetcher, nil
}
