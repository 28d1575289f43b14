package cli

import (
	"os"

	"github.com/fmueller/whisperbridge/internal/config"
	"github.com/fmueller/whisperbridge/internal/launcher"
	"github.com/fmueller/whisperbridge/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type launcherState struct {
	commonState
}

// NewLauncherCmd builds the launcher around argv, the arguments destined
// for `python -m whisper`.
func NewLauncherCmd(argv []string) *cobra.Command {
	return newLauncherCmd(&launcherState{}, argv)
}

// newLauncherCmd builds a command that owns no arguments at all. Cobra is
// handed an empty command line so neither its flags nor its built-in
// help, completion and __complete commands can claim any of argv.
func newLauncherCmd(app *launcherState, argv []string) *cobra.Command {
	args := append([]string(nil), argv...)

	cmd := &cobra.Command{
		Use:                "whisper-launcher [whisper arguments...]",
		Short:              "Run the Whisper CLI and report failures as JSON",
		Args:               cobra.NoArgs,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		CompletionOptions:  cobra.CompletionOptions{DisableDefaultCmd: true},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.config()
			if err != nil {
				cfg, _ = config.FromLookup(os.LookupEnv)
			}

			logger, logErr := logging.New(logging.Options{
				Verbose: cfg.Verbose,
				JSON:    cfg.JSONLogs,
				Quiet:   true,
				Output:  cmd.ErrOrStderr(),
			})
			if logErr != nil {
				logger = zap.NewNop()
			}
			app.logger = logger
			if err != nil {
				app.log().Warn("ignoring unreadable configuration", zap.Error(err))
			}

			code := launcher.Run(cmd.Context(), launcher.Options{
				Python:        cfg.Python,
				ExecutableDir: app.exeDir(),
				Logger:        app.log(),
			}, args, cmd.OutOrStdout())
			if code != 0 {
				return &ExitError{Code: code}
			}
			return nil
		},
	}
	cmd.SetArgs([]string{})
	return cmd
}
