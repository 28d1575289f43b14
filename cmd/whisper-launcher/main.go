package main

import (
	"errors"
	"os"

	"github.com/fmueller/whisperbridge/internal/cli"
	"github.com/fmueller/whisperbridge/internal/launcher"
)

func main() {
	cmd := cli.NewLauncherCmd(os.Args[1:])
	err := cmd.Execute()
	if err == nil {
		return
	}

	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		_ = launcher.WriteError(os.Stdout, err.Error())
	}
	os.Exit(cli.ExitCode(err))
}
