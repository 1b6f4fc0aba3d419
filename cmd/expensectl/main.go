package main

import (
	"os"

	"expenses/internal/cli"
	"expenses/internal/commands"
)

func main() {
	cli.LoadEnvFile()

	ctx, stop := cli.SignalContext()
	defer stop()

	if err := commands.NewRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
