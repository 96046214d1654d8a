package main

import (
	"log/slog"
	"os"

	"github.com/fly-io/update-agent/cmd/update-agent/commands"
)

func main() {
	// Text logs on stdout until --log-level / --log-format say otherwise
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	commands.Execute()
}
