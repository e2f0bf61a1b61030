package main

import (
	"log/slog"
	"os"

	"github.com/leonardo-meireles/vm-remediator/cmd/vm-remediator/commands"
)

func main() {
	// Until config is loaded, log at info in text format
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	commands.Execute()
}
