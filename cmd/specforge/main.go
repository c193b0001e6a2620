package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/specforge/specforge/cmd/specforge/commands"
	"github.com/specforge/specforge/internal/orchestrator"
)

// Version information - set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var runErr *orchestrator.RunError
		if errors.As(err, &runErr) {
			os.Exit(runErr.ExitCode())
		}
		os.Exit(1)
	}
}
