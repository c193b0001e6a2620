package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "specforge",
	Short: "SpecForge - deterministic spec-to-pack document generator",
	Long: `SpecForge turns a minimal source specification into a complete
documentation pack: PRD, test plan, diagrams, and roadmap.

A fixed pipeline of generation agents runs over a shared blackboard.
Every artifact is hashed into a sealed manifest, every stage is recorded
in an append-only audit log, and identical inputs produce identical
outputs apart from the manifest's generation timestamp.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
