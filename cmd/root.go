// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pr-stats",
	Short: "A CLI tool to report pull request engagement across GitHub repositories.",
	Long: `pr-stats is a CLI tool that analyzes the closed pull requests of a set of
GitHub repositories within a time window. It reports who authored and reviewed
pull requests, how long pull requests took to be reviewed and merged, and ranks
the most active contributors across all repositories.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
}
