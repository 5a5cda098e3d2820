package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "projecthub-cli",
	Short: "ProjectHub CLI tool",
	Long: `ProjectHub CLI is a command-line interface for inspecting the
real-time collaboration layer.

Available commands:
  topics    Inspect the topics flowing over the pub/sub bus

Use "projecthub-cli [command] --help" for more information about a specific command.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
