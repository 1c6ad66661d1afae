package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kestrel-cli",
	Short: "Kestrel CLI tool",
	Long: `Kestrel CLI is a command-line companion for the Kestrel chat relay.

Available commands:
  token    Inspect and issue relay access tokens

Use "kestrel-cli [command] --help" for more information about a specific command.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
