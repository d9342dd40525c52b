// Package cli implements the toolloop command-line interface.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ToolLoop/ToolLoop/internal/config"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/ToolLoop/ToolLoop/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"  _____           _ _\n" +
		" |_   _|__   ___ | | |    ___   ___  _ __\n" +
		"   | |/ _ \\ / _ \\| | |   / _ \\ / _ \\| '_ \\\n" +
		"   | | (_) | (_) | | |__| (_) | (_) | |_) |\n" +
		"   |_|\\___/ \\___/|_|_____\\___/ \\___/| .__/\n" +
		"                                    |_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "toolloop",
	Short: "ToolLoop - Autonomous tool-calling agent",
	Long:  color.CyanString(logo) + "\nAn autonomous LLM agent loop with confirmed tool execution.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	config.LoadEnvFileCandidates()
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(usageCmd)
}
