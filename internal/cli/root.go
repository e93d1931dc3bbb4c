// Package cli implements the lifeloop command-line interface.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/serigela/lifeloop/internal/cli.version=1.2.3"
	version = "0.3.1"
	logo    = "\n" +
		"  _     _  __      _\n" +
		" | |   (_)/ _| ___| |    ___   ___  _ __\n" +
		" | |   | | |_ / _ \\ |   / _ \\ / _ \\| '_ \\\n" +
		" | |___| |  _|  __/ |__| (_) | (_) | |_) |\n" +
		" |_____|_|_|  \\___|_____\\___/ \\___/| .__/\n" +
		"                                   |_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "lifeloop",
	Short: "LifeLoop - Personal Automation Platform",
	Long:  color.CyanString(logo) + "\nScheduled personal agents, one message bus, composite insights.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(insightsCmd)
}
