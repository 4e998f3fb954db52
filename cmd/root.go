package cmd

import (
	"github.com/spf13/cobra"
	"matrixhub/internal/logger"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "matrixhub",
	Short: "matrixhub - control HDAnywhere MHUB matrix switchers",
	Long: `matrixhub talks to HDAnywhere MHUB HDMI matrix switchers over their local REST API.
It runs a small hub daemon exposing every switcher output as an entity, and includes
direct switcher commands and an interactive TUI.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.SetSilentMode(false)
			logger.SetLevel(logger.LevelDebug)
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(cliCmd)
	rootCmd.AddCommand(hubCmd)
	rootCmd.AddCommand(mhubCmd)
}

