package cmd

import (
	"github.com/spf13/cobra"
	"matrixhub/cmd/cli"
	"matrixhub/internal/logger"
)

var (
	debugFlag bool
	testFlag  bool
)

var cliCmd = &cobra.Command{
	Use:   "cli",
	Short: "Start the interactive CLI interface",
	Long: `Launch the interactive Terminal User Interface (TUI) for one MHUB.
Pick a discovery strategy, connect, then route inputs to outputs and switch power.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Set up logging based on debug or test flag
		if debugFlag || testFlag {
			logger.SetSilentMode(false) // Enable logging output
			if debugFlag {
				logger.SetLevel(logger.LevelDebug)
			}
		} else {
			logger.SetSilentMode(true) // Keep logging silent
		}

		log := logger.New()
		log.Info().
			Bool("debug", debugFlag).
			Bool("test", testFlag).
			Msg("Starting matrixhub CLI interface")

		if err := cli.StartTUI(debugFlag, testFlag); err != nil {
			log.Error().Err(err).Msg("Failed to start TUI")
			return err
		}

		return nil
	},
}

func init() {
	cliCmd.Flags().BoolVar(&debugFlag, "debug", false, "Enable debug logging for switcher requests")
	cliCmd.Flags().BoolVar(&testFlag, "test", false, "Connect to a built-in simulated switcher")
}
