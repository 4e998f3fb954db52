package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"matrixhub/internal"
	"matrixhub/internal/logger"
	"matrixhub/internal/mhub"
	"matrixhub/internal/platform"
)

var (
	mhubIP        string
	mhubDiscovery string
	mhubDebug     bool
	mhubTest      bool
)

var mhubCmd = &cobra.Command{
	Use:   "mhub",
	Short: "Talk to an MHUB switcher directly",
	Long: `Query and control one HDAnywhere MHUB over its REST API without running the hub.
Use --test to run against a built-in simulated switcher.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if mhubDebug || verbose {
			logger.SetSilentMode(false)
			logger.SetLevel(logger.LevelDebug)
		}
	},
}

// newMHUBClient returns a client for --ip, or for a simulator in test mode. The returned
// function stops the simulator.
func newMHUBClient() (*mhub.Client, func(), error) {
	options := internal.NewModeOptions(internal.WithDebug(mhubDebug), internal.WithTest(mhubTest))

	if mhubTest {
		address, stop, err := mhub.NewSimulator().Serve()
		if err != nil {
			return nil, nil, err
		}
		return mhub.NewClient(address, options), func() { stop() }, nil
	}

	if mhubIP == "" {
		return nil, nil, fmt.Errorf("--ip is required")
	}
	return mhub.NewClient(mhubIP, options), func() {}, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

var mhubDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Probe the switcher and print its topology",
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy, err := mhub.ParseStrategy(mhubDiscovery)
		if err != nil {
			return err
		}
		client, stop, err := newMHUBClient()
		if err != nil {
			return err
		}
		defer stop()

		topology, err := mhub.Discover(context.Background(), client, strategy)
		if err != nil {
			return fmt.Errorf("discovery failed: %w", err)
		}
		return printJSON(cmd, topology)
	},
}

var mhubStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print system info and power state",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, stop, err := newMHUBClient()
		if err != nil {
			return err
		}
		defer stop()

		ctx := context.Background()
		info, err := client.GetSystemInfo(ctx)
		if err != nil {
			return fmt.Errorf("failed to read system info: %w", err)
		}
		power, err := client.GetPowerState(ctx)
		if err != nil {
			return fmt.Errorf("failed to read power state: %w", err)
		}

		cmd.Printf("MHUB:     %s\n", info.MHUB.Name)
		cmd.Printf("Address:  %s\n", client.Address())
		if info.MHUB.FirmwareVersion != "" {
			cmd.Printf("Firmware: %s\n", info.MHUB.FirmwareVersion)
		}
		cmd.Printf("Inputs:   %d\n", len(info.IOData.InputVideo))
		cmd.Printf("Outputs:  %d\n", len(info.IOData.OutputVideo))
		if power {
			cmd.Println("Power:    on")
		} else {
			cmd.Println("Power:    off")
		}
		return nil
	},
}

var mhubPowerCmd = &cobra.Command{
	Use:       "power [on|off]",
	Short:     "Switch the matrix on or off",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		client, stop, err := newMHUBClient()
		if err != nil {
			return err
		}
		defer stop()

		if err := client.SetPower(context.Background(), args[0] == "on"); err != nil {
			return fmt.Errorf("failed to set power: %w", err)
		}
		cmd.Printf("Power %s command sent\n", args[0])
		return nil
	},
}

var mhubSwitchCmd = &cobra.Command{
	Use:   "switch <output> <input>",
	Short: "Route an input to an output",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, stop, err := newMHUBClient()
		if err != nil {
			return err
		}
		defer stop()

		output, input := mhub.ID(args[0]), mhub.ID(args[1])
		if err := client.SwitchInput(context.Background(), output, input); err != nil {
			return fmt.Errorf("failed to switch output %s to input %s: %w", output, input, err)
		}
		cmd.Printf("Output %s now shows input %s\n", output, input)
		return nil
	},
}

var mhubEntitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "Build the entities the hub would register and print them",
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy, err := mhub.ParseStrategy(mhubDiscovery)
		if err != nil {
			return err
		}
		platforms, err := cmd.Flags().GetStringSlice("platforms")
		if err != nil {
			return err
		}
		for _, name := range platforms {
			if err := platform.ValidatePlatform(name); err != nil {
				return err
			}
		}

		client, stop, err := newMHUBClient()
		if err != nil {
			return err
		}
		defer stop()

		cfg := platform.Config{
			DeviceID:  "cli",
			Address:   client.Address(),
			Strategy:  strategy,
			Platforms: platforms,
		}
		dev := platform.NewMHUBDeviceWithAPI(cfg, client, logger.Component("platform"))
		if _, err := dev.Setup(context.Background()); err != nil {
			return err
		}
		return printJSON(cmd, dev.Entities())
	},
}

func init() {
	mhubCmd.PersistentFlags().StringVar(&mhubIP, "ip", "", "Switcher IP address (or host:port)")
	mhubCmd.PersistentFlags().StringVar(&mhubDiscovery, "discovery", "auto", "Discovery strategy: auto, zone, label or static")
	mhubCmd.PersistentFlags().BoolVarP(&mhubDebug, "debug", "d", false, "Enable debug logging")
	mhubCmd.PersistentFlags().BoolVar(&mhubTest, "test", false, "Use a simulated switcher")

	mhubEntitiesCmd.Flags().StringSlice("platforms", platform.DefaultPlatforms, "Platforms to set up: media_player, switch")

	mhubCmd.AddCommand(mhubDiscoverCmd)
	mhubCmd.AddCommand(mhubStatusCmd)
	mhubCmd.AddCommand(mhubPowerCmd)
	mhubCmd.AddCommand(mhubSwitchCmd)
	mhubCmd.AddCommand(mhubEntitiesCmd)
}
