package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"matrixhub/internal"
	"matrixhub/internal/cli"
	"matrixhub/internal/hub"
	"matrixhub/internal/logger"
	"matrixhub/internal/mhub"
)

var (
	hubConfigPath string
	hubDebugFlag  bool
	hubTestFlag   bool

	deviceName      string
	deviceDiscovery string
	devicePlatforms []string

	tokenSubject string
	tokenTTL     time.Duration
)

var hubCmd = &cobra.Command{
	Use:   "hub",
	Short: "Start the matrixhub daemon",
	Long: `The hub daemon loads every configured MHUB, registers one entity per switcher output,
polls entity state every scan interval and serves a local HTTP API for control.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.SetSilentMode(false)
		if hubDebugFlag {
			logger.SetLevel(logger.LevelDebug)
		} else {
			logger.SetLevel(logger.LevelInfo)
		}

		log := logger.New()
		log.Info().
			Str("config_path", hubConfigPath).
			Bool("debug", hubDebugFlag).
			Bool("test", hubTestFlag).
			Msg("Starting matrixhub daemon")

		if _, err := os.Stat(hubConfigPath); os.IsNotExist(err) {
			if err := hub.SaveConfig(hub.NewDefaultConfig(), hubConfigPath); err != nil {
				log.Error().Err(err).Msg("Failed to create default config file")
				return fmt.Errorf("failed to create default config file: %w", err)
			}
			log.Info().
				Str("config_path", hubConfigPath).
				Msg("Created default configuration file. Please edit it with your settings.")
			return nil
		}

		options := internal.NewModeOptions(internal.WithDebug(hubDebugFlag), internal.WithTest(hubTestFlag))
		daemon, err := hub.NewDaemon(hubConfigPath, options)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create hub daemon")
			return fmt.Errorf("failed to create hub daemon: %w", err)
		}

		if err := daemon.Run(); err != nil {
			log.Error().Err(err).Msg("Hub daemon stopped with error")
			return fmt.Errorf("hub daemon error: %w", err)
		}

		return nil
	},
}

var hubStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check a running hub daemon",
	Long:  `Query the /health endpoint of the hub configured in the config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := hub.LoadConfig(hubConfigPath)
		if err != nil {
			return err
		}

		listen := config.API.Listen
		if strings.HasPrefix(listen, ":") {
			listen = "127.0.0.1" + listen
		}

		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get("http://" + listen + "/health")
		if err != nil {
			return fmt.Errorf("hub is not reachable at %s: %w", listen, err)
		}
		defer resp.Body.Close()

		var health hub.APIResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			return fmt.Errorf("failed to decode health response: %w", err)
		}

		return printJSON(cmd, health)
	},
}

var hubConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage hub configuration",
	Long:  `Generate or validate hub configuration files.`,
}

var hubConfigGenerateCmd = &cobra.Command{
	Use:   "generate [config-file]",
	Short: "Generate default configuration file",
	Long:  `Generate a default configuration file with example settings and a fresh hub id.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := hubConfigPath
		if len(args) > 0 {
			configPath = args[0]
		}

		if err := hub.SaveConfig(hub.NewDefaultConfig(), configPath); err != nil {
			return fmt.Errorf("failed to save default config: %w", err)
		}

		cmd.Printf("Default configuration saved to: %s\n", configPath)
		cmd.Println("Please edit the file with the IP addresses of your switchers.")
		return nil
	},
}

var hubConfigValidateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate configuration file",
	Long:  `Validate a hub configuration file for syntax and required fields.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := hubConfigPath
		if len(args) > 0 {
			configPath = args[0]
		}

		config, err := hub.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		cmd.Printf("Configuration file is valid: %s\n", configPath)
		cmd.Printf("Hub id: %s\n", config.Hub.ID)
		cmd.Printf("Scan interval: %s\n", config.Hub.ScanInterval)
		cmd.Printf("API listen: %s (auth: %t)\n", config.API.Listen, config.API.JWTSecret != "")
		cmd.Printf("Configured devices: %d\n", len(config.Devices))
		printDevices(cmd, config.Devices)

		return nil
	},
}

var hubDeviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Manage configured switchers",
}

var hubDeviceAddCmd = &cobra.Command{
	Use:   "add <id> <ip_address>",
	Short: "Add a switcher to the configuration",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager := cli.NewConfigManager(hubConfigPath)

		device := manager.CreateDeviceTemplate(args[0], args[1])
		device.Name = deviceName
		if deviceDiscovery != "" {
			device.Discovery = deviceDiscovery
		}
		if len(devicePlatforms) > 0 {
			device.Platforms = devicePlatforms
		}

		if err := manager.AddDevice(device); err != nil {
			return err
		}
		cmd.Printf("Added device %s at %s\n", device.ID, device.IPAddress)
		return nil
	},
}

var hubDeviceRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a switcher from the configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cli.NewConfigManager(hubConfigPath).RemoveDevice(args[0]); err != nil {
			return err
		}
		cmd.Printf("Removed device %s\n", args[0])
		return nil
	},
}

var hubDeviceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured switchers",
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := cli.NewConfigManager(hubConfigPath).ListDevices()
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			cmd.Println("No devices configured")
			return nil
		}
		printDevices(cmd, devices)
		return nil
	},
}

var hubTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API bearer token",
	Long:  `Issue an HS256 token signed with api.jwt_secret for calling the hub API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := hub.LoadConfig(hubConfigPath)
		if err != nil {
			return err
		}
		if config.API.JWTSecret == "" {
			return fmt.Errorf("api.jwt_secret is not set in %s", hubConfigPath)
		}

		token, err := hub.NewTokenService(config.API.JWTSecret, config.Hub.ID).GenerateToken(tokenSubject, tokenTTL)
		if err != nil {
			return fmt.Errorf("failed to issue token: %w", err)
		}
		cmd.Println(token)
		return nil
	},
}

func printDevices(cmd *cobra.Command, devices []hub.DeviceConfig) {
	for _, device := range devices {
		discovery := device.Discovery
		if discovery == "" {
			discovery = string(mhub.StrategyAuto)
		}
		line := fmt.Sprintf("  - %s (%s) at %s, discovery %s", device.ID, device.Type, device.IPAddress, discovery)
		if device.Name != "" {
			line += fmt.Sprintf(", name %q", device.Name)
		}
		if len(device.Platforms) > 0 {
			line += ", platforms " + strings.Join(device.Platforms, ",")
		}
		cmd.Println(line)
	}
}

func init() {
	hubCmd.PersistentFlags().StringVarP(&hubConfigPath, "config", "c", "hub.yml", "Path to hub configuration file")
	hubCmd.Flags().BoolVarP(&hubDebugFlag, "debug", "d", false, "Enable debug logging")
	hubCmd.Flags().BoolVar(&hubTestFlag, "test", false, "Run every device against a simulated switcher")

	hubDeviceAddCmd.Flags().StringVar(&deviceName, "name", "", "Display name")
	hubDeviceAddCmd.Flags().StringVar(&deviceDiscovery, "discovery", "", "Discovery strategy: auto, zone, label or static")
	hubDeviceAddCmd.Flags().StringSliceVar(&devicePlatforms, "platforms", nil, "Platforms: media_player, switch")

	hubTokenCmd.Flags().StringVar(&tokenSubject, "subject", "cli", "Token subject")
	hubTokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime, 0 for no expiry")

	hubCmd.AddCommand(hubStatusCmd)
	hubCmd.AddCommand(hubConfigCmd)
	hubConfigCmd.AddCommand(hubConfigGenerateCmd)
	hubConfigCmd.AddCommand(hubConfigValidateCmd)
	hubCmd.AddCommand(hubDeviceCmd)
	hubDeviceCmd.AddCommand(hubDeviceAddCmd)
	hubDeviceCmd.AddCommand(hubDeviceRemoveCmd)
	hubDeviceCmd.AddCommand(hubDeviceListCmd)
	hubCmd.AddCommand(hubTokenCmd)
}
