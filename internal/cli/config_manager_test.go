package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"matrixhub/internal/cli"
	"matrixhub/internal/hub"
)

func setupTestConfigManager(t *testing.T) *cli.ConfigManager {
	t.Helper()
	return cli.NewConfigManager(filepath.Join(t.TempDir(), "hub.yml"))
}

func createValidConfig() *hub.Config {
	return &hub.Config{
		Hub: hub.HubConfig{ID: "test-hub-id"},
		Devices: []hub.DeviceConfig{
			{
				ID:        "lounge",
				Type:      "mhub",
				IPAddress: "192.168.1.50",
				Discovery: "zone",
			},
		},
	}
}

func TestLoadConfig(t *testing.T) {
	cm := setupTestConfigManager(t)

	t.Run("load nonexistent config creates default", func(t *testing.T) {
		config, err := cm.LoadConfig()
		if err != nil {
			t.Fatalf("Failed to load config: %v", err)
		}
		if config.Hub.ID == "" {
			t.Error("Expected default config to carry a hub id")
		}
		if _, err := os.Stat(cm.GetConfigPath()); os.IsNotExist(err) {
			t.Error("Expected config file to be created")
		}
	})

	t.Run("load existing config", func(t *testing.T) {
		if err := cm.SaveConfig(createValidConfig()); err != nil {
			t.Fatalf("Failed to save config: %v", err)
		}

		config, err := cm.LoadConfig()
		if err != nil {
			t.Fatalf("Failed to load config: %v", err)
		}
		if config.Hub.ID != "test-hub-id" {
			t.Errorf("Expected hub ID test-hub-id, got %s", config.Hub.ID)
		}
		if err := cm.ValidateConfig(); err != nil {
			t.Errorf("Expected saved config to validate: %v", err)
		}
	})
}

func TestDeviceOperations(t *testing.T) {
	cm := setupTestConfigManager(t)
	if err := cm.SaveConfig(createValidConfig()); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	t.Run("add device", func(t *testing.T) {
		device := cm.CreateDeviceTemplate("office", "192.168.1.60")
		if err := cm.AddDevice(device); err != nil {
			t.Fatalf("Failed to add device: %v", err)
		}
		if !cm.DeviceExists("office") {
			t.Error("Expected office to exist after add")
		}

		stored, err := cm.GetDevice("office")
		if err != nil {
			t.Fatalf("Failed to get device: %v", err)
		}
		if stored.Discovery != "auto" || len(stored.Platforms) != 1 || stored.Platforms[0] != "media_player" {
			t.Errorf("Expected template defaults, got %+v", stored)
		}
	})

	t.Run("add duplicate device", func(t *testing.T) {
		err := cm.AddDevice(cm.CreateDeviceTemplate("office", "192.168.1.61"))
		if err == nil {
			t.Error("Expected error for duplicate device id")
		}
	})

	t.Run("add invalid device", func(t *testing.T) {
		tests := []hub.DeviceConfig{
			{ID: "", IPAddress: "192.168.1.70"},
			{ID: "noip"},
			{ID: "bad", IPAddress: "192.168.1.70", Discovery: "magic"},
			{ID: "bad", IPAddress: "192.168.1.70", Platforms: []string{"light"}},
			{ID: "bad", IPAddress: "192.168.1.70", Type: "projector"},
		}
		for _, device := range tests {
			if err := cm.AddDevice(device); err == nil {
				t.Errorf("Expected error adding %+v", device)
			}
		}
	})

	t.Run("update device keeps id", func(t *testing.T) {
		updated := cm.CreateDeviceTemplate("ignored", "192.168.1.99")
		updated.Name = "Office Matrix"
		if err := cm.UpdateDevice("office", updated); err != nil {
			t.Fatalf("Failed to update device: %v", err)
		}

		stored, err := cm.GetDevice("office")
		if err != nil {
			t.Fatalf("Failed to get device: %v", err)
		}
		if stored.IPAddress != "192.168.1.99" || stored.Name != "Office Matrix" {
			t.Errorf("Expected updated fields, got %+v", stored)
		}
		if cm.DeviceExists("ignored") {
			t.Error("Expected update to keep the original id")
		}
	})

	t.Run("update missing device", func(t *testing.T) {
		if err := cm.UpdateDevice("missing", cm.CreateDeviceTemplate("", "192.168.1.1")); err == nil {
			t.Error("Expected error updating missing device")
		}
	})

	t.Run("remove device", func(t *testing.T) {
		if err := cm.RemoveDevice("office"); err != nil {
			t.Fatalf("Failed to remove device: %v", err)
		}
		devices, err := cm.ListDevices()
		if err != nil {
			t.Fatalf("Failed to list devices: %v", err)
		}
		if len(devices) != 1 || devices[0].ID != "lounge" {
			t.Errorf("Expected only lounge to remain, got %+v", devices)
		}
	})

	t.Run("remove last device leaves an editable file", func(t *testing.T) {
		if err := cm.RemoveDevice("lounge"); err != nil {
			t.Fatalf("Failed to remove device: %v", err)
		}
		if err := cm.ValidateConfig(); err == nil {
			t.Error("Expected validation to fail without devices")
		}
		if err := cm.AddDevice(cm.CreateDeviceTemplate("lounge", "192.168.1.50")); err != nil {
			t.Errorf("Expected to add a device to an empty config: %v", err)
		}
	})

	t.Run("remove missing device", func(t *testing.T) {
		if err := cm.RemoveDevice("missing"); err == nil {
			t.Error("Expected error removing missing device")
		}
	})
}
