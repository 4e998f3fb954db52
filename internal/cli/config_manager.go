// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"fmt"
	"os"

	"matrixhub/internal/hub"
	"matrixhub/internal/mhub"
	"matrixhub/internal/platform"
)

// ConfigManager handles hub configuration file operations
type ConfigManager struct {
	configPath string
}

// NewConfigManager creates a new config manager
func NewConfigManager(configPath string) *ConfigManager {
	return &ConfigManager{
		configPath: configPath,
	}
}

// LoadConfig loads the hub configuration, creating a default file when none exists
func (cm *ConfigManager) LoadConfig() (*hub.Config, error) {
	if _, err := os.Stat(cm.configPath); os.IsNotExist(err) {
		defaultConfig := hub.NewDefaultConfig()
		if err := cm.SaveConfig(defaultConfig); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return defaultConfig, nil
	}

	config, err := hub.ReadConfig(cm.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return config, nil
}

// SaveConfig saves the hub configuration
func (cm *ConfigManager) SaveConfig(config *hub.Config) error {
	if err := hub.SaveConfig(config, cm.configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// AddDevice adds a new switcher to the configuration
func (cm *ConfigManager) AddDevice(device hub.DeviceConfig) error {
	if err := validateDevice(device); err != nil {
		return err
	}

	config, err := cm.LoadConfig()
	if err != nil {
		return err
	}

	for _, existingDevice := range config.Devices {
		if existingDevice.ID == device.ID {
			return fmt.Errorf("device with ID '%s' already exists", device.ID)
		}
	}

	config.Devices = append(config.Devices, device)
	return cm.SaveConfig(config)
}

// UpdateDevice replaces an existing device entry, keeping its ID
func (cm *ConfigManager) UpdateDevice(deviceID string, updatedDevice hub.DeviceConfig) error {
	updatedDevice.ID = deviceID
	if err := validateDevice(updatedDevice); err != nil {
		return err
	}

	config, err := cm.LoadConfig()
	if err != nil {
		return err
	}

	for i := range config.Devices {
		if config.Devices[i].ID == deviceID {
			config.Devices[i] = updatedDevice
			return cm.SaveConfig(config)
		}
	}

	return fmt.Errorf("device with ID '%s' not found", deviceID)
}

// RemoveDevice removes a device from the configuration
func (cm *ConfigManager) RemoveDevice(deviceID string) error {
	config, err := cm.LoadConfig()
	if err != nil {
		return err
	}

	for i, device := range config.Devices {
		if device.ID == deviceID {
			config.Devices = append(config.Devices[:i], config.Devices[i+1:]...)
			return cm.SaveConfig(config)
		}
	}

	return fmt.Errorf("device with ID '%s' not found", deviceID)
}

// GetDevice gets a specific device from the configuration
func (cm *ConfigManager) GetDevice(deviceID string) (*hub.DeviceConfig, error) {
	config, err := cm.LoadConfig()
	if err != nil {
		return nil, err
	}

	device, err := config.GetDevice(deviceID)
	if err != nil {
		return nil, fmt.Errorf("device with ID '%s' not found", deviceID)
	}
	return device, nil
}

// ListDevices returns all devices from the configuration
func (cm *ConfigManager) ListDevices() ([]hub.DeviceConfig, error) {
	config, err := cm.LoadConfig()
	if err != nil {
		return nil, err
	}

	return config.Devices, nil
}

// ValidateConfig validates the configuration file
func (cm *ConfigManager) ValidateConfig() error {
	config, err := cm.LoadConfig()
	if err != nil {
		return err
	}

	return config.Validate()
}

// GetConfigPath returns the configuration file path
func (cm *ConfigManager) GetConfigPath() string {
	return cm.configPath
}

// DeviceExists checks if a device with the given ID exists
func (cm *ConfigManager) DeviceExists(deviceID string) bool {
	_, err := cm.GetDevice(deviceID)
	return err == nil
}

// CreateDeviceTemplate returns a switcher entry with defaults filled in
func (cm *ConfigManager) CreateDeviceTemplate(id, ipAddress string) hub.DeviceConfig {
	return hub.DeviceConfig{
		ID:        id,
		Type:      hub.DeviceTypeMHUB,
		IPAddress: ipAddress,
		Discovery: string(mhub.StrategyAuto),
		Platforms: append([]string(nil), platform.DefaultPlatforms...),
	}
}

func validateDevice(device hub.DeviceConfig) error {
	if device.ID == "" {
		return fmt.Errorf("device id is required")
	}
	if device.IPAddress == "" {
		return fmt.Errorf("ip_address is required")
	}
	if device.Type != "" && device.Type != hub.DeviceTypeMHUB {
		return fmt.Errorf("unsupported device type: %s", device.Type)
	}
	if _, err := mhub.ParseStrategy(device.Discovery); err != nil {
		return err
	}
	for _, name := range device.Platforms {
		if err := platform.ValidatePlatform(name); err != nil {
			return err
		}
	}
	return nil
}
