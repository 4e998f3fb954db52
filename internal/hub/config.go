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

package hub

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"matrixhub/internal/mhub"
	"matrixhub/internal/platform"
)

const (
	DeviceTypeMHUB      = "mhub"
	DefaultScanInterval = 10 * time.Second
	DefaultListen       = ":8081"
)

// Config represents the hub configuration structure
type Config struct {
	Hub      HubConfig      `yaml:"hub"`
	API      APIConfig      `yaml:"api"`
	Registry RegistryConfig `yaml:"registry"`
	Devices  []DeviceConfig `yaml:"devices"`
}

// HubConfig contains hub identity and polling cadence
type HubConfig struct {
	ID           string        `yaml:"id"`
	ScanInterval time.Duration `yaml:"scan_interval"`
}

// APIConfig contains the local HTTP API settings
type APIConfig struct {
	Listen    string `yaml:"listen"`
	JWTSecret string `yaml:"jwt_secret,omitempty"` // empty disables authentication
}

// RegistryConfig points at the sqlite entity registry. An empty path disables it.
type RegistryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// DeviceConfig represents a single switcher configuration
type DeviceConfig struct {
	ID        string   `yaml:"id"`
	Type      string   `yaml:"type"`
	IPAddress string   `yaml:"ip_address"`
	Name      string   `yaml:"name,omitempty"`
	Discovery string   `yaml:"discovery,omitempty"`
	Platforms []string `yaml:"platforms,omitempty"`
}

// LoadConfig loads and validates configuration from a YAML file
func LoadConfig(filepath string) (*Config, error) {
	config, err := ReadConfig(filepath)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// ReadConfig parses a YAML file and applies defaults without validating it.
// Editors use it so a file can be repaired one device at a time.
func ReadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Hub.ScanInterval <= 0 {
		c.Hub.ScanInterval = DefaultScanInterval
	}
	if c.API.Listen == "" {
		c.API.Listen = DefaultListen
	}
	for i := range c.Devices {
		if c.Devices[i].Type == "" {
			c.Devices[i].Type = DeviceTypeMHUB
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Hub.ID == "" {
		return fmt.Errorf("hub.id is required")
	}
	if c.Hub.ScanInterval < 0 {
		return fmt.Errorf("hub.scan_interval must not be negative")
	}

	if len(c.Devices) == 0 {
		return fmt.Errorf("at least one device must be configured")
	}

	deviceIDs := make(map[string]bool)
	for i, device := range c.Devices {
		if device.ID == "" {
			return fmt.Errorf("device[%d].id is required", i)
		}
		if deviceIDs[device.ID] {
			return fmt.Errorf("duplicate device ID: %s", device.ID)
		}
		deviceIDs[device.ID] = true

		if device.Type != "" && device.Type != DeviceTypeMHUB {
			return fmt.Errorf("device[%d].type %q is not supported", i, device.Type)
		}
		if device.IPAddress == "" {
			return fmt.Errorf("device[%d].ip_address is required", i)
		}
		if _, err := mhub.ParseStrategy(device.Discovery); err != nil {
			return fmt.Errorf("device[%d].discovery: %w", i, err)
		}
		for _, name := range device.Platforms {
			if err := platform.ValidatePlatform(name); err != nil {
				return fmt.Errorf("device[%d].platforms: %w", i, err)
			}
		}
	}

	return nil
}

// GetDevice returns a device configuration by ID
func (c *Config) GetDevice(id string) (*DeviceConfig, error) {
	for i := range c.Devices {
		if c.Devices[i].ID == id {
			return &c.Devices[i], nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", id)
}

// ToPlatformConfig converts a device entry into what the platform setup consumes.
// The entry must already have passed Validate.
func (d DeviceConfig) ToPlatformConfig() platform.Config {
	strategy, _ := mhub.ParseStrategy(d.Discovery)
	return platform.Config{
		DeviceID:  d.ID,
		Name:      d.Name,
		Address:   d.IPAddress,
		Strategy:  strategy,
		Platforms: d.Platforms,
	}
}

// Save saves the configuration to a YAML file
func (c *Config) Save(filepath string) error {
	return SaveConfig(c, filepath)
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, filepath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// NewDefaultConfig creates a configuration template with a fresh hub id
func NewDefaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			ID:           uuid.New().String(),
			ScanInterval: DefaultScanInterval,
		},
		API: APIConfig{
			Listen: DefaultListen,
		},
		Devices: []DeviceConfig{
			{
				ID:        "living_room_mhub",
				Type:      DeviceTypeMHUB,
				IPAddress: "192.168.1.50",
				Discovery: string(mhub.StrategyAuto),
				Platforms: []string{"media_player"},
			},
		},
	}
}
