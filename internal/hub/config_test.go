package hub_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"matrixhub/internal/hub"
	"matrixhub/internal/mhub"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hub.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		path := writeConfig(t, `
hub:
  id: test-hub
devices:
  - id: lounge
    ip_address: 192.168.1.50
`)
		config, err := hub.LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, hub.DefaultScanInterval, config.Hub.ScanInterval)
		assert.Equal(t, ":8081", config.API.Listen)
		assert.Empty(t, config.Registry.Path)
		require.Len(t, config.Devices, 1)
		assert.Equal(t, hub.DeviceTypeMHUB, config.Devices[0].Type)
	})

	t.Run("reads every field", func(t *testing.T) {
		path := writeConfig(t, `
hub:
  id: test-hub
  scan_interval: 30s
api:
  listen: 127.0.0.1:9000
  jwt_secret: s3cret
registry:
  path: /var/lib/matrixhub/entities.db
devices:
  - id: lounge
    type: mhub
    ip_address: 192.168.1.50
    name: Lounge Matrix
    discovery: zone
    platforms: [media_player, switch]
`)
		config, err := hub.LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, 30*time.Second, config.Hub.ScanInterval)
		assert.Equal(t, "127.0.0.1:9000", config.API.Listen)
		assert.Equal(t, "s3cret", config.API.JWTSecret)
		assert.Equal(t, "/var/lib/matrixhub/entities.db", config.Registry.Path)

		platformConfig := config.Devices[0].ToPlatformConfig()
		assert.Equal(t, "lounge", platformConfig.DeviceID)
		assert.Equal(t, "Lounge Matrix", platformConfig.Name)
		assert.Equal(t, "192.168.1.50", platformConfig.Address)
		assert.Equal(t, mhub.StrategyZoneMapped, platformConfig.Strategy)
		assert.Equal(t, []string{"media_player", "switch"}, platformConfig.Platforms)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := hub.LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
		assert.ErrorContains(t, err, "failed to read config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := hub.LoadConfig(writeConfig(t, "hub: [unclosed"))
		assert.ErrorContains(t, err, "failed to parse config file")
	})
}

func TestConfigValidate(t *testing.T) {
	valid := func() *hub.Config {
		return &hub.Config{
			Hub:     hub.HubConfig{ID: "test-hub"},
			Devices: []hub.DeviceConfig{{ID: "lounge", Type: "mhub", IPAddress: "192.168.1.50"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *hub.Config)
		wantErr string
	}{
		{"valid", func(c *hub.Config) {}, ""},
		{"missing hub id", func(c *hub.Config) { c.Hub.ID = "" }, "hub.id is required"},
		{"no devices", func(c *hub.Config) { c.Devices = nil }, "at least one device"},
		{"missing device id", func(c *hub.Config) { c.Devices[0].ID = "" }, "device[0].id is required"},
		{"missing ip", func(c *hub.Config) { c.Devices[0].IPAddress = "" }, "device[0].ip_address is required"},
		{"wrong type", func(c *hub.Config) { c.Devices[0].Type = "projector" }, "not supported"},
		{"bad discovery", func(c *hub.Config) { c.Devices[0].Discovery = "magic" }, "unknown discovery strategy"},
		{"bad platform", func(c *hub.Config) { c.Devices[0].Platforms = []string{"light"} }, "unsupported platform"},
		{"duplicate id", func(c *hub.Config) {
			c.Devices = append(c.Devices, hub.DeviceConfig{ID: "lounge", IPAddress: "192.168.1.51"})
		}, "duplicate device ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	config := hub.NewDefaultConfig()
	require.NoError(t, config.Validate())
	assert.NotEmpty(t, config.Hub.ID)

	path := filepath.Join(t.TempDir(), "hub.yml")
	require.NoError(t, config.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := hub.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config, loaded)
}

func TestGetDevice(t *testing.T) {
	config := hub.NewDefaultConfig()

	device, err := config.GetDevice("living_room_mhub")
	require.NoError(t, err)
	device.Name = "Renamed"
	assert.Equal(t, "Renamed", config.Devices[0].Name)

	_, err = config.GetDevice("missing")
	assert.Error(t, err)
}
