package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"matrixhub/internal"
	"matrixhub/internal/device"
	"matrixhub/internal/mhub"
	"matrixhub/internal/platform"
)

// DeviceManager owns the configured switchers and the entities they expose
type DeviceManager struct {
	devices    map[string]*platform.MHUBDevice
	order      []string
	config     *Config
	options    *internal.ModeOptions
	mutex      sync.RWMutex
	logger     zerolog.Logger
	nonceCache *NonceCache
	simulators []func() error
}

// NewDeviceManager creates a new device manager
func NewDeviceManager(config *Config, options *internal.ModeOptions, log zerolog.Logger) *DeviceManager {
	if options == nil {
		options = internal.NewModeOptions()
	}
	return &DeviceManager{
		devices:    make(map[string]*platform.MHUBDevice),
		config:     config,
		options:    options,
		logger:     log.With().Str("component", "device_manager").Logger(),
		nonceCache: NewNonceCache(50, time.Hour),
	}
}

// Initialize creates every configured device and runs its platform setup. Entities are
// updated once before they become visible to the host.
func (dm *DeviceManager) Initialize(ctx context.Context) error {
	dm.logger.Info().
		Int("device_count", len(dm.config.Devices)).
		Msg("Initializing devices")

	devices := make(map[string]*platform.MHUBDevice, len(dm.config.Devices))
	order := make([]string, 0, len(dm.config.Devices))

	for _, deviceConfig := range dm.config.Devices {
		dev, err := dm.createDevice(deviceConfig)
		if err != nil {
			dm.logger.Error().
				Str("device_id", deviceConfig.ID).
				Err(err).
				Msg("Failed to create device")
			return fmt.Errorf("failed to create device %s: %w", deviceConfig.ID, err)
		}

		count, err := dev.Setup(ctx)
		if err != nil {
			dm.logger.Warn().
				Str("device_id", deviceConfig.ID).
				Err(err).
				Msg("Device discovery incomplete, refresh it once the switcher is reachable")
		}
		devices[deviceConfig.ID] = dev
		order = append(order, deviceConfig.ID)

		dm.logger.Info().
			Str("device_id", deviceConfig.ID).
			Str("ip_address", deviceConfig.IPAddress).
			Int("entity_count", count).
			Msg("Device initialized successfully")
	}

	dm.mutex.Lock()
	dm.devices = devices
	dm.order = order
	dm.mutex.Unlock()

	return nil
}

// createDevice creates a device instance based on its configuration
func (dm *DeviceManager) createDevice(config DeviceConfig) (*platform.MHUBDevice, error) {
	if config.Type != "" && config.Type != DeviceTypeMHUB {
		return nil, fmt.Errorf("unsupported device type: %s", config.Type)
	}

	cfg := config.ToPlatformConfig()
	log := dm.logger.With().Str("component", "platform").Logger()

	if dm.options.Test {
		sim := mhub.NewSimulator()
		address, stop, err := sim.Serve()
		if err != nil {
			return nil, err
		}
		dm.mutex.Lock()
		dm.simulators = append(dm.simulators, stop)
		dm.mutex.Unlock()

		dm.logger.Info().
			Str("device_id", config.ID).
			Str("simulator_address", address).
			Msg("Test mode: using simulated switcher")
		cfg.Address = address
	}

	client := mhub.NewClient(cfg.Address, dm.options).
		WithLogger(dm.logger.With().Str("component", "mhub").Str("address", cfg.Address).Logger())

	return platform.NewMHUBDeviceWithAPI(cfg, client, log), nil
}

// GetDevice returns a device by ID
func (dm *DeviceManager) GetDevice(id string) (*platform.MHUBDevice, error) {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	dev, exists := dm.devices[id]
	if !exists {
		return nil, fmt.Errorf("device not found: %s", id)
	}

	return dev, nil
}

// Devices returns the managed devices in configuration order
func (dm *DeviceManager) Devices() []*platform.MHUBDevice {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	devices := make([]*platform.MHUBDevice, 0, len(dm.order))
	for _, id := range dm.order {
		devices = append(devices, dm.devices[id])
	}
	return devices
}

// GetAllDeviceInfo returns information for all devices
func (dm *DeviceManager) GetAllDeviceInfo() []device.DeviceInfo {
	devices := dm.Devices()
	infos := make([]device.DeviceInfo, 0, len(devices))
	for _, dev := range devices {
		infos = append(infos, dev.GetDeviceInfo())
	}
	return infos
}

// Entities returns snapshots of every entity across all devices
func (dm *DeviceManager) Entities() []device.EntitySnapshot {
	var snapshots []device.EntitySnapshot
	for _, dev := range dm.Devices() {
		snapshots = append(snapshots, dev.Entities()...)
	}
	return snapshots
}

// FindEntity returns the id of the device owning uniqueID and the entity snapshot
func (dm *DeviceManager) FindEntity(uniqueID string) (string, *device.EntitySnapshot, bool) {
	for _, dev := range dm.Devices() {
		if entity, ok := dev.Entity(uniqueID); ok {
			snapshot := entity.Snapshot()
			snapshot.DeviceID = dev.GetDeviceInfo().ID
			return snapshot.DeviceID, &snapshot, true
		}
	}
	return "", nil, false
}

// Poll updates every entity of every device once
func (dm *DeviceManager) Poll(ctx context.Context) {
	for _, dev := range dm.Devices() {
		if ctx.Err() != nil {
			return
		}
		dev.Poll(ctx)
	}
}

// ProcessDeviceAction processes an action for a specific device
func (dm *DeviceManager) ProcessDeviceAction(ctx context.Context, deviceID string, actionJSON []byte) (*device.ActionResponse, error) {
	dev, err := dm.GetDevice(deviceID)
	if err != nil {
		return &device.ActionResponse{
			Success: false,
			Error:   fmt.Sprintf("Device not found: %s", deviceID),
		}, nil
	}

	dm.logger.Debug().
		Str("device_id", deviceID).
		RawJSON("action", actionJSON).
		Msg("Processing device action")

	response, err := dev.Process(ctx, actionJSON)
	if err != nil {
		dm.logger.Error().
			Str("device_id", deviceID).
			Err(err).
			Msg("Device action processing failed")
		return &device.ActionResponse{
			Success: false,
			Error:   fmt.Sprintf("Action processing failed: %v", err),
		}, nil
	}

	dm.logger.Info().
		Str("device_id", deviceID).
		Bool("success", response.Success).
		Msg("Device action processed")

	return response, nil
}

// ProcessDeviceActionWithNonce processes an action once per nonce. A repeated nonce gets
// the cached response and no call reaches the switcher.
func (dm *DeviceManager) ProcessDeviceActionWithNonce(ctx context.Context, deviceID, nonce string, actionJSON []byte) (*device.ActionResponse, error) {
	if cachedResponse, found := dm.nonceCache.CheckNonce(deviceID, nonce); found {
		dm.logger.Info().
			Str("device_id", deviceID).
			Str("nonce", nonce).
			Msg("Returning cached response for duplicate nonce")
		return cachedResponse, nil
	}

	response, err := dm.ProcessDeviceAction(ctx, deviceID, actionJSON)
	if err != nil {
		return response, err
	}

	if nonce != "" {
		dm.nonceCache.StoreResponse(deviceID, nonce, response)
		dm.logger.Debug().
			Str("device_id", deviceID).
			Str("nonce", nonce).
			Bool("success", response.Success).
			Msg("Cached response for nonce")
	}

	return response, nil
}

// CleanupNonces drops expired nonce responses
func (dm *DeviceManager) CleanupNonces() {
	if expired := dm.nonceCache.PerformCleanup(); expired > 0 {
		dm.logger.Debug().Int("expired_count", expired).Msg("Cleaned up expired nonces")
	}
}

// GetNonceStats returns nonce cache statistics
func (dm *DeviceManager) GetNonceStats() map[string]interface{} {
	return dm.nonceCache.GetStats()
}

// GetDeviceCount returns the number of managed devices
func (dm *DeviceManager) GetDeviceCount() int {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()
	return len(dm.devices)
}

// Shutdown drops every device and stops test-mode simulators
func (dm *DeviceManager) Shutdown() {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	dm.logger.Info().
		Int("device_count", len(dm.devices)).
		Msg("Shutting down device manager")

	dm.nonceCache.Shutdown()

	for _, stop := range dm.simulators {
		if err := stop(); err != nil {
			dm.logger.Warn().Err(err).Msg("Failed to stop simulator")
		}
	}
	dm.simulators = nil
	dm.devices = make(map[string]*platform.MHUBDevice)
	dm.order = nil

	dm.logger.Info().Msg("Device manager shutdown complete")
}
