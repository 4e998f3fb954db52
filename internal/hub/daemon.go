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
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"matrixhub/internal"
	"matrixhub/internal/logger"
	"matrixhub/internal/registry"
)

const (
	nonceCleanupInterval = 10 * time.Minute
	shutdownTimeout      = 5 * time.Second
)

// Daemon runs the host: devices, the entity registry, the API server and the poll loop
type Daemon struct {
	config        *Config
	configPath    string
	options       *internal.ModeOptions
	deviceManager *DeviceManager
	registry      *registry.Registry
	api           *APIServer
	logger        zerolog.Logger
	running       bool
	mutex         sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewDaemon loads the configuration and wires every component
func NewDaemon(configPath string, options *internal.ModeOptions) (*Daemon, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	daemon, err := NewDaemonWithConfig(config, options, logger.New())
	if err != nil {
		return nil, err
	}
	daemon.configPath = configPath
	return daemon, nil
}

// NewDaemonWithConfig wires a daemon around an already loaded configuration
func NewDaemonWithConfig(config *Config, options *internal.ModeOptions, log zerolog.Logger) (*Daemon, error) {
	if options == nil {
		options = internal.NewModeOptions()
	}
	config.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	daemon := &Daemon{
		config:  config,
		options: options,
		logger:  log,
		ctx:     ctx,
		cancel:  cancel,
	}

	if config.Registry.Path != "" {
		reg, err := registry.Open(config.Registry.Path)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to open entity registry: %w", err)
		}
		daemon.registry = reg
	}

	daemon.deviceManager = NewDeviceManager(config, options, log)

	var tokens *TokenService
	if config.API.JWTSecret != "" {
		tokens = NewTokenService(config.API.JWTSecret, config.Hub.ID)
	}

	var recorder Recorder
	if daemon.registry != nil {
		recorder = daemon.registry
	}
	daemon.api = NewAPIServer(daemon.deviceManager, config.Hub.ID, tokens, recorder, log)

	return daemon, nil
}

// Run starts the daemon and blocks until SIGINT, SIGTERM or Stop
func (d *Daemon) Run() error {
	if err := d.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		d.logger.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
	case <-d.ctx.Done():
		d.logger.Info().Msg("Context cancelled")
	}

	return d.Stop()
}

// Start sets up every device, then starts the API server and the background loops
func (d *Daemon) Start() error {
	d.mutex.Lock()
	if d.running {
		d.mutex.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.mutex.Unlock()

	d.logger.Info().
		Bool("debug", d.options.Debug).
		Bool("test_mode", d.options.Test).
		Str("hub_id", d.config.Hub.ID).
		Str("config_path", d.configPath).
		Msg("Starting matrixhub daemon")

	if err := d.deviceManager.Initialize(d.ctx); err != nil {
		d.setRunning(false)
		return fmt.Errorf("failed to initialize devices: %w", err)
	}
	d.recordEntities()

	if err := d.api.Start(d.config.API.Listen); err != nil {
		d.setRunning(false)
		return fmt.Errorf("failed to start API server: %w", err)
	}

	d.wg.Add(2)
	go d.pollLoop()
	go d.nonceCleanupLoop()

	d.logger.Info().
		Int("device_count", d.deviceManager.GetDeviceCount()).
		Dur("scan_interval", d.config.Hub.ScanInterval).
		Msg("Hub daemon started successfully")

	return nil
}

// Stop stops the daemon gracefully
func (d *Daemon) Stop() error {
	d.mutex.Lock()
	if !d.running {
		d.mutex.Unlock()
		return nil
	}
	d.running = false
	d.mutex.Unlock()

	d.logger.Info().Msg("Stopping hub daemon")
	d.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.api.Stop(ctx); err != nil {
		d.logger.Error().Err(err).Msg("Error stopping API server")
	}

	d.wg.Wait()
	d.deviceManager.Shutdown()

	if d.registry != nil {
		if err := d.registry.Close(); err != nil {
			d.logger.Error().Err(err).Msg("Error closing entity registry")
		}
	}

	d.logger.Info().Msg("Hub daemon stopped")
	return nil
}

// pollLoop updates every entity once per scan interval
func (d *Daemon) pollLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.Hub.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.PollOnce()
		case <-d.ctx.Done():
			d.logger.Debug().Msg("Poll loop stopping")
			return
		}
	}
}

// PollOnce runs one scan: update every entity and record the result
func (d *Daemon) PollOnce() {
	d.deviceManager.Poll(d.ctx)
	d.recordEntities()
}

func (d *Daemon) nonceCleanupLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(nonceCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.deviceManager.CleanupNonces()
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Daemon) recordEntities() {
	if d.registry == nil {
		return
	}
	for _, snapshot := range d.deviceManager.Entities() {
		if err := d.registry.Upsert(snapshot); err != nil {
			d.logger.Warn().
				Err(err).
				Str("unique_id", snapshot.UniqueID).
				Msg("Failed to record entity")
		}
	}
}

func (d *Daemon) setRunning(running bool) {
	d.mutex.Lock()
	d.running = running
	d.mutex.Unlock()
}

// IsRunning returns whether the daemon is currently running
func (d *Daemon) IsRunning() bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.running
}

// DeviceManager exposes the device manager
func (d *Daemon) DeviceManager() *DeviceManager {
	return d.deviceManager
}

// Registry returns the entity registry, or nil when disabled
func (d *Daemon) Registry() *registry.Registry {
	return d.registry
}

// APIHandler returns the HTTP handler of the API server
func (d *Daemon) APIHandler() http.Handler {
	return d.api.Handler()
}

// GetStatus returns the current status of the daemon
func (d *Daemon) GetStatus() map[string]interface{} {
	return map[string]interface{}{
		"running":       d.IsRunning(),
		"debug":         d.options.Debug,
		"test_mode":     d.options.Test,
		"device_count":  d.deviceManager.GetDeviceCount(),
		"devices":       d.deviceManager.GetAllDeviceInfo(),
		"nonce_cache":   d.deviceManager.GetNonceStats(),
		"scan_interval": d.config.Hub.ScanInterval.String(),
	}
}
