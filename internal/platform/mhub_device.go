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

package platform

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"matrixhub/internal"
	"matrixhub/internal/device"
	"matrixhub/internal/logger"
	"matrixhub/internal/mhub"
)

// MHUBDevice implements the Device interface for one HDAnywhere MHUB
type MHUBDevice struct {
	config Config
	api    mhub.API
	logger zerolog.Logger

	mutex    sync.RWMutex
	entities []Entity
	byID     map[string]Entity
	topology *mhub.Topology
	setUp    bool
}

// NewMHUBDevice creates a device backed by a REST client for cfg.Address
func NewMHUBDevice(cfg Config, options *internal.ModeOptions) *MHUBDevice {
	return NewMHUBDeviceWithAPI(cfg, mhub.NewClient(cfg.Address, options), logger.Component("platform"))
}

// NewMHUBDeviceWithAPI creates a device on top of any switcher API implementation
func NewMHUBDeviceWithAPI(cfg Config, api mhub.API, log zerolog.Logger) *MHUBDevice {
	return &MHUBDevice{
		config: cfg,
		api:    api,
		logger: log.With().Str("device_id", cfg.DeviceID).Logger(),
		byID:   make(map[string]Entity),
	}
}

// Setup runs discovery and replaces the entity set, returning the number of entities.
// When discovery fails on a device that was set up before, the previous entities and
// topology stay in place and the error is returned.
func (d *MHUBDevice) Setup(ctx context.Context) (int, error) {
	entities, topology, err := Setup(ctx, d.config, d.api, d.logger)

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if err != nil && d.setUp {
		d.logger.Warn().
			Err(err).
			Int("entity_count", len(d.entities)).
			Msg("Keeping previous entities after failed discovery")
		return len(d.entities), err
	}

	byID := make(map[string]Entity, len(entities))
	for _, entity := range entities {
		byID[entity.UniqueID()] = entity
	}
	d.entities = entities
	d.byID = byID
	d.topology = topology
	d.setUp = true

	return len(entities), err
}

// EntityList returns the current entities in discovery order
func (d *MHUBDevice) EntityList() []Entity {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return append([]Entity(nil), d.entities...)
}

// Entity looks up an entity by unique id
func (d *MHUBDevice) Entity(uniqueID string) (Entity, bool) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	entity, ok := d.byID[uniqueID]
	return entity, ok
}

// Entities returns host snapshots of every entity
func (d *MHUBDevice) Entities() []device.EntitySnapshot {
	entities := d.EntityList()
	snapshots := make([]device.EntitySnapshot, 0, len(entities))
	for _, entity := range entities {
		snapshot := entity.Snapshot()
		snapshot.DeviceID = d.config.DeviceID
		snapshots = append(snapshots, snapshot)
	}
	return snapshots
}

// Topology returns the last discovery result, or nil before Setup
func (d *MHUBDevice) Topology() *mhub.Topology {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.topology
}

// Poll refreshes every entity from the switcher
func (d *MHUBDevice) Poll(ctx context.Context) {
	for _, entity := range d.EntityList() {
		entity.Update(ctx)
	}
}

// GetDeviceInfo returns information about this switcher
func (d *MHUBDevice) GetDeviceInfo() device.DeviceInfo {
	name := d.config.Name
	if topology := d.Topology(); name == "" && topology != nil {
		name = topology.Name
	}

	return device.DeviceInfo{
		ID:      d.config.DeviceID,
		Type:    "mhub",
		Model:   "HDAnywhere MHUB",
		Name:    name,
		Address: d.config.Address,
		Capabilities: []string{
			"power_control",
			"source_select",
			"topology_discovery",
		},
	}
}

// Process handles JSON action requests and routes them to entities or the device
func (d *MHUBDevice) Process(ctx context.Context, actionJSON []byte) (*device.ActionResponse, error) {
	request, err := device.ParseActionRequest(actionJSON)
	if err != nil {
		return &device.ActionResponse{
			Success: false,
			Error:   err.Error(),
		}, nil
	}

	switch request.Type {
	case device.ActionTypeEntity:
		return d.processEntityAction(ctx, request), nil
	case device.ActionTypeDevice:
		return d.processDeviceAction(ctx, request), nil
	default:
		return &device.ActionResponse{
			Success: false,
			Error:   fmt.Sprintf("unsupported action type: %s", request.Type),
		}, nil
	}
}

func (d *MHUBDevice) processEntityAction(ctx context.Context, request *device.ActionRequest) *device.ActionResponse {
	entity, ok := d.Entity(request.EntityID)
	if !ok {
		return &device.ActionResponse{
			Success: false,
			Error:   fmt.Sprintf("entity not found: %s", request.EntityID),
		}
	}

	switch device.EntityAction(request.Action) {
	case device.EntityActionTurnOn:
		entity.TurnOn(ctx)
	case device.EntityActionTurnOff:
		entity.TurnOff(ctx)
	case device.EntityActionUpdate:
		entity.Update(ctx)
	case device.EntityActionSelectSource:
		selector, ok := entity.(SourceSelector)
		if !ok {
			return &device.ActionResponse{
				Success: false,
				Error:   fmt.Sprintf("entity %s does not support source selection", request.EntityID),
			}
		}
		source, ok := request.Parameters["source"].(string)
		if !ok {
			return &device.ActionResponse{
				Success: false,
				Error:   "source parameter is required for select_source action",
			}
		}
		selector.SelectSource(ctx, source)
	default:
		return &device.ActionResponse{
			Success: false,
			Error:   fmt.Sprintf("unsupported entity action: %s", request.Action),
		}
	}

	snapshot := entity.Snapshot()
	snapshot.DeviceID = d.config.DeviceID
	return &device.ActionResponse{
		Success: true,
		Data:    snapshot,
	}
}

func (d *MHUBDevice) processDeviceAction(ctx context.Context, request *device.ActionRequest) *device.ActionResponse {
	switch device.DeviceAction(request.Action) {
	case device.DeviceActionTopology:
		topology := d.Topology()
		if topology == nil {
			return &device.ActionResponse{Success: false, Error: "device has not been set up"}
		}
		return &device.ActionResponse{Success: true, Data: topology}
	case device.DeviceActionEntities:
		return &device.ActionResponse{Success: true, Data: d.Entities()}
	case device.DeviceActionRefresh:
		count, err := d.Setup(ctx)
		if err != nil {
			return &device.ActionResponse{
				Success: false,
				Error:   fmt.Sprintf("refresh failed: %v", err),
			}
		}
		return &device.ActionResponse{
			Success: true,
			Data:    map[string]interface{}{"entity_count": count},
		}
	default:
		return &device.ActionResponse{
			Success: false,
			Error:   fmt.Sprintf("unsupported device action: %s", request.Action),
		}
	}
}
