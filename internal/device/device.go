package device

import (
	"context"
	"encoding/json"
	"fmt"
)

// Device represents a configured device that can process commands
type Device interface {
	// Process handles a JSON-encoded action and executes the corresponding operation
	Process(ctx context.Context, actionJSON []byte) (*ActionResponse, error)

	// GetDeviceInfo returns basic information about the device
	GetDeviceInfo() DeviceInfo
}

// DeviceInfo contains basic information about a device
type DeviceInfo struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Model        string   `json:"model"`
	Name         string   `json:"name"`
	Address      string   `json:"address"`
	Capabilities []string `json:"capabilities"`
}

// ActionType represents the target of an action
type ActionType string

const (
	ActionTypeEntity ActionType = "entity"
	ActionTypeDevice ActionType = "device"
)

// EntityAction is an action hook on a single entity
type EntityAction string

const (
	EntityActionTurnOn       EntityAction = "turn_on"
	EntityActionTurnOff      EntityAction = "turn_off"
	EntityActionSelectSource EntityAction = "select_source"
	EntityActionUpdate       EntityAction = "update"
)

// DeviceAction is an action on the device as a whole
type DeviceAction string

const (
	DeviceActionTopology DeviceAction = "topology"
	DeviceActionEntities DeviceAction = "entities"
	DeviceActionRefresh  DeviceAction = "refresh"
)

// ActionRequest represents a JSON action request
type ActionRequest struct {
	Type       ActionType             `json:"type"`                // "entity" or "device"
	Action     string                 `json:"action"`              // specific action name
	EntityID   string                 `json:"entity_id,omitempty"` // unique id, entity actions only
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// ActionResponse represents the response from processing an action
type ActionResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Entity states
const (
	StateOn  = "on"
	StateOff = "off"
)

// Entity domains
const (
	DomainMediaPlayer = "media_player"
	DomainSwitch      = "switch"
)

// EntitySnapshot is the host-side view of one entity
type EntitySnapshot struct {
	UniqueID          string                 `json:"unique_id"`
	Name              string                 `json:"name"`
	Domain            string                 `json:"domain"`
	DeviceID          string                 `json:"device_id,omitempty"`
	State             string                 `json:"state"`
	Source            *string                `json:"source"`
	SourceList        []string               `json:"source_list,omitempty"`
	SupportedFeatures int                    `json:"supported_features"`
	Attributes        map[string]interface{} `json:"attributes,omitempty"`
}

// ParseActionRequest parses JSON input into an ActionRequest
func ParseActionRequest(actionJSON []byte) (*ActionRequest, error) {
	var request ActionRequest
	if err := json.Unmarshal(actionJSON, &request); err != nil {
		return nil, fmt.Errorf("failed to parse action request: %w", err)
	}

	if request.Type == "" {
		return nil, fmt.Errorf("action type is required")
	}

	if request.Action == "" {
		return nil, fmt.Errorf("action is required")
	}

	if request.Type == ActionTypeEntity && request.EntityID == "" {
		return nil, fmt.Errorf("entity_id is required for entity actions")
	}

	return &request, nil
}

// NewEntityAction builds the JSON for an entity action
func NewEntityAction(entityID string, action EntityAction, parameters map[string]interface{}) ([]byte, error) {
	return json.Marshal(ActionRequest{
		Type:       ActionTypeEntity,
		Action:     string(action),
		EntityID:   entityID,
		Parameters: parameters,
	})
}

// NewDeviceAction builds the JSON for a device action
func NewDeviceAction(action DeviceAction) ([]byte, error) {
	return json.Marshal(ActionRequest{
		Type:   ActionTypeDevice,
		Action: string(action),
	})
}
