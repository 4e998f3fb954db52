package platform

import (
	"context"

	"matrixhub/internal/device"
)

// Media player feature flags, matching the host's bit values
const (
	FeatureTurnOn       = 128
	FeatureTurnOff      = 256
	FeatureSelectSource = 2048
)

// Entity is one host-visible object backed by a switcher
type Entity interface {
	UniqueID() string
	Name() string
	Domain() string
	State() string
	SupportedFeatures() int
	Snapshot() device.EntitySnapshot

	// Action hooks. Failures are logged and swallowed; the entity keeps its previous state.
	TurnOn(ctx context.Context)
	TurnOff(ctx context.Context)
	Update(ctx context.Context)
}

// SourceSelector is implemented by entities that can route an input
type SourceSelector interface {
	Source() *string
	SourceList() []string
	SelectSource(ctx context.Context, source string)
}
