package platform

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"matrixhub/internal/device"
	"matrixhub/internal/mhub"
)

// Config describes one switcher as the host loads it
type Config struct {
	DeviceID  string
	Name      string
	Address   string
	Strategy  mhub.Strategy
	Platforms []string
}

// DefaultPlatforms is used when a device does not list any
var DefaultPlatforms = []string{device.DomainMediaPlayer}

// ValidatePlatform rejects unknown platform names
func ValidatePlatform(name string) error {
	switch name {
	case device.DomainMediaPlayer, device.DomainSwitch:
		return nil
	}
	return fmt.Errorf("unsupported platform: %s", name)
}

// Setup discovers the switcher topology and builds the entities for the configured platforms.
// Every entity is updated once before it is returned. A discovery failure is logged and
// returned together with whatever entities could still be built.
func Setup(ctx context.Context, cfg Config, api mhub.API, log zerolog.Logger) ([]Entity, *mhub.Topology, error) {
	platforms := cfg.Platforms
	if len(platforms) == 0 {
		platforms = DefaultPlatforms
	}

	var entities []Entity
	var topology *mhub.Topology
	var discoverErr error

	for _, name := range platforms {
		switch name {
		case device.DomainMediaPlayer:
			var err error
			topology, err = mhub.Discover(ctx, api, cfg.Strategy)
			if err != nil {
				log.Error().
					Err(err).
					Str("strategy", string(topology.Strategy)).
					Msg("Error fetching switcher topology")
				discoverErr = fmt.Errorf("discovery failed: %w", err)
			}
			log.Debug().
				Str("mhub_name", topology.Name).
				Str("strategy", string(topology.Strategy)).
				Int("outputs", len(topology.Outputs)).
				Int("sources", len(topology.Sources)).
				Msg("Received system data")

			for _, output := range topology.Outputs {
				entities = append(entities, NewMediaPlayer(api, cfg.Address, topology.Name, output, topology.Sources, log))
			}

		case device.DomainSwitch:
			entities = append(entities, NewSwitch(api, cfg.Address, log))

		default:
			log.Warn().Str("platform", name).Msg("Skipping unsupported platform")
		}
	}

	for _, entity := range entities {
		entity.Update(ctx)
	}

	log.Info().
		Int("entity_count", len(entities)).
		Msg("Platform setup complete")

	return entities, topology, discoverErr
}
