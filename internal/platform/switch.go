package platform

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"matrixhub/internal/device"
	"matrixhub/internal/mhub"
)

// Switch is the legacy single power switch for a whole switcher
type Switch struct {
	api     mhub.API
	address string
	logger  zerolog.Logger

	mutex sync.RWMutex
	isOn  bool
}

// NewSwitch creates the legacy power switch for the switcher at address
func NewSwitch(api mhub.API, address string, log zerolog.Logger) *Switch {
	return &Switch{
		api:     api,
		address: address,
		logger:  log.With().Str("entity", "switch").Logger(),
	}
}

func (s *Switch) UniqueID() string {
	return strings.ReplaceAll("mhub_switch_"+s.address, " ", "_")
}

func (s *Switch) Name() string {
	return fmt.Sprintf("MHUB Switch %s", s.address)
}

func (s *Switch) Domain() string { return device.DomainSwitch }

// IsOn reports the cached power flag
func (s *Switch) IsOn() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.isOn
}

func (s *Switch) State() string {
	if s.IsOn() {
		return device.StateOn
	}
	return device.StateOff
}

func (s *Switch) SupportedFeatures() int { return 0 }

func (s *Switch) Snapshot() device.EntitySnapshot {
	return device.EntitySnapshot{
		UniqueID: s.UniqueID(),
		Name:     s.Name(),
		Domain:   s.Domain(),
		State:    s.State(),
	}
}

func (s *Switch) TurnOn(ctx context.Context) {
	if err := s.api.SetPower(ctx, true); err != nil {
		s.logger.Error().Err(err).Msg("Failed to turn on the switch")
		return
	}
	s.logger.Info().Msg("Turn on command sent successfully")
	s.set(true)
	s.Update(ctx)
}

func (s *Switch) TurnOff(ctx context.Context) {
	if err := s.api.SetPower(ctx, false); err != nil {
		s.logger.Error().Err(err).Msg("Failed to turn off the switch")
		return
	}
	s.logger.Info().Msg("Turn off command sent successfully")
	s.set(false)
	s.Update(ctx)
}

func (s *Switch) Update(ctx context.Context) {
	power, err := s.api.GetPowerState(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to update switch state")
		return
	}
	s.set(power)
	s.logger.Info().Bool("is_on", power).Msg("Switch state updated")
}

func (s *Switch) set(on bool) {
	s.mutex.Lock()
	s.isOn = on
	s.mutex.Unlock()
}
