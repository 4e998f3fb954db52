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

// MediaPlayer represents one switcher output as a media player
type MediaPlayer struct {
	api        mhub.API
	address    string
	outputID   mhub.ID
	name       string
	mhubName   string
	outputType string
	zone       *mhub.ZoneDetails
	sources    mhub.Sources
	logger     zerolog.Logger

	mutex  sync.RWMutex
	state  string
	source *string
}

// NewMediaPlayer creates a media player for output. The source list is copied.
func NewMediaPlayer(api mhub.API, address, mhubName string, output mhub.Output, sources mhub.Sources, log zerolog.Logger) *MediaPlayer {
	return &MediaPlayer{
		api:        api,
		address:    address,
		outputID:   output.ID,
		name:       output.Name,
		mhubName:   mhubName,
		outputType: output.Type,
		zone:       output.Zone,
		sources:    sources.Clone(),
		state:      device.StateOff,
		logger: log.With().
			Str("entity", output.Name).
			Str("output_id", string(output.ID)).
			Logger(),
	}
}

// UniqueID combines the mhub name, address and output id
func (m *MediaPlayer) UniqueID() string {
	return MediaPlayerUniqueID(m.mhubName, m.address, m.outputID)
}

// MediaPlayerUniqueID builds "{mhub}_{address}_{output}" with spaces replaced by underscores
func MediaPlayerUniqueID(mhubName, address string, outputID mhub.ID) string {
	return strings.ReplaceAll(fmt.Sprintf("%s_%s_%s", mhubName, address, outputID), " ", "_")
}

func (m *MediaPlayer) Name() string { return m.name }

func (m *MediaPlayer) Domain() string { return device.DomainMediaPlayer }

// OutputID returns the switcher output this player drives
func (m *MediaPlayer) OutputID() mhub.ID { return m.outputID }

// OutputType returns the port type, e.g. hdmi or hdbaset
func (m *MediaPlayer) OutputType() string { return m.outputType }

// Zone returns the zone details when discovered through the zone API
func (m *MediaPlayer) Zone() *mhub.ZoneDetails { return m.zone }

func (m *MediaPlayer) State() string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.state
}

// Source returns the selected source label, or nil
func (m *MediaPlayer) Source() *string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.source == nil {
		return nil
	}
	source := *m.source
	return &source
}

// SourceList returns the available source labels in discovery order
func (m *MediaPlayer) SourceList() []string {
	return m.sources.Labels()
}

func (m *MediaPlayer) SupportedFeatures() int {
	return FeatureTurnOn | FeatureTurnOff | FeatureSelectSource
}

func (m *MediaPlayer) Snapshot() device.EntitySnapshot {
	attributes := map[string]interface{}{
		"output_id":   string(m.OutputID()),
		"output_type": m.OutputType(),
	}
	if zone := m.Zone(); zone != nil {
		attributes["zone_label"] = zone.ZoneLabel
		attributes["auto_switch_mode"] = zone.AutoSwitchMode
		if zone.ArcInput != "" {
			attributes["arc_input"] = string(zone.ArcInput)
		}
	}

	return device.EntitySnapshot{
		UniqueID:          m.UniqueID(),
		Name:              m.name,
		Domain:            m.Domain(),
		State:             m.State(),
		Source:            m.Source(),
		SourceList:        m.SourceList(),
		SupportedFeatures: m.SupportedFeatures(),
		Attributes:        attributes,
	}
}

// TurnOn powers the switcher on, then resyncs from the device
func (m *MediaPlayer) TurnOn(ctx context.Context) {
	if err := m.api.SetPower(ctx, true); err != nil {
		m.logger.Error().Err(err).Msg("Failed to turn on the device")
		return
	}
	m.logger.Info().Msg("Turn on command sent successfully")
	m.setState(device.StateOn)
	m.Update(ctx)
}

// TurnOff powers the switcher off, then resyncs from the device
func (m *MediaPlayer) TurnOff(ctx context.Context) {
	if err := m.api.SetPower(ctx, false); err != nil {
		m.logger.Error().Err(err).Msg("Failed to turn off the device")
		return
	}
	m.logger.Info().Msg("Turn off command sent successfully")
	m.setState(device.StateOff)
	m.Update(ctx)
}

// SelectSource routes the input labelled source to this output. Unknown labels are
// logged and ignored without contacting the switcher.
func (m *MediaPlayer) SelectSource(ctx context.Context, source string) {
	input, ok := m.inputFor(source)
	if !ok {
		m.logger.Error().
			Str("source", source).
			Strs("available_sources", m.SourceList()).
			Msg("Invalid source selected")
		return
	}

	m.logger.Debug().
		Str("input", string(input)).
		Str("path", mhub.SwitchPath(m.outputID, input)).
		Msg("Switching output")

	if err := m.api.SwitchInput(ctx, m.outputID, input); err != nil {
		m.logger.Error().Err(err).Str("source", source).Msg("Failed to switch input")
		return
	}

	m.logger.Info().Str("source", source).Msg("Input switched")
	m.mutex.Lock()
	m.source = &source
	m.mutex.Unlock()
	m.Update(ctx)
}

// Update reads the power state back from the switcher
func (m *MediaPlayer) Update(ctx context.Context) {
	power, err := m.api.GetPowerState(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to update device state")
		return
	}

	state := device.StateOff
	if power {
		state = device.StateOn
	}
	m.setState(state)
	m.logger.Info().Str("state", state).Msg("Device state updated")
}

func (m *MediaPlayer) setState(state string) {
	m.mutex.Lock()
	m.state = state
	m.mutex.Unlock()
}

// inputFor reverse-maps a label to its input id
func (m *MediaPlayer) inputFor(source string) (mhub.ID, bool) {
	return m.sources.Lookup(source)
}
