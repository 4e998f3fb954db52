package mhub_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"matrixhub/internal/mhub"
)

func boolPtr(b bool) *bool {
	return &b
}

func startSimulator(t *testing.T) (*mhub.Simulator, *mhub.Client) {
	t.Helper()
	sim := mhub.NewSimulator()
	server := httptest.NewServer(sim)
	t.Cleanup(server.Close)
	return sim, mhub.NewClient(strings.TrimPrefix(server.URL, "http://"), nil)
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		value    string
		expected mhub.Strategy
		wantErr  bool
	}{
		{"", mhub.StrategyAuto, false},
		{"auto", mhub.StrategyAuto, false},
		{"zone", mhub.StrategyZoneMapped, false},
		{"label", mhub.StrategyLabelMapped, false},
		{"static", mhub.StrategyStaticFallback, false},
		{"zones", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			strategy, err := mhub.ParseStrategy(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, strategy)
		})
	}
}

func TestSourcesFromInputs(t *testing.T) {
	t.Run("keeps only shown labels when any label has show", func(t *testing.T) {
		inputs := []mhub.Port{
			{Labels: []mhub.Label{
				{ID: "1", Label: "Apple TV", Show: boolPtr(true)},
				{ID: "2", Label: "Hidden", Show: boolPtr(false)},
				{ID: "3", Label: "Defaulted"},
			}},
		}
		sources := mhub.SourcesFromInputs(inputs)
		assert.Equal(t, mhub.Sources{{ID: "1", Label: "Apple TV"}, {ID: "3", Label: "Defaulted"}}, sources)
	})

	t.Run("keeps everything when no label has show", func(t *testing.T) {
		inputs := []mhub.Port{
			{Labels: []mhub.Label{{ID: "1", Label: "One"}, {ID: "2", Label: "Two"}}},
		}
		assert.Len(t, mhub.SourcesFromInputs(inputs), 2)
	})

	t.Run("show flag is scoped to its own input", func(t *testing.T) {
		inputs := []mhub.Port{
			{Labels: []mhub.Label{{ID: "1", Label: "One", Show: boolPtr(false)}}},
			{Labels: []mhub.Label{{ID: "2", Label: "Two"}}},
		}
		assert.Equal(t, mhub.Sources{{ID: "2", Label: "Two"}}, mhub.SourcesFromInputs(inputs))
	})

	t.Run("last label wins on duplicate id and keeps first position", func(t *testing.T) {
		inputs := []mhub.Port{
			{Labels: []mhub.Label{{ID: "1", Label: "Old"}}},
			{Labels: []mhub.Label{{ID: "2", Label: "Two"}}},
			{Labels: []mhub.Label{{ID: "1", Label: "New"}}},
		}
		assert.Equal(t, mhub.Sources{{ID: "1", Label: "New"}, {ID: "2", Label: "Two"}}, mhub.SourcesFromInputs(inputs))
	})

	t.Run("keeps reported order", func(t *testing.T) {
		inputs := []mhub.Port{
			{Labels: []mhub.Label{{ID: "10", Label: "Projector"}}},
			{Labels: []mhub.Label{{ID: "2", Label: "Sky Q"}}},
			{Labels: []mhub.Label{{ID: "1", Label: "Apple TV"}}},
		}
		assert.Equal(t, []string{"Projector", "Sky Q", "Apple TV"}, mhub.SourcesFromInputs(inputs).Labels())
	})

	t.Run("skips labels without an id", func(t *testing.T) {
		inputs := []mhub.Port{
			{Labels: []mhub.Label{{ID: "", Label: "Ghost"}, {ID: "1", Label: "Apple TV"}}},
		}
		sources := mhub.SourcesFromInputs(inputs)
		assert.Equal(t, mhub.Sources{{ID: "1", Label: "Apple TV"}}, sources)
		_, ok := sources.Lookup("Ghost")
		assert.False(t, ok)
	})
}

func TestSourcesLookup(t *testing.T) {
	sources := mhub.Sources{
		{ID: "3", Label: "Apple TV"},
		{ID: "1", Label: "Apple TV"},
		{ID: "", Label: "Sky Q"},
	}

	id, ok := sources.Lookup("Apple TV")
	require.True(t, ok)
	assert.Equal(t, mhub.ID("1"), id)

	_, ok = sources.Lookup("Sky Q")
	assert.False(t, ok)
	_, ok = sources.Lookup("Betamax")
	assert.False(t, ok)

	sources.Set("3", "Roku")
	assert.Equal(t, []string{"Roku", "Apple TV", "Sky Q"}, sources.Labels())
}

func TestDiscover(t *testing.T) {
	ctx := context.Background()

	t.Run("auto picks zone mapping when zones exist", func(t *testing.T) {
		_, client := startSimulator(t)

		topology, err := mhub.Discover(ctx, client, mhub.StrategyAuto)
		require.NoError(t, err)
		assert.Equal(t, mhub.StrategyZoneMapped, topology.Strategy)
		assert.Equal(t, "MHUB Simulator", topology.Name)
		require.Len(t, topology.Outputs, 2)
		assert.Equal(t, "Lounge (A) (hdmi)", topology.Outputs[0].Name)
		assert.Equal(t, "Kitchen (B) (hdbaset)", topology.Outputs[1].Name)
		require.NotNil(t, topology.Outputs[1].Zone)
		assert.True(t, topology.Outputs[1].Zone.AutoSwitchMode)
		assert.Equal(t, []string{"Apple TV", "Sky Q", "PlayStation"}, topology.Sources.Labels())
	})

	t.Run("zone mapping skips outputs outside any zone", func(t *testing.T) {
		sim, client := startSimulator(t)
		sim.SetZones([]mhub.Zone{{ZoneLabel: "Lounge", Outputs: []mhub.ZoneOutput{{OutputID: "A"}}}})

		topology, err := mhub.Discover(ctx, client, mhub.StrategyZoneMapped)
		require.NoError(t, err)
		require.Len(t, topology.Outputs, 1)
		assert.Equal(t, mhub.ID("A"), topology.Outputs[0].ID)
	})

	t.Run("auto falls back to labels without zone api", func(t *testing.T) {
		sim, client := startSimulator(t)
		sim.SetZones(nil)

		topology, err := mhub.Discover(ctx, client, mhub.StrategyAuto)
		require.NoError(t, err)
		assert.Equal(t, mhub.StrategyLabelMapped, topology.Strategy)
		require.Len(t, topology.Outputs, 2)
		assert.Equal(t, "Lounge TV (hdmi)", topology.Outputs[0].Name)
		assert.Nil(t, topology.Outputs[0].Zone)
	})

	t.Run("auto falls back to labels with empty zone list", func(t *testing.T) {
		sim, client := startSimulator(t)
		sim.SetZones([]mhub.Zone{})

		topology, err := mhub.Discover(ctx, client, mhub.StrategyAuto)
		require.NoError(t, err)
		assert.Equal(t, mhub.StrategyLabelMapped, topology.Strategy)
	})

	t.Run("forced zone strategy without zone api yields no outputs", func(t *testing.T) {
		sim, client := startSimulator(t)
		sim.SetZones(nil)

		topology, err := mhub.Discover(ctx, client, mhub.StrategyZoneMapped)
		assert.Error(t, err)
		require.NotNil(t, topology)
		assert.Empty(t, topology.Outputs)
		assert.Equal(t, "MHUB Simulator", topology.Name)
	})

	t.Run("static fallback when inputs are not described", func(t *testing.T) {
		sim, client := startSimulator(t)
		sim.SetInputs(nil)

		topology, err := mhub.Discover(ctx, client, mhub.StrategyAuto)
		require.NoError(t, err)
		assert.Equal(t, mhub.StrategyStaticFallback, topology.Strategy)
		assert.Equal(t, mhub.StaticSources, topology.Sources)
		assert.Len(t, topology.Outputs, 2)
	})

	t.Run("defaults missing output type, id and label", func(t *testing.T) {
		sim, client := startSimulator(t)
		sim.SetZones(nil)
		sim.SetOutputs([]mhub.Port{{Labels: []mhub.Label{{}}}})

		topology, err := mhub.Discover(ctx, client, mhub.StrategyLabelMapped)
		require.NoError(t, err)
		require.Len(t, topology.Outputs, 1)
		assert.Equal(t, mhub.ID(mhub.UnknownOutputID), topology.Outputs[0].ID)
		assert.Equal(t, mhub.UnknownOutputType, topology.Outputs[0].Type)
		assert.Equal(t, "Output Unknown (unknown)", topology.Outputs[0].Name)
	})

	t.Run("one output per label", func(t *testing.T) {
		sim, client := startSimulator(t)
		sim.SetZones(nil)
		sim.SetOutputs([]mhub.Port{
			{Type: "hdmi", Labels: []mhub.Label{{ID: "A", Label: "One"}, {ID: "B", Label: "Two"}}},
			{Type: "hdbaset", Labels: []mhub.Label{{ID: "C", Label: "Three"}}},
		})

		topology, err := mhub.Discover(ctx, client, mhub.StrategyAuto)
		require.NoError(t, err)
		assert.Len(t, topology.Outputs, 3)
	})

	t.Run("system info failure returns empty topology", func(t *testing.T) {
		sim, client := startSimulator(t)
		sim.SetFailing(true)

		topology, err := mhub.Discover(ctx, client, mhub.StrategyAuto)
		require.Error(t, err)
		assert.True(t, mhub.IsStatusError(err))
		require.NotNil(t, topology)
		assert.Empty(t, topology.Outputs)
		assert.Empty(t, topology.Sources)
	})
}
