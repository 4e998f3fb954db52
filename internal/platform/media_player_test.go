package platform_test

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"matrixhub/internal/device"
	"matrixhub/internal/mhub"
	"matrixhub/internal/platform"
)

// startSimulator serves a fresh simulated switcher and returns a client for it
func startSimulator(t *testing.T) (*mhub.Simulator, *mhub.Client, string) {
	t.Helper()
	sim := mhub.NewSimulator()
	server := httptest.NewServer(sim)
	t.Cleanup(server.Close)
	address := strings.TrimPrefix(server.URL, "http://")
	return sim, mhub.NewClient(address, nil), address
}

var testSources = mhub.Sources{
	{ID: "1", Label: "Apple TV"},
	{ID: "2", Label: "Sky Q"},
	{ID: "3", Label: "PlayStation"},
}

func newTestPlayer(api mhub.API, address string, buf *bytes.Buffer) *platform.MediaPlayer {
	output := mhub.Output{ID: "A", Name: "Lounge (A) (hdmi)", Type: "hdmi"}
	return platform.NewMediaPlayer(api, address, "MHUB Simulator", output, testSources, zerolog.New(buf))
}

func countRequests(sim *mhub.Simulator, prefix string) int {
	count := 0
	for _, request := range sim.Requests() {
		if strings.HasPrefix(request, prefix) {
			count++
		}
	}
	return count
}

// recordingAPI captures the entity state at the moment the resync read happens
type recordingAPI struct {
	power        bool
	powerErr     error
	player       *platform.MediaPlayer
	stateAtRead  []string
	switchCalls  int
	switched     []mhub.ID
	setPowerCall []bool
}

func (r *recordingAPI) GetSystemInfo(ctx context.Context) (*mhub.SystemInfo, error) {
	return nil, errors.New("not implemented")
}

func (r *recordingAPI) GetZones(ctx context.Context) (mhub.ZoneMapping, error) {
	return nil, errors.New("not implemented")
}

func (r *recordingAPI) GetPowerState(ctx context.Context) (bool, error) {
	if r.player != nil {
		r.stateAtRead = append(r.stateAtRead, r.player.State())
	}
	return r.power, r.powerErr
}

func (r *recordingAPI) SetPower(ctx context.Context, on bool) error {
	r.setPowerCall = append(r.setPowerCall, on)
	return nil
}

func (r *recordingAPI) SwitchInput(ctx context.Context, output, input mhub.ID) error {
	r.switchCalls++
	r.switched = append(r.switched, input)
	return nil
}

func TestMediaPlayerIdentity(t *testing.T) {
	t.Run("unique id replaces spaces", func(t *testing.T) {
		player := newTestPlayer(&recordingAPI{}, "192.168.1.50", &bytes.Buffer{})
		assert.Equal(t, "MHUB_Simulator_192.168.1.50_A", player.UniqueID())
	})

	t.Run("unique id is deterministic", func(t *testing.T) {
		first := platform.MediaPlayerUniqueID("Living Room MHUB", "10.0.0.9", "B")
		second := platform.MediaPlayerUniqueID("Living Room MHUB", "10.0.0.9", "B")
		assert.Equal(t, "Living_Room_MHUB_10.0.0.9_B", first)
		assert.Equal(t, first, second)
	})

	t.Run("initial state", func(t *testing.T) {
		player := newTestPlayer(&recordingAPI{}, "192.168.1.50", &bytes.Buffer{})
		assert.Equal(t, device.StateOff, player.State())
		assert.Nil(t, player.Source())
		assert.Equal(t, []string{"Apple TV", "Sky Q", "PlayStation"}, player.SourceList())
		assert.Equal(t, device.DomainMediaPlayer, player.Domain())
		assert.Equal(t, platform.FeatureTurnOn|platform.FeatureTurnOff|platform.FeatureSelectSource, player.SupportedFeatures())
	})

	t.Run("source list is private to the entity", func(t *testing.T) {
		sources := mhub.Sources{{ID: "1", Label: "One"}}
		player := platform.NewMediaPlayer(&recordingAPI{}, "h", "M", mhub.Output{ID: "A"}, sources, zerolog.Nop())
		sources[0].Label = "Changed"
		sources.Set("2", "Two")
		assert.Equal(t, []string{"One"}, player.SourceList())
	})

	t.Run("source list keeps discovery order", func(t *testing.T) {
		sources := mhub.Sources{
			{ID: "10", Label: "Projector"},
			{ID: "2", Label: "Sky Q"},
			{ID: "1", Label: "Apple TV"},
		}
		player := platform.NewMediaPlayer(&recordingAPI{}, "h", "M", mhub.Output{ID: "A"}, sources, zerolog.Nop())
		assert.Equal(t, []string{"Projector", "Sky Q", "Apple TV"}, player.SourceList())
	})
}

func TestMediaPlayerSnapshot(t *testing.T) {
	t.Run("label mapped output", func(t *testing.T) {
		player := newTestPlayer(&recordingAPI{}, "192.168.1.50", &bytes.Buffer{})
		snapshot := player.Snapshot()

		assert.Equal(t, "MHUB_Simulator_192.168.1.50_A", snapshot.UniqueID)
		assert.Equal(t, []string{"Apple TV", "Sky Q", "PlayStation"}, snapshot.SourceList)
		assert.Equal(t, map[string]interface{}{
			"output_id":   "A",
			"output_type": "hdmi",
		}, snapshot.Attributes)
	})

	t.Run("zone mapped output", func(t *testing.T) {
		output := mhub.Output{
			ID:   "B",
			Name: "Kitchen (B) (hdbaset)",
			Type: "hdbaset",
			Zone: &mhub.ZoneDetails{ZoneLabel: "Kitchen", ArcInput: "2", AutoSwitchMode: true},
		}
		player := platform.NewMediaPlayer(&recordingAPI{}, "h", "M", output, testSources, zerolog.Nop())

		attributes := player.Snapshot().Attributes
		assert.Equal(t, "B", attributes["output_id"])
		assert.Equal(t, "hdbaset", attributes["output_type"])
		assert.Equal(t, "Kitchen", attributes["zone_label"])
		assert.Equal(t, "2", attributes["arc_input"])
		assert.Equal(t, true, attributes["auto_switch_mode"])
	})
}

func TestMediaPlayerPower(t *testing.T) {
	ctx := context.Background()

	t.Run("turn on resyncs from device", func(t *testing.T) {
		sim, client, address := startSimulator(t)
		player := newTestPlayer(client, address, &bytes.Buffer{})

		player.TurnOn(ctx)
		assert.Equal(t, device.StateOn, player.State())
		assert.True(t, sim.Power())
		assert.Equal(t, 1, countRequests(sim, "POST /api/power/1/"))
		assert.Equal(t, 1, countRequests(sim, "GET /api/data/0/"))
	})

	t.Run("turn off resyncs from device", func(t *testing.T) {
		sim, client, address := startSimulator(t)
		sim.SetPower(true)
		player := newTestPlayer(client, address, &bytes.Buffer{})
		player.Update(ctx)
		require.Equal(t, device.StateOn, player.State())

		player.TurnOff(ctx)
		assert.Equal(t, device.StateOff, player.State())
		assert.False(t, sim.Power())
	})

	t.Run("resync overwrites optimistic state", func(t *testing.T) {
		api := &recordingAPI{power: false}
		player := newTestPlayer(api, "192.168.1.50", &bytes.Buffer{})
		api.player = player

		player.TurnOn(ctx)
		assert.Equal(t, []bool{true}, api.setPowerCall)
		assert.Equal(t, []string{device.StateOn}, api.stateAtRead)
		assert.Equal(t, device.StateOff, player.State())
	})

	t.Run("lagging switcher leaves entity off", func(t *testing.T) {
		sim, client, address := startSimulator(t)
		sim.SetIgnorePower(true)
		player := newTestPlayer(client, address, &bytes.Buffer{})

		player.TurnOn(ctx)
		assert.Equal(t, device.StateOff, player.State())
	})

	t.Run("server error leaves state untouched and logs", func(t *testing.T) {
		sim, client, address := startSimulator(t)
		sim.SetPower(true)
		var buf bytes.Buffer
		player := newTestPlayer(client, address, &buf)
		player.Update(ctx)
		require.Equal(t, device.StateOn, player.State())

		sim.SetFailing(true)
		player.TurnOff(ctx)
		assert.Equal(t, device.StateOn, player.State())
		assert.Contains(t, buf.String(), "Failed to turn off the device")

		player.Update(ctx)
		assert.Equal(t, device.StateOn, player.State())
		assert.Contains(t, buf.String(), "Failed to update device state")
	})
}

func TestMediaPlayerSelectSource(t *testing.T) {
	ctx := context.Background()

	t.Run("routes the matching input", func(t *testing.T) {
		sim, client, address := startSimulator(t)
		player := newTestPlayer(client, address, &bytes.Buffer{})

		player.SelectSource(ctx, "Sky Q")
		require.NotNil(t, player.Source())
		assert.Equal(t, "Sky Q", *player.Source())

		input, ok := sim.Routing("A")
		require.True(t, ok)
		assert.Equal(t, mhub.ID("2"), input)
		assert.Equal(t, 1, countRequests(sim, "GET /api/control/switch/a/2/"))
		assert.Equal(t, 1, countRequests(sim, "GET /api/data/0/"))
	})

	t.Run("unknown source makes no request", func(t *testing.T) {
		sim, client, address := startSimulator(t)
		var buf bytes.Buffer
		player := newTestPlayer(client, address, &buf)

		player.SelectSource(ctx, "Betamax")
		assert.Nil(t, player.Source())
		assert.Empty(t, sim.Requests())
		assert.Contains(t, buf.String(), "Invalid source selected")
		assert.Contains(t, buf.String(), "Apple TV")
	})

	t.Run("switch failure keeps previous source", func(t *testing.T) {
		sim, client, address := startSimulator(t)
		player := newTestPlayer(client, address, &bytes.Buffer{})
		player.SelectSource(ctx, "Apple TV")

		sim.SetFailing(true)
		player.SelectSource(ctx, "PlayStation")
		require.NotNil(t, player.Source())
		assert.Equal(t, "Apple TV", *player.Source())
	})

	t.Run("source always belongs to the source list", func(t *testing.T) {
		api := &recordingAPI{}
		player := newTestPlayer(api, "h", &bytes.Buffer{})
		for _, source := range []string{"Apple TV", "nope", "PlayStation", ""} {
			player.SelectSource(ctx, source)
			if current := player.Source(); current != nil {
				assert.Contains(t, player.SourceList(), *current)
			}
		}
		assert.Equal(t, 2, api.switchCalls)
	})

	t.Run("duplicate label routes the last listed input", func(t *testing.T) {
		api := &recordingAPI{}
		sources := mhub.Sources{
			{ID: "3", Label: "Apple TV"},
			{ID: "1", Label: "Apple TV"},
			{ID: "2", Label: "Sky Q"},
		}
		player := platform.NewMediaPlayer(api, "h", "M", mhub.Output{ID: "A"}, sources, zerolog.Nop())

		player.SelectSource(ctx, "Apple TV")
		assert.Equal(t, []mhub.ID{"1"}, api.switched)
	})

	t.Run("input without an id is never routed", func(t *testing.T) {
		api := &recordingAPI{}
		var buf bytes.Buffer
		sources := mhub.Sources{{ID: "", Label: "Ghost"}, {ID: "1", Label: "Apple TV"}}
		player := platform.NewMediaPlayer(api, "h", "M", mhub.Output{ID: "A"}, sources, zerolog.New(&buf))

		player.SelectSource(ctx, "Ghost")
		assert.Empty(t, api.switched)
		assert.Nil(t, player.Source())
		assert.Contains(t, buf.String(), "Invalid source selected")
	})
}

func TestSwitch(t *testing.T) {
	ctx := context.Background()

	t.Run("identity", func(t *testing.T) {
		sw := platform.NewSwitch(&recordingAPI{}, "192.168.1.50", zerolog.Nop())
		assert.Equal(t, "MHUB Switch 192.168.1.50", sw.Name())
		assert.Equal(t, "mhub_switch_192.168.1.50", sw.UniqueID())
		assert.Equal(t, device.DomainSwitch, sw.Domain())
		assert.False(t, sw.IsOn())
	})

	t.Run("turn on and off", func(t *testing.T) {
		sim, client, address := startSimulator(t)
		sw := platform.NewSwitch(client, address, zerolog.Nop())

		sw.TurnOn(ctx)
		assert.True(t, sw.IsOn())
		assert.Equal(t, device.StateOn, sw.State())

		sw.TurnOff(ctx)
		assert.False(t, sw.IsOn())
		assert.False(t, sim.Power())
	})

	t.Run("errors are swallowed", func(t *testing.T) {
		sim, client, address := startSimulator(t)
		sim.SetPower(true)
		var buf bytes.Buffer
		sw := platform.NewSwitch(client, address, zerolog.New(&buf))
		sw.Update(ctx)
		require.True(t, sw.IsOn())

		sim.SetFailing(true)
		sw.TurnOff(ctx)
		assert.True(t, sw.IsOn())
		assert.Contains(t, buf.String(), "Failed to turn off the switch")
	})
}
