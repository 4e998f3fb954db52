package cli

import (
	"testing"

	"github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"matrixhub/internal/device"
	"matrixhub/internal/platform"
)

func key(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func connectTestSwitcher(t *testing.T) SetupModel {
	t.Helper()

	setup := NewSetupModelWithFlags(false, true)
	setup, _ = setup.Update(key(tea.KeyTab))
	setup, _ = setup.Update(key(tea.KeyTab))
	require.Equal(t, setupFieldConnect, setup.focusedField)

	setup, _ = setup.Update(key(tea.KeyEnter))
	require.Empty(t, setup.connectionError)
	require.True(t, setup.IsConnected())
	t.Cleanup(func() {
		if stop := setup.GetStop(); stop != nil {
			stop()
		}
	})
	return setup
}

func TestSetupValidation(t *testing.T) {
	setup := NewSetupModel()
	setup.focusedField = setupFieldConnect

	setup, _ = setup.Update(key(tea.KeyEnter))
	assert.Equal(t, "Host address is required", setup.connectionError)
	assert.False(t, setup.IsConnected())

	setup.hostAddress = "not a host!"
	setup, _ = setup.Update(key(tea.KeyEnter))
	assert.Equal(t, "Invalid host address format", setup.connectionError)

	for _, address := range []string{"192.168.1.50", "192.168.1.50:8080", "mhub.local"} {
		assert.True(t, setup.IsValidHostAddress(address), address)
	}
	assert.False(t, setup.IsValidHostAddress("192.168.1.50:70000"))
}

func TestSetupTextInput(t *testing.T) {
	setup := NewSetupModel()
	setup, _ = setup.Update(key(tea.KeyTab))
	require.Equal(t, setupFieldHostAddress, setup.focusedField)

	setup, _ = setup.Update(runes("10.0.0.9"))
	setup, _ = setup.Update(key(tea.KeyBackspace))
	setup, _ = setup.Update(runes("5"))
	assert.Equal(t, "10.0.0.5", setup.hostAddress)

	setup, _ = setup.Update(key(tea.KeyTab))
	setup, _ = setup.Update(key(tea.KeySpace))
	assert.True(t, setup.withSwitch)
}

func TestSetupTestModeConnect(t *testing.T) {
	setup := connectTestSwitcher(t)

	info := setup.GetDeviceInfo()
	assert.Equal(t, "MHUB Simulator", info.Name)
	assert.Len(t, setup.GetDevice().EntityList(), 2)
}

func TestMatrixSelectSource(t *testing.T) {
	setup := connectTestSwitcher(t)
	matrix := NewMatrixModelWithFlags(setup.GetDevice(), setup.GetDeviceInfo(), false, true)
	require.Len(t, matrix.entities, 2)

	entity := matrix.entities[0]
	selector, ok := entity.(platform.SourceSelector)
	require.True(t, ok)
	sources := selector.SourceList()
	require.GreaterOrEqual(t, len(sources), 2)

	matrix, _ = matrix.Update(key(tea.KeyRight))
	pending, ok := matrix.pendingSource(entity)
	require.True(t, ok)
	assert.Equal(t, sources[0], pending)

	matrix, _ = matrix.Update(key(tea.KeyRight))
	matrix, _ = matrix.Update(key(tea.KeyEnter))

	require.NotNil(t, matrix.lastResponse)
	assert.True(t, matrix.lastResponse.Success)
	require.NotNil(t, selector.Source())
	assert.Equal(t, sources[1], *selector.Source())
	assert.Len(t, matrix.actionHistory, 1)
	assert.NotEmpty(t, matrix.logBuffer)

	// wraps backwards from the current source
	matrix, _ = matrix.Update(key(tea.KeyLeft))
	matrix, _ = matrix.Update(key(tea.KeyLeft))
	pending, _ = matrix.pendingSource(entity)
	assert.Equal(t, sources[len(sources)-1], pending)
}

func TestMatrixPowerAndNavigation(t *testing.T) {
	setup := connectTestSwitcher(t)
	matrix := NewMatrixModelWithFlags(setup.GetDevice(), setup.GetDeviceInfo(), false, false)

	matrix, _ = matrix.Update(key(tea.KeyUp))
	assert.Equal(t, 0, matrix.selected)
	matrix, _ = matrix.Update(key(tea.KeyDown))
	matrix, _ = matrix.Update(key(tea.KeyDown))
	assert.Equal(t, 1, matrix.selected)

	entity := matrix.entities[1]
	assert.Equal(t, device.StateOff, entity.State())

	matrix, _ = matrix.Update(runes("p"))
	assert.Equal(t, device.StateOn, entity.State())

	matrix, _ = matrix.Update(runes("p"))
	assert.Equal(t, device.StateOff, entity.State())
	assert.Empty(t, matrix.logBuffer)

	matrix, _ = matrix.Update(runes("r"))
	assert.True(t, matrix.lastResponse.Success)
	assert.Len(t, matrix.entities, 2)
	assert.Contains(t, matrix.View(), "Matrix Control")
}
