package cli

import (
	"context"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"matrixhub/internal"
	"matrixhub/internal/device"
	"matrixhub/internal/logger"
	"matrixhub/internal/mhub"
	"matrixhub/internal/platform"
)

// Setup screen input fields
type setupField int

const (
	setupFieldStrategy setupField = iota
	setupFieldHostAddress
	setupFieldPlatforms
	setupFieldConnect
)

var setupStrategies = []mhub.Strategy{
	mhub.StrategyAuto,
	mhub.StrategyZoneMapped,
	mhub.StrategyLabelMapped,
	mhub.StrategyStaticFallback,
}

// SetupModel handles the switcher setup screen
type SetupModel struct {
	focusedField setupField

	selectedStrategy int
	withSwitch       bool

	hostAddress       string
	hostAddressCursor int

	connecting      bool
	connectionError string

	// Set once Connect succeeds
	device     *platform.MHUBDevice
	deviceInfo device.DeviceInfo
	stop       func() error

	debugMode bool
	testMode  bool
}

// NewSetupModel creates a new setup screen model
func NewSetupModel() SetupModel {
	return NewSetupModelWithFlags(false, false)
}

// NewSetupModelWithFlags creates a new setup screen model with flags
func NewSetupModelWithFlags(debug, test bool) SetupModel {
	return SetupModel{
		focusedField: setupFieldStrategy,
		debugMode:    debug,
		testMode:     test,
	}
}

// Update handles setup screen messages
func (m SetupModel) Update(msg tea.Msg) (SetupModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "tab", "shift+tab":
			return m.handleTabNavigation(msg.String() == "shift+tab"), nil

		case "enter":
			if m.focusedField == setupFieldConnect {
				return m.handleConnect()
			}
			return m, nil

		case "up":
			return m.handleUp(), nil

		case "down":
			return m.handleDown(), nil

		case "left":
			return m.handleLeft(), nil

		case "right":
			return m.handleRight(), nil

		case " ":
			if m.focusedField == setupFieldPlatforms {
				m.withSwitch = !m.withSwitch
				return m, nil
			}
			return m.handleTextInput(msg.String()), nil

		case "backspace":
			return m.handleBackspace(), nil

		case "delete":
			return m.handleDelete(), nil

		case "home":
			m.hostAddressCursor = 0
			return m, nil

		case "end":
			m.hostAddressCursor = len(m.hostAddress)
			return m, nil

		default:
			return m.handleTextInput(msg.String()), nil
		}
	}

	return m, nil
}

// View renders the setup screen
func (m SetupModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("matrixhub - Switcher Setup"))
	b.WriteString("\n\n")

	b.WriteString(subtitleStyle.Render("Discovery:"))
	b.WriteString("\n")
	for i, strategy := range setupStrategies {
		cursor := "  "
		if i == m.selectedStrategy {
			cursor = "> "
		}

		style := lipgloss.NewStyle()
		if m.focusedField == setupFieldStrategy && i == m.selectedStrategy {
			style = style.Foreground(lipgloss.Color("#FF79C6"))
		}

		b.WriteString(style.Render(cursor + string(strategy)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.testMode {
		b.WriteString(subtitleStyle.Render("Host Address:"))
		b.WriteString("\n")
		b.WriteString(inputStyle.Render("simulated switcher (test mode)"))
	} else {
		b.WriteString(subtitleStyle.Render("Host Address (IP or IP:Port):"))
		b.WriteString("\n")
		hostStyle := inputStyle
		showCursor := m.focusedField == setupFieldHostAddress
		if showCursor {
			hostStyle = inputFocusedStyle
		}
		b.WriteString(hostStyle.Render(renderTextWithCursor(m.hostAddress, m.hostAddressCursor, showCursor)))
	}
	b.WriteString("\n\n")

	check := "[ ]"
	if m.withSwitch {
		check = "[x]"
	}
	switchStyle := lipgloss.NewStyle()
	if m.focusedField == setupFieldPlatforms {
		switchStyle = switchStyle.Foreground(lipgloss.Color("#FF79C6"))
	}
	b.WriteString(switchStyle.Render(check + " Include system power switch"))
	b.WriteString("\n\n")

	connectStyle := buttonStyle
	if m.focusedField == setupFieldConnect {
		connectStyle = buttonActiveStyle
	}
	connectText := "Connect"
	if m.connecting {
		connectText = "Connecting..."
	}
	b.WriteString(connectStyle.Render(connectText))
	b.WriteString("\n\n")

	if m.connectionError != "" {
		b.WriteString(errorStyle.Render("Error: " + m.connectionError))
		b.WriteString("\n\n")
	}

	b.WriteString(helpStyle.Render("↑/↓: Choose • Tab: Next field • Space: Toggle • Enter: Connect • ←/→: Move cursor • q: Quit"))

	return b.String()
}

func (m SetupModel) fields() []setupField {
	if m.testMode {
		return []setupField{setupFieldStrategy, setupFieldPlatforms, setupFieldConnect}
	}
	return []setupField{setupFieldStrategy, setupFieldHostAddress, setupFieldPlatforms, setupFieldConnect}
}

// handleTabNavigation moves between input fields
func (m SetupModel) handleTabNavigation(reverse bool) SetupModel {
	fields := m.fields()

	currentIndex := 0
	for i, field := range fields {
		if field == m.focusedField {
			currentIndex = i
			break
		}
	}

	if reverse {
		currentIndex = (currentIndex - 1 + len(fields)) % len(fields)
	} else {
		currentIndex = (currentIndex + 1) % len(fields)
	}

	m.focusedField = fields[currentIndex]
	m.syncCursorPosition()
	return m
}

// handleConnect runs discovery against the switcher and builds its entities
func (m SetupModel) handleConnect() (SetupModel, tea.Cmd) {
	if m.connecting {
		return m, nil
	}

	address := m.hostAddress
	var stop func() error
	if m.testMode {
		simAddress, simStop, err := mhub.NewSimulator().Serve()
		if err != nil {
			m.connectionError = err.Error()
			return m, nil
		}
		address, stop = simAddress, simStop
	} else {
		if address == "" {
			m.connectionError = "Host address is required"
			return m, nil
		}
		if !m.IsValidHostAddress(address) {
			m.connectionError = "Invalid host address format"
			return m, nil
		}
	}

	m.connecting = true
	m.connectionError = ""

	platforms := []string{device.DomainMediaPlayer}
	if m.withSwitch {
		platforms = append(platforms, device.DomainSwitch)
	}
	cfg := platform.Config{
		DeviceID:  "tui",
		Address:   address,
		Strategy:  setupStrategies[m.selectedStrategy],
		Platforms: platforms,
	}

	options := internal.NewModeOptions(internal.WithDebug(m.debugMode), internal.WithTest(m.testMode))
	client := mhub.NewClient(address, options)
	dev := platform.NewMHUBDeviceWithAPI(cfg, client, logger.Component("cli"))

	ctx, cancel := context.WithTimeout(context.Background(), options.Timeout)
	defer cancel()

	m.connecting = false
	count, err := dev.Setup(ctx)
	if err != nil || count == 0 {
		if stop != nil {
			stop()
		}
		m.connectionError = "No outputs discovered on " + address
		if err != nil {
			m.connectionError = err.Error()
		}
		return m, nil
	}

	m.device = dev
	m.deviceInfo = dev.GetDeviceInfo()
	m.stop = stop

	log := logger.New()
	log.Info().
		Str("address", address).
		Str("strategy", string(cfg.Strategy)).
		Int("entity_count", len(dev.EntityList())).
		Msg("Switcher connected successfully")

	return m, nil
}

func (m SetupModel) handleUp() SetupModel {
	if m.focusedField == setupFieldStrategy && m.selectedStrategy > 0 {
		m.selectedStrategy--
	}
	return m
}

func (m SetupModel) handleDown() SetupModel {
	if m.focusedField == setupFieldStrategy && m.selectedStrategy < len(setupStrategies)-1 {
		m.selectedStrategy++
	}
	return m
}

func (m SetupModel) handleLeft() SetupModel {
	if m.focusedField == setupFieldHostAddress && m.hostAddressCursor > 0 {
		m.hostAddressCursor--
	}
	return m
}

func (m SetupModel) handleRight() SetupModel {
	if m.focusedField == setupFieldHostAddress && m.hostAddressCursor < len(m.hostAddress) {
		m.hostAddressCursor++
	}
	return m
}

func (m SetupModel) handleBackspace() SetupModel {
	if m.focusedField == setupFieldHostAddress && m.hostAddressCursor > 0 && len(m.hostAddress) > 0 {
		m.hostAddress = deleteCharAt(m.hostAddress, m.hostAddressCursor-1)
		m.hostAddressCursor--
	}
	return m
}

func (m SetupModel) handleDelete() SetupModel {
	if m.focusedField == setupFieldHostAddress && m.hostAddressCursor < len(m.hostAddress) {
		m.hostAddress = deleteCharAt(m.hostAddress, m.hostAddressCursor)
	}
	return m
}

// handleTextInput handles character input
func (m SetupModel) handleTextInput(input string) SetupModel {
	if m.focusedField != setupFieldHostAddress || len(input) == 0 {
		return m
	}

	printableInput := ""
	for _, r := range input {
		if r > 32 && r < 127 {
			printableInput += string(r)
		}
	}
	if len(printableInput) == 0 {
		return m
	}

	m.hostAddress = insertText(m.hostAddress, m.hostAddressCursor, printableInput)
	m.hostAddressCursor += len(printableInput)
	return m
}

// syncCursorPosition ensures the cursor is within bounds
func (m *SetupModel) syncCursorPosition() {
	if m.hostAddressCursor < 0 {
		m.hostAddressCursor = 0
	}
	if m.hostAddressCursor > len(m.hostAddress) {
		m.hostAddressCursor = len(m.hostAddress)
	}
}

// IsValidHostAddress validates the host address format (with optional port)
func (m SetupModel) IsValidHostAddress(address string) bool {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		host = address
		portStr = ""
	}

	if net.ParseIP(host) == nil {
		matched, _ := regexp.MatchString(`^[a-zA-Z0-9.-]+$`, host)
		if !matched {
			return false
		}
	}

	if portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			return false
		}
	}

	return true
}

// IsConnected returns true once a switcher has been set up
func (m SetupModel) IsConnected() bool {
	return m.device != nil
}

// GetDevice returns the connected switcher
func (m SetupModel) GetDevice() *platform.MHUBDevice {
	return m.device
}

// GetDeviceInfo returns the device info
func (m SetupModel) GetDeviceInfo() device.DeviceInfo {
	return m.deviceInfo
}

// GetStop returns the function that stops the test-mode simulator, or nil
func (m SetupModel) GetStop() func() error {
	return m.stop
}

// GetDebugMode returns the debug mode flag
func (m SetupModel) GetDebugMode() bool {
	return m.debugMode
}

// GetTestMode returns the test mode flag
func (m SetupModel) GetTestMode() bool {
	return m.testMode
}
