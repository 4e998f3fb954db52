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

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"matrixhub/internal"
	"matrixhub/internal/device"
	"matrixhub/internal/logger"
	"matrixhub/internal/platform"
)

// LogEntry represents a log entry for display
type LogEntry struct {
	Timestamp time.Time
	Level     string // INF, DBG, ERR
	Message   string
	Action    string
}

// MatrixModel handles the output routing screen
type MatrixModel struct {
	device     *platform.MHUBDevice
	deviceInfo device.DeviceInfo
	entities   []platform.Entity

	selected int
	// pending source index per entity, moved with left/right and applied with enter
	pending map[string]int

	lastResponse  *device.ActionResponse
	actionHistory []actionHistoryEntry

	debugMode bool
	testMode  bool

	width  int
	height int

	logBuffer []LogEntry
}

// NewMatrixModelWithFlags creates the routing screen for a set-up switcher
func NewMatrixModelWithFlags(dev *platform.MHUBDevice, info device.DeviceInfo, debug, test bool) MatrixModel {
	m := MatrixModel{
		device:     dev,
		deviceInfo: info,
		pending:    make(map[string]int),
		debugMode:  debug,
		testMode:   test,
	}
	m.reloadEntities()
	return m
}

// Update handles routing screen messages
func (m MatrixModel) Update(msg tea.Msg) (MatrixModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.entities)-1 {
				m.selected++
			}
		case "left":
			m.cyclePending(-1)
		case "right":
			m.cyclePending(1)
		case "enter":
			return m.selectSource()
		case "p":
			return m.togglePower()
		case "u":
			return m.runEntityAction(device.EntityActionUpdate, nil)
		case "r":
			return m.refresh()
		}
	}

	return m, nil
}

// View renders the routing screen
func (m MatrixModel) View() string {
	var sections []string

	sections = append(sections, titleStyle.Render("matrixhub - Matrix Control"))

	info := successStyle.Render(m.deviceInfo.Model)
	if m.deviceInfo.Name != "" {
		info += " " + m.deviceInfo.Name
	}
	info += helpStyle.Render(" @ " + m.deviceInfo.Address)
	if m.testMode {
		info += " " + lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C")).Render("(Test)")
	}
	sections = append(sections, info)

	sections = append(sections, m.renderOutputs())

	if m.lastResponse != nil {
		sections = append(sections, m.renderStatusBar())
	}

	if m.debugMode || m.testMode {
		if logDisplay := m.renderLogDisplay(); logDisplay != "" {
			sections = append(sections, logDisplay)
		}
	}

	sections = append(sections, m.renderHelpText())

	return strings.Join(sections, "\n\n")
}

func (m MatrixModel) renderOutputs() string {
	if len(m.entities) == 0 {
		return errorStyle.Render("No entities. Press r to run discovery again.")
	}

	header := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#8BE9FD")).
		Render(fmt.Sprintf("  %-24s %-6s %s", "Output", "State", "Source"))

	rows := []string{header}
	for i, entity := range m.entities {
		state := entity.State()
		stateText := stateOffStyle.Render(fmt.Sprintf("%-6s", state))
		if state == device.StateOn {
			stateText = stateOnStyle.Render(fmt.Sprintf("%-6s", state))
		}

		source := "-"
		if selector, ok := entity.(platform.SourceSelector); ok {
			if current := selector.Source(); current != nil {
				source = *current
			}
			if pending, ok := m.pendingSource(entity); ok && pending != source {
				source += helpStyle.Render(" → " + pending)
			}
		}

		cursor := "  "
		style := rowStyle
		if i == m.selected {
			cursor = "> "
			style = rowSelectedStyle
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%-24s", cursor, entity.Name()))+" "+stateText+" "+source)
	}

	return strings.Join(rows, "\n")
}

// renderStatusBar creates the status bar with the last action result
func (m MatrixModel) renderStatusBar() string {
	if m.lastResponse.Success {
		return successStyle.Render("✓ Action successful")
	}
	return errorStyle.Render("✗ " + m.lastResponse.Error)
}

// renderLogDisplay shows the last three log entries
func (m MatrixModel) renderLogDisplay() string {
	if len(m.logBuffer) == 0 {
		return ""
	}

	maxLines := 3
	start := 0
	if len(m.logBuffer) > maxLines {
		start = len(m.logBuffer) - maxLines
	}

	header := "─── LOGS ───"
	if len(m.logBuffer) > maxLines {
		header = "─── LOGS ↓ ───"
	}
	logLines := []string{lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4")).Render(header)}

	for i := 0; i < maxLines; i++ {
		if start+i >= len(m.logBuffer) {
			logLines = append(logLines, "")
			continue
		}
		entry := m.logBuffer[start+i]

		levelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#50FA7B"))
		switch entry.Level {
		case "ERR":
			levelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
		case "DBG":
			levelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4"))
		}

		message := entry.Message
		if len(message) > 60 {
			message = message[:57] + "..."
		}
		logLines = append(logLines, fmt.Sprintf("%s [%s] %s",
			entry.Timestamp.Format("15:04:05"),
			levelStyle.Render(entry.Level),
			message))
	}

	return strings.Join(logLines, "\n")
}

func (m *MatrixModel) addLogEntry(level, message, action string) {
	m.logBuffer = append(m.logBuffer, LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		Action:    action,
	})
	if len(m.logBuffer) > 20 {
		m.logBuffer = m.logBuffer[1:]
	}
}

func (m MatrixModel) renderHelpText() string {
	help := "↑/↓: Output • ←/→: Source • Enter: Route • P: Power • U: Update"
	if m.width > 100 {
		help += " • R: Rediscover • q: Disconnect"
	} else {
		help += " • q: Disconnect"
	}
	return helpStyle.Render(help)
}

func (m *MatrixModel) reloadEntities() {
	m.entities = m.device.EntityList()
	if m.selected >= len(m.entities) {
		m.selected = len(m.entities) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	m.pending = make(map[string]int)
}

func (m MatrixModel) current() (platform.Entity, bool) {
	if m.selected < 0 || m.selected >= len(m.entities) {
		return nil, false
	}
	return m.entities[m.selected], true
}

// pendingSource returns the source the cursor points at for entity
func (m MatrixModel) pendingSource(entity platform.Entity) (string, bool) {
	selector, ok := entity.(platform.SourceSelector)
	if !ok {
		return "", false
	}
	sources := selector.SourceList()
	index, ok := m.pending[entity.UniqueID()]
	if !ok || index < 0 || index >= len(sources) {
		return "", false
	}
	return sources[index], true
}

func (m *MatrixModel) cyclePending(step int) {
	entity, ok := m.current()
	if !ok {
		return
	}
	selector, ok := entity.(platform.SourceSelector)
	if !ok {
		return
	}
	sources := selector.SourceList()
	if len(sources) == 0 {
		return
	}

	index, ok := m.pending[entity.UniqueID()]
	if !ok {
		index = -1
		if current := selector.Source(); current != nil {
			for i, name := range sources {
				if name == *current {
					index = i
					break
				}
			}
		}
		if index < 0 {
			index = 0
			step = 0
		}
	}

	m.pending[entity.UniqueID()] = (index + step + len(sources)) % len(sources)
}

func (m MatrixModel) selectSource() (MatrixModel, tea.Cmd) {
	entity, ok := m.current()
	if !ok {
		return m, nil
	}
	source, ok := m.pendingSource(entity)
	if !ok {
		return m, nil
	}
	delete(m.pending, entity.UniqueID())
	return m.runEntityAction(device.EntityActionSelectSource, map[string]interface{}{"source": source})
}

func (m MatrixModel) togglePower() (MatrixModel, tea.Cmd) {
	entity, ok := m.current()
	if !ok {
		return m, nil
	}
	if entity.State() == device.StateOn {
		return m.runEntityAction(device.EntityActionTurnOff, nil)
	}
	return m.runEntityAction(device.EntityActionTurnOn, nil)
}

func (m MatrixModel) runEntityAction(action device.EntityAction, parameters map[string]interface{}) (MatrixModel, tea.Cmd) {
	entity, ok := m.current()
	if !ok {
		return m, nil
	}

	actionJSON, err := device.NewEntityAction(entity.UniqueID(), action, parameters)
	if err != nil {
		m.lastResponse = &device.ActionResponse{Success: false, Error: err.Error()}
		return m, nil
	}
	m.process(string(action), actionJSON)
	return m, nil
}

func (m MatrixModel) refresh() (MatrixModel, tea.Cmd) {
	actionJSON, err := device.NewDeviceAction(device.DeviceActionRefresh)
	if err != nil {
		m.lastResponse = &device.ActionResponse{Success: false, Error: err.Error()}
		return m, nil
	}
	m.process(string(device.DeviceActionRefresh), actionJSON)
	m.reloadEntities()
	return m, nil
}

// process runs one action against the switcher and records the outcome
func (m *MatrixModel) process(actionName string, actionJSON []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), internal.DefaultTimeout)
	defer cancel()

	response, err := m.device.Process(ctx, actionJSON)
	if err != nil {
		response = &device.ActionResponse{Success: false, Error: err.Error()}
	}
	m.lastResponse = response

	if m.debugMode || m.testMode {
		if response.Success {
			m.addLogEntry("INF", fmt.Sprintf("%s completed", actionName), actionName)
		} else {
			m.addLogEntry("ERR", fmt.Sprintf("%s failed: %s", actionName, response.Error), actionName)
		}
	}

	entry := actionHistoryEntry{
		Timestamp: time.Now(),
		Action:    string(actionJSON),
		Success:   response.Success,
	}
	if response.Success {
		if data, err := json.Marshal(response.Data); err == nil {
			entry.Response = string(data)
		}
	} else {
		entry.Error = response.Error
	}
	m.actionHistory = append([]actionHistoryEntry{entry}, m.actionHistory...)
	if len(m.actionHistory) > 50 {
		m.actionHistory = m.actionHistory[:50]
	}

	log := logger.New()
	log.Info().
		Str("action", string(actionJSON)).
		Bool("success", response.Success).
		Msg("Matrix action processed")
}
