// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/s3gctl/pkg/s3g"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	rateIncrement = 50
	minRate       = 1
	maxRate       = 100000
	maxStep       = 1000000
)

// Focus states
const (
	focusJog = iota
	focusStepInput
	focusRateInput
	focusCount
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	// Connection manager (for sending moves and reconnection)
	connMgr  *connectionManager
	connInfo string

	// Commanded state
	position s3g.Point
	step     int32
	rate     uint32

	// Monitoring
	stats         *s3g.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int
	lastFrame     []byte

	// Editing
	stepInput    textinput.Model
	rateInput    textinput.Model
	focusedField int

	// UI state
	width          int
	height         int
	synchronized   bool
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type controlSyncMsg struct {
	invalidBytes int
}

type controlBatchMsg struct {
	events  []frameEvent
	syncMsg *controlSyncMsg
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(connMgr *connectionManager, connInfo string, step int32, rate uint32) controlModel {
	stepInput := textinput.New()
	stepInput.Placeholder = strconv.Itoa(int(step))
	stepInput.CharLimit = 7
	stepInput.Width = 10

	rateInput := textinput.New()
	rateInput.Placeholder = strconv.FormatUint(uint64(rate), 10)
	rateInput.CharLimit = 6
	rateInput.Width = 10

	return controlModel{
		connMgr:       connMgr,
		connInfo:      connInfo,
		step:          step,
		rate:          rate,
		stats:         connMgr.stats,
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		stepInput:     stepInput,
		rateInput:     rateInput,
		focusedField:  focusJog,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case controlTickMsg:
		m.stats.CalculateRates()
		return m, controlTickCmd()

	case controlBatchMsg:
		if msg.syncMsg != nil {
			m.synchronized = true
			if msg.syncMsg.invalidBytes > 0 {
				m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid bytes", msg.syncMsg.invalidBytes), false)
			} else {
				m.addLogEntry("Synchronized", false)
			}
		}
		for _, ev := range msg.events {
			m.processFrameEvent(ev)
		}

	case connectionLostMsg:
		m.connectionLost = true
		m.synchronized = false
		m.addLogEntry("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected", false)
	}

	return m, nil
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		return m.cycleFocus(1), nil

	case "shift+tab":
		return m.cycleFocus(-1), nil
	}

	// Text inputs own the keyboard while focused
	if m.focusedField != focusJog {
		switch key {
		case "enter":
			return m.applyInput(), nil
		case "esc":
			m.focusedField = focusJog
			m.stepInput.Blur()
			m.rateInput.Blur()
			return m, nil
		}

		var cmd tea.Cmd
		if m.focusedField == focusStepInput {
			m.stepInput, cmd = m.stepInput.Update(msg)
		} else {
			m.rateInput, cmd = m.rateInput.Update(msg)
		}
		return m, cmd
	}

	switch key {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "left":
		return m.jog(0, -m.step), nil
	case "right":
		return m.jog(0, m.step), nil
	case "up":
		return m.jog(1, m.step), nil
	case "down":
		return m.jog(1, -m.step), nil
	case "pgup":
		return m.jog(2, m.step), nil
	case "pgdown":
		return m.jog(2, -m.step), nil
	case "+", "=":
		return m.setRate(int64(m.rate) + rateIncrement), nil
	case "-", "_":
		return m.setRate(int64(m.rate) - rateIncrement), nil
	case "h":
		return m.sendMove(s3g.Point{}, "home"), nil
	}

	return m, nil
}

func (m controlModel) cycleFocus(delta int) controlModel {
	m.focusedField = (m.focusedField + delta + focusCount) % focusCount

	m.stepInput.Blur()
	m.rateInput.Blur()
	switch m.focusedField {
	case focusStepInput:
		m.stepInput.Focus()
	case focusRateInput:
		m.rateInput.Focus()
	}
	return m
}

// applyInput commits the focused text field
func (m controlModel) applyInput() controlModel {
	switch m.focusedField {
	case focusStepInput:
		raw := strings.TrimSpace(m.stepInput.Value())
		step, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || step <= 0 || step > maxStep {
			m.addLogEntry(fmt.Sprintf("Step must be between 1 and %d", maxStep), true)
			return m
		}
		m.step = int32(step)
		m.stepInput.SetValue("")
		m.stepInput.Placeholder = raw
		m.addLogEntry(fmt.Sprintf("Step set to %d", m.step), false)

	case focusRateInput:
		raw := strings.TrimSpace(m.rateInput.Value())
		rate, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			m.addLogEntry(fmt.Sprintf("Invalid rate: %q", raw), true)
			return m
		}
		m.rateInput.SetValue("")
		return m.setRate(rate)
	}
	return m
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

// jog moves one axis by delta from the last commanded position
func (m controlModel) jog(axis int, delta int32) controlModel {
	target := m.position
	target[axis] += delta
	return m.sendMove(target, fmt.Sprintf("jog %s%+d", axisNames[axis], delta))
}

// setRate clamps and applies a new feed rate, re-sending the current
// position so the device picks it up
func (m controlModel) setRate(rate int64) controlModel {
	if rate < minRate {
		rate = minRate
	}
	if rate > maxRate {
		rate = maxRate
	}
	m.rate = uint32(rate)
	m.rateInput.Placeholder = strconv.FormatInt(rate, 10)
	return m.sendMove(m.position, fmt.Sprintf("rate %d", m.rate))
}

func (m controlModel) sendMove(target s3g.Point, reason string) controlModel {
	if m.connectionLost {
		m.addLogEntry("Cannot send move: connection lost", true)
		return m
	}

	r := m.connMgr.getReplicator()
	if r == nil {
		m.addLogEntry("Cannot send move: connection lost", true)
		return m
	}

	if err := r.Move(target, m.rate); err != nil {
		m.addLogEntry(fmt.Sprintf("Failed to send move: %v", err), true)
		return m
	}

	m.position = target
	m.addLogEntry(fmt.Sprintf("MOVE (%s) X=%d Y=%d Z=%d @ %d", reason, target[0], target[1], target[2], m.rate), false)
	return m
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *controlModel) processFrameEvent(ev frameEvent) {
	if ev.err != nil {
		m.stats.RecordError(ev.err)
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", ev.err), true)
		return
	}

	validationErrors := s3g.ValidatePayload(ev.payload)
	m.stats.RecordFrame(validationErrors)
	m.lastFrame = ev.payload

	if len(validationErrors) > 0 {
		for _, err := range validationErrors {
			m.addLogEntry(fmt.Sprintf("RX: %s", err.Message), true)
		}
		return
	}
	m.addLogEntry(fmt.Sprintf("RX %s (%d bytes)", s3g.FormatCommandName(ev.payload[0]), len(ev.payload)), false)
}

func (m *controlModel) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

var axisNames = []string{"X", "Y", "Z", "A", "B"}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	focusedBoxStyle := boxStyle.BorderForeground(lipgloss.Color("12"))

	var s strings.Builder
	s.WriteString(titleStyle.Render("S3GCTL CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | arrows/PgUp/PgDn=jog +/-=rate h=home Tab=edit q=quit", connStatus)))
	s.WriteString("\n\n")

	// Layout: left panel (position) | right panel (settings)
	leftWidth := 36
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 24 {
		rightWidth = 24
	}

	var pos strings.Builder
	pos.WriteString(statsLabelStyle.Render("POSITION"))
	pos.WriteString("\n")
	for i, v := range m.position {
		pos.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render(axisNames[i]+":"), statsValueStyle.Render(fmt.Sprintf("%d", v))))
	}
	posStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusJog {
		posStyle = focusedBoxStyle.Width(leftWidth)
	}
	positionPanel := posStyle.Render(strings.TrimRight(pos.String(), "\n"))

	var set strings.Builder
	set.WriteString(statsLabelStyle.Render("SETTINGS"))
	set.WriteString("\n")
	set.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Step:"), m.renderInput(m.stepInput, m.focusedField == focusStepInput)))
	set.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Rate:"), m.renderInput(m.rateInput, m.focusedField == focusRateInput)))
	if m.synchronized {
		set.WriteString(statsValueStyle.Render("✓ Receiving frames"))
	} else {
		set.WriteString(headerStyle.Render("No inbound frames yet"))
	}
	settingsPanel := boxStyle.Width(rightWidth).Render(set.String())

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, positionPanel, " ", settingsPanel))
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Width(m.width - 4).Render(renderStats(m.stats)))
	s.WriteString("\n\n")

	if len(m.lastFrame) > 0 {
		s.WriteString(boxStyle.Width(m.width - 4).Render(strings.TrimRight(s3g.FormatPayload(m.lastFrame), "\n")))
		s.WriteString("\n\n")
	}

	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Width(m.width - 4).Render(renderEventLog(m.errorLog, 8)))

	return s.String()
}

// renderInput shows the live editor when focused, the current value otherwise
func (m controlModel) renderInput(input textinput.Model, focused bool) string {
	if focused {
		return input.View()
	}
	return statsValueStyle.Render(fmt.Sprintf("[%s]", input.Placeholder))
}
