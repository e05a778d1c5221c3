// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/s3gctl/pkg/s3g"
)

// Event log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// TUI model
type model struct {
	connInfo      string
	statsInterval time.Duration
	showAll       bool
	stats         *s3g.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int
	synchronized  bool
	invalidBytes  int
	width         int
	height        int
	quitting      bool
	lastPoint     *s3g.QueuePoint
	lastPointTime time.Time
	linkErr       error
}

// Messages
type tickMsg time.Time
type frameDataMsg struct {
	event            frameEvent
	validationErrors []s3g.ValidationError
}
type syncMsg struct {
	invalidBytes int
}
type linkErrorMsg struct {
	err error
}

func initialModel(connInfo string, statsInterval time.Duration, showAll bool) model {
	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         s3g.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case syncMsg:
		m.synchronized = true
		m.invalidBytes = msg.invalidBytes
		if msg.invalidBytes > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid bytes", msg.invalidBytes), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case linkErrorMsg:
		m.linkErr = msg.err
		m.addLogEntry(fmt.Sprintf("LINK ERROR: %v", msg.err), true)

	case frameDataMsg:
		m.processFrame(msg)
	}

	return m, nil
}

func (m *model) processFrame(msg frameDataMsg) {
	ev := msg.event
	if ev.err != nil {
		m.stats.RecordError(ev.err)
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", ev.err), true)
		return
	}

	m.stats.RecordFrame(msg.validationErrors)
	name := "EMPTY"
	if len(ev.payload) > 0 {
		name = s3g.FormatCommandName(ev.payload[0])
	}

	if qp, err := s3g.ParseQueueExtendedPoint(ev.payload); err == nil {
		m.lastPoint = &qp
		m.lastPointTime = ev.timestamp
	}

	if len(msg.validationErrors) > 0 {
		for _, err := range msg.validationErrors {
			m.addLogEntry(fmt.Sprintf("%s: %s", name, err.Message), true)
		}
	} else if m.showAll {
		m.addLogEntry(fmt.Sprintf("%s (valid)", name), false)
	}
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

// Shared styles for both TUIs
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("S3GCTL - ERROR DETECTION"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | 'r' reset stats, 'q' quit", m.connInfo, mode)))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.linkErr != nil:
		s.WriteString(errorStyle.Render("✗ Link failed"))
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.invalidBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d invalid bytes)", m.invalidBytes)))
		}
	}
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Render(renderStats(m.stats)))
	s.WriteString("\n\n")

	// Last queued point (only shown once one is seen)
	if m.lastPoint != nil {
		s.WriteString(statsLabelStyle.Render("Latest Point:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(renderPoint(m.lastPoint.Position, m.lastPoint.Rate) +
			headerStyle.Render("  at "+m.lastPointTime.Format("15:04:05.000"))))
		s.WriteString("\n\n")
	}

	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 15 // Reserve space for header and stats
	if logHeight < 5 {
		logHeight = 5
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(renderEventLog(m.errorLog, logHeight)))

	return s.String()
}

// renderStats renders the statistics panel content
func renderStats(stats *s3g.Statistics) string {
	stats.CalculateRates()

	var validPercent, errorPercent float64
	totalErrors := stats.TotalErrors() + stats.Anomalies
	if stats.TotalFrames > 0 {
		validPercent = float64(stats.ValidFrames) * 100.0 / float64(stats.TotalFrames)
		errorPercent = float64(totalErrors) * 100.0 / float64(stats.TotalFrames+stats.TotalErrors())
	}

	var content strings.Builder
	content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", stats.ValidFrames, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", totalErrors, errorPercent)),
	))

	if stats.HeaderErrors > 0 || stats.LengthErrors > 0 || stats.CRCErrors > 0 {
		content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("Header:"), errorStyle.Render(fmt.Sprintf("%d", stats.HeaderErrors)),
			statsLabelStyle.Render("Length:"), errorStyle.Render(fmt.Sprintf("%d", stats.LengthErrors)),
			statsLabelStyle.Render("CRC:"), errorStyle.Render(fmt.Sprintf("%d", stats.CRCErrors)),
		))
	}

	if stats.Anomalies > 0 {
		content.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Anomalies:"), warningStyle.Render(fmt.Sprintf("%d", stats.Anomalies)),
		))
	}

	if stats.Moves > 0 || stats.Transmissions > 0 {
		content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("Moves:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.Moves)),
			statsLabelStyle.Render("Sent:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.Transmissions)),
			statsLabelStyle.Render("Timeouts:"), warningStyle.Render(fmt.Sprintf("%d", stats.Timeouts)),
		))
	}

	rateStyle := statsValueStyle
	if stats.ErrorRate > 0 {
		rateStyle = errorStyle
	}
	content.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", stats.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), rateStyle.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate)),
	))

	return content.String()
}

// renderPoint renders a position and rate on one line
func renderPoint(p s3g.Point, rate uint32) string {
	axes := []string{"X", "Y", "Z", "A", "B"}
	var parts []string
	for i, v := range p {
		parts = append(parts, fmt.Sprintf("%s %s", statsLabelStyle.Render(axes[i]+":"), statsValueStyle.Render(fmt.Sprintf("%d", v))))
	}
	parts = append(parts, fmt.Sprintf("%s %s", statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%d", rate))))
	return strings.Join(parts, "  ")
}

// renderEventLog renders the last height entries of log
func renderEventLog(log []errorLogEntry, height int) string {
	if len(log) == 0 {
		return headerStyle.Render("  (no events yet)")
	}

	startIdx := len(log) - height
	if startIdx < 0 {
		startIdx = 0
	}

	var content strings.Builder
	for i := startIdx; i < len(log); i++ {
		entry := log[i]
		timestamp := entry.timestamp.Format("15:04:05.000")
		if entry.isError {
			content.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
		} else {
			content.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), warningStyle.Render("ℹ "+entry.message)))
		}
	}
	return content.String()
}
