// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/bitbrick/pkg/bitbrick"
)

//////////////////////////////////////////////////////////////
// Shared
//////////////////////////////////////////////////////////////

const (
	maxLogEntries  = 100
	sensorBarWidth = 32
)

// eventLogEntry is one line of the event log
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

type eventLog []eventLogEntry

func (l *eventLog) add(message string, isError bool) {
	*l = append(*l, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(*l) > maxLogEntries {
		*l = (*l)[len(*l)-maxLogEntries:]
	}
}

// tuiStyles is the palette shared by the dashboards
type tuiStyles struct {
	title      lipgloss.Style
	header     lipgloss.Style
	label      lipgloss.Style
	value      lipgloss.Style
	err        lipgloss.Style
	warning    lipgloss.Style
	box        lipgloss.Style
	focusedBox lipgloss.Style
	button     lipgloss.Style
	focusedBtn lipgloss.Style
}

func newTUIStyles() tuiStyles {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	button := lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12")).
		Padding(0, 2)

	return tuiStyles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1),
		header:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		label:      lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		value:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		err:        lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		warning:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		box:        box,
		focusedBox: box.BorderForeground(lipgloss.Color("12")),
		button:     button,
		focusedBtn: button.Background(lipgloss.Color("10")),
	}
}

// Messages
type sensorReadMsg struct {
	values bitbrick.SensorValues
	err    error
	at     time.Time
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

// renderSensors draws one bar per sensor channel
func renderSensors(st tuiStyles, values bitbrick.SensorValues, have bool, width int) string {
	var s strings.Builder
	s.WriteString(st.label.Render("SENSORS"))
	s.WriteString("\n")

	if !have {
		s.WriteString(st.warning.Render("Waiting for sensor frame..."))
		return st.box.Width(width).Render(s.String())
	}

	for i, v := range values {
		s.WriteString(fmt.Sprintf("%s %s %s",
			st.label.Render(bitbrick.SensorPorts[i]),
			st.value.Render(bitbrick.FormatSensorBar(v, sensorBarWidth)),
			st.value.Render(fmt.Sprintf("%4d", v)),
		))
		if i < len(values)-1 {
			s.WriteString("\n")
		}
	}
	return st.box.Width(width).Render(s.String())
}

// renderStatistics draws the one-line statistics bar
func renderStatistics(st tuiStyles, stats *bitbrick.Statistics, width int) string {
	c := stats.Snapshot()

	var validPercent float64
	if c.SensorFrames > 0 {
		validPercent = float64(c.ValidFrames) * 100.0 / float64(c.SensorFrames)
	}
	errCount := c.SendErrors + c.DecodeErrors + c.ReadErrors

	errText := st.value.Render("0")
	if errCount > 0 {
		errText = st.err.Render(fmt.Sprintf("%d", errCount))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		st.label.Render("Sent:"), st.value.Render(fmt.Sprintf("%d", c.CommandsSent)),
		st.label.Render("Frames:"), st.value.Render(fmt.Sprintf("%d", c.SensorFrames)),
		st.label.Render("Valid:"), st.value.Render(fmt.Sprintf("%.1f%%", validPercent)),
		st.label.Render("Errors:"), errText,
		st.label.Render("Rate:"), st.value.Render(fmt.Sprintf("%.1f fr/s", c.SensorRate)),
	)
	return st.box.Width(width).Render(content)
}

// renderEventLog draws the most recent entries that fit in rows lines
func renderEventLog(st tuiStyles, log eventLog, rows, width int) string {
	var s strings.Builder
	s.WriteString(st.label.Render("EVENTS"))
	s.WriteString("\n")

	if rows < 3 {
		rows = 3
	}
	startIdx := len(log) - rows
	if startIdx < 0 {
		startIdx = 0
	}

	if len(log) == 0 {
		s.WriteString(st.header.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(log); i++ {
			entry := log[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				s.WriteString(fmt.Sprintf("%s %s", st.header.Render(timestamp), st.err.Render("✗ "+entry.message)))
			} else {
				s.WriteString(fmt.Sprintf("%s %s", st.header.Render(timestamp), st.warning.Render("ℹ "+entry.message)))
			}
			if i < len(log)-1 {
				s.WriteString("\n")
			}
		}
	}

	return st.box.Width(width).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Monitor dashboard
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

// monitorModel is the Bubble Tea model for monitor --tui
type monitorModel struct {
	connInfo string
	interval time.Duration
	stats    *bitbrick.Statistics
	events   eventLog
	styles   tuiStyles

	sensors    bitbrick.SensorValues
	hasSensors bool
	lastRead   time.Time
	failing    bool

	width          int
	height         int
	quitting       bool
	connectionLost bool
}

func initialMonitorModel(connInfo string, interval time.Duration, stats *bitbrick.Statistics) monitorModel {
	return monitorModel{
		connInfo: connInfo,
		interval: interval,
		stats:    stats,
		styles:   newTUIStyles(),
		width:    80,
		height:   24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.events.add("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		m.stats.CalculateRates()
		return m, monitorTickCmd()

	case sensorReadMsg:
		m.applySensorRead(msg)

	case connectionLostMsg:
		m.connectionLost = true
		m.events.add("Connection lost", true)
	}

	return m, nil
}

// applySensorRead folds one poll result into the model. Repeated failures
// are logged once until a read succeeds again.
func (m *monitorModel) applySensorRead(msg sensorReadMsg) {
	if msg.err != nil {
		if !m.failing {
			m.events.add(msg.err.Error(), true)
		}
		m.failing = true
		return
	}

	if m.failing {
		m.events.add("Sensor frames resumed", false)
	} else if !m.hasSensors {
		m.events.add("First sensor frame", false)
	}
	m.failing = false
	m.sensors = msg.values
	m.hasSensors = true
	m.lastRead = msg.at
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	st := m.styles
	var s strings.Builder

	s.WriteString(st.title.Render("BITBRICK MONITOR"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = st.err.Render("DISCONNECTED")
	}
	s.WriteString(st.header.Render(fmt.Sprintf("| %s | every %v | q=quit r=reset", connStatus, m.interval)))
	s.WriteString("\n\n")

	s.WriteString(renderSensors(st, m.sensors, m.hasSensors, m.width-4))
	s.WriteString("\n")
	if m.hasSensors {
		s.WriteString(st.header.Render(fmt.Sprintf(" last read %s", m.lastRead.Format("15:04:05.000"))))
	}
	s.WriteString("\n")
	s.WriteString(renderStatistics(st, m.stats, m.width-4))
	s.WriteString("\n")
	s.WriteString(renderEventLog(st, m.events, m.height-18, m.width-4))

	return s.String()
}
