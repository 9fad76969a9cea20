// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/bitbrick/pkg/bitbrick"
	"github.com/Thermoquad/bitbrick/pkg/blocks"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	blockListWidth = 38
	argInputWidth  = 8
)

// Focus states
const (
	focusBlockList = iota
	focusArgs
	focusButton
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// blockItem is one entry of the block list
type blockItem struct {
	block blocks.BlockInfo
}

// Implement list.Item interface
func (b blockItem) Title() string       { return b.block.Text }
func (b blockItem) Description() string { return fmt.Sprintf("%s (%s)", b.block.Opcode, b.block.BlockType) }
func (b blockItem) FilterValue() string { return b.block.Opcode }

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	ext      *blocks.Extension
	bus      *blocks.EventBus
	device   *bitbrick.Device
	info     blocks.ExtensionInfo
	connInfo string

	// Block selection
	blockList list.Model
	selected  string // opcode whose argument inputs are loaded

	// Arguments of the selected block, in text order
	argNames  []string
	argInputs []textinput.Model
	argFocus  int

	// Monitoring
	stats         *bitbrick.Statistics
	events        eventLog
	sensors       bitbrick.SensorValues
	hasSensors    bool
	sensorFailing bool

	// Output state as of the last completed invocation
	state     bitbrick.CommandState
	lastFrame string

	// UI state
	styles         tuiStyles
	focusedField   int
	width          int
	height         int
	busy           bool
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type invokeResultMsg struct {
	opcode string
	value  any
	err    error
	state  bitbrick.CommandState
	frame  string
}

type stopAllMsg struct {
	handlers int
	state    bitbrick.CommandState
	frame    string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(ext *blocks.Extension, bus *blocks.EventBus, device *bitbrick.Device, stats *bitbrick.Statistics, connInfo string) controlModel {
	info := ext.GetInfo()

	items := make([]list.Item, len(info.Blocks))
	for i, b := range info.Blocks {
		items[i] = blockItem{block: b}
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	blockList := list.New(items, delegate, blockListWidth, 14)
	blockList.Title = "Blocks"
	blockList.SetShowStatusBar(false)
	blockList.SetShowHelp(false)
	blockList.SetFilteringEnabled(false)

	m := controlModel{
		ext:          ext,
		bus:          bus,
		device:       device,
		info:         info,
		connInfo:     connInfo,
		blockList:    blockList,
		stats:        stats,
		styles:       newTUIStyles(),
		focusedField: focusBlockList,
		width:        80,
		height:       24,
	}
	m.syncArgs()
	return m
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

	case tea.MouseMsg:
		if m.focusedField == focusBlockList {
			m.blockList, _ = m.blockList.Update(msg)
			m.syncArgs()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case controlTickMsg:
		m.stats.CalculateRates()
		return m, controlTickCmd()

	case sensorReadMsg:
		m.applySensorRead(msg)

	case invokeResultMsg:
		m.busy = false
		m.state = msg.state
		m.lastFrame = msg.frame
		m.applyInvokeResult(msg)

	case stopAllMsg:
		m.state = msg.state
		m.lastFrame = msg.frame
		m.events.add(fmt.Sprintf("Stop all (%d handlers)", msg.handlers), false)

	case connectionLostMsg:
		m.connectionLost = true
		m.events.add("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.events.add("Reconnected", false)
	}

	return m, nil
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if m.focusedField != focusArgs {
			m.quitting = true
			return m, tea.Quit
		}

	case "ctrl+s":
		return m, stopAllCmd(m.bus, m.device)

	case "tab":
		m.cycleFocus(1)
		return m, nil

	case "shift+tab":
		m.cycleFocus(-1)
		return m, nil

	case "enter":
		if m.focusedField == focusBlockList {
			m.syncArgs()
			m.cycleFocus(1)
			return m, nil
		}
		return m.invokeSelected()

	case "up", "k", "down", "j":
		if m.focusedField == focusBlockList {
			m.blockList, _ = m.blockList.Update(msg)
			m.syncArgs()
			return m, nil
		}
	}

	// Pass through to focused input
	if m.focusedField == focusArgs && len(m.argInputs) > 0 {
		var cmd tea.Cmd
		m.argInputs[m.argFocus], cmd = m.argInputs[m.argFocus].Update(msg)
		return m, cmd
	}

	return m, nil
}

// cycleFocus walks list, each argument input, then the invoke button
func (m *controlModel) cycleFocus(delta int) {
	// Flatten focus positions: list, args..., button
	positions := 2 + len(m.argInputs)
	pos := 0
	switch m.focusedField {
	case focusArgs:
		pos = 1 + m.argFocus
	case focusButton:
		pos = positions - 1
	}
	pos = (pos + delta + positions) % positions

	for i := range m.argInputs {
		m.argInputs[i].Blur()
	}

	switch {
	case pos == 0:
		m.focusedField = focusBlockList
	case pos == positions-1:
		m.focusedField = focusButton
	default:
		m.focusedField = focusArgs
		m.argFocus = pos - 1
		m.argInputs[m.argFocus].Focus()
	}
}

func (m *controlModel) selectedBlock() (blocks.BlockInfo, bool) {
	item, ok := m.blockList.SelectedItem().(blockItem)
	if !ok {
		return blocks.BlockInfo{}, false
	}
	return item.block, true
}

// syncArgs rebuilds the argument inputs when the selection changed
func (m *controlModel) syncArgs() {
	block, ok := m.selectedBlock()
	if !ok || block.Opcode == m.selected {
		return
	}

	m.selected = block.Opcode
	m.argNames = block.ArgumentNames()
	m.argInputs = make([]textinput.Model, len(m.argNames))
	m.argFocus = 0

	for i, name := range m.argNames {
		ti := textinput.New()
		ti.Prompt = name + ": "
		ti.Placeholder = m.defaultLabel(block.Arguments[name])
		ti.CharLimit = 8
		ti.Width = argInputWidth
		m.argInputs[i] = ti
	}
}

// defaultLabel shows an argument default the way a user would type it
func (m *controlModel) defaultLabel(arg blocks.ArgumentInfo) string {
	def := fmt.Sprint(arg.DefaultValue)
	for _, item := range m.info.Menus[arg.Menu] {
		if item.Value == def {
			return item.Text
		}
	}
	return def
}

func (m controlModel) invokeSelected() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	block, ok := m.selectedBlock()
	if !ok {
		return m, nil
	}

	raw := make(map[string]string)
	for i, name := range m.argNames {
		if v := strings.TrimSpace(m.argInputs[i].Value()); v != "" {
			raw[name] = v
		}
	}

	args, err := m.info.ResolveArgs(block.Opcode, raw)
	if err != nil {
		m.events.add(err.Error(), true)
		return m, nil
	}

	m.busy = true
	return m, invokeCmd(m.ext, m.device, block.Opcode, args)
}

func invokeCmd(ext *blocks.Extension, device *bitbrick.Device, opcode string, args blocks.Args) tea.Cmd {
	return func() tea.Msg {
		value, err := ext.Invoke(opcode, args)
		return invokeResultMsg{
			opcode: opcode,
			value:  value,
			err:    err,
			state:  device.State(),
			frame:  device.LastFrame(),
		}
	}
}

func stopAllCmd(bus *blocks.EventBus, device *bitbrick.Device) tea.Cmd {
	return func() tea.Msg {
		n := bus.Emit(blocks.ProjectStopAll)
		return stopAllMsg{handlers: n, state: device.State(), frame: device.LastFrame()}
	}
}

func (m *controlModel) applyInvokeResult(msg invokeResultMsg) {
	switch {
	case msg.err != nil:
		m.events.add(fmt.Sprintf("%s: %v", msg.opcode, msg.err), true)
	case msg.opcode == blocks.OpGetSensorValue && msg.value == nil:
		m.events.add(fmt.Sprintf("%s: port out of range, no value", msg.opcode), false)
	case msg.value != nil:
		m.events.add(fmt.Sprintf("%s = %v", msg.opcode, msg.value), false)
	default:
		m.events.add(fmt.Sprintf("%s sent", msg.opcode), false)
	}
}

func (m *controlModel) applySensorRead(msg sensorReadMsg) {
	if msg.err != nil {
		if !m.sensorFailing {
			m.events.add(fmt.Sprintf("sensor read: %v", msg.err), true)
		}
		m.sensorFailing = true
		return
	}
	m.sensorFailing = false
	m.sensors = msg.values
	m.hasSensors = true
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m controlModel) View() string {
	if m.quitting {
		return "Stopping all outputs and shutting down...\n"
	}

	st := m.styles
	var s strings.Builder

	// Header
	s.WriteString(st.title.Render("BITBRICK CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = st.warning.Render("RECONNECTING...")
	}
	s.WriteString(st.header.Render(fmt.Sprintf("| %s | q=quit Tab=switch Enter=invoke ctrl+s=stop all", connStatus)))
	s.WriteString("\n\n")

	// Block list (left) and control panel (right)
	listStyle := st.box.Width(blockListWidth)
	if m.focusedField == focusBlockList {
		listStyle = st.focusedBox.Width(blockListWidth)
	}
	blockPanel := listStyle.Render(m.blockList.View())

	rightWidth := m.width - blockListWidth - 7
	if rightWidth < 30 {
		rightWidth = 30
	}
	controlPanel := st.box.Width(rightWidth).Render(m.renderControlPanel())

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, blockPanel, " ", controlPanel))
	s.WriteString("\n")

	s.WriteString(renderSensors(st, m.sensors, m.hasSensors, m.width-4))
	s.WriteString("\n")
	s.WriteString(renderStatistics(st, m.stats, m.width-4))
	s.WriteString("\n")
	s.WriteString(renderEventLog(st, m.events, 8, m.width-4))

	return s.String()
}

func (m controlModel) renderControlPanel() string {
	st := m.styles
	var s strings.Builder

	block, ok := m.selectedBlock()
	if !ok {
		s.WriteString(st.header.Render("No block selected"))
		return s.String()
	}

	s.WriteString(fmt.Sprintf("%s %s\n", st.label.Render("Block:"), block.Text))
	s.WriteString(st.header.Render(block.Description))
	s.WriteString("\n\n")

	if len(m.argInputs) == 0 {
		s.WriteString(st.header.Render("(no arguments)"))
		s.WriteString("\n")
	}
	for i := range m.argInputs {
		s.WriteString(m.argInputs[i].View())
		s.WriteString("\n")
	}
	s.WriteString("\n")

	btnText := "[ Invoke ]"
	if m.busy {
		btnText = "[ ... ]"
	}
	if m.focusedField == focusButton {
		s.WriteString(st.focusedBtn.Render(btnText))
	} else {
		s.WriteString(st.button.Render(btnText))
	}
	s.WriteString("\n\n")

	s.WriteString(st.label.Render("OUTPUT STATE"))
	s.WriteString("\n")
	s.WriteString(strings.TrimRight(bitbrick.FormatCommandState(m.state), "\n"))
	if m.lastFrame != "" {
		s.WriteString("\n")
		s.WriteString(st.header.Render(m.lastFrame))
	}

	return s.String()
}
