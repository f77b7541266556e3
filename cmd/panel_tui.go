// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/wmsctl/pkg/board"
	"github.com/Thermoquad/wmsctl/pkg/engine"
	"github.com/Thermoquad/wmsctl/pkg/wmsproto"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	tickInterval   = 100 * time.Millisecond
	warningTimeout = 5 * time.Second
	maxLogEntries  = 100
	logLines       = 8
)

// clickKeys maps a key to the button it clicks
var clickKeys = map[string]string{
	"1": "PS1",
	"2": "PS2",
	"3": "PS3",
	"c": "cancel",
	"a": "accept",
	"d": "door",
	"m": "motor",
	"r": "reset",
}

// holdKeys maps a shifted key to the button it holds down or lets go
var holdKeys = map[string]string{
	"!": "PS1",
	"@": "PS2",
	"#": "PS3",
	"C": "cancel",
	"A": "accept",
	"D": "door",
	"M": "motor",
	"R": "reset",
}

// Motor sprite frames per direction
var motorFrames = [2][board.MotorFrames]string{
	{"|", "/", "-"},
	{"|", "\\", "-"},
}

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// panelKeyMap lists the panel key bindings
type panelKeyMap struct {
	Click   key.Binding
	Hold    key.Binding
	Command key.Binding
	Halt    key.Binding
	Quit    key.Binding
}

func (k panelKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Click, k.Hold, k.Command, k.Halt, k.Quit}
}

func (k panelKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func newPanelKeyMap() panelKeyMap {
	return panelKeyMap{
		Click: key.NewBinding(
			key.WithKeys("1", "2", "3", "c", "a", "d", "m", "r"),
			key.WithHelp("1-3/c/a/d/m/r", "click"),
		),
		Hold: key.NewBinding(
			key.WithKeys("!", "@", "#", "C", "A", "D", "M", "R"),
			key.WithHelp("shift+key", "hold"),
		),
		Command: key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "command")),
		Halt:    key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "halt")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// logEntry is one line of the event log
type logEntry struct {
	timestamp time.Time
	message   string
	isWarning bool
}

// panelModel is the Bubble Tea model for the board panel
type panelModel struct {
	connMgr  *connectionManager
	eng      *engine.Engine
	connInfo string

	// Board
	state   board.State
	buttons []board.Button
	held    map[string]bool

	// Monitoring
	stats     *wmsproto.Statistics
	eventLog  []logEntry
	warning   string
	warningAt time.Time

	// Input
	input textinput.Model
	keys  panelKeyMap
	help  help.Model

	// UI state
	width          int
	height         int
	quitting       bool
	connectionLost bool
	backoff        time.Duration
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type panelTickMsg time.Time

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func newPanelModel(connMgr *connectionManager, eng *engine.Engine) panelModel {
	ti := textinput.New()
	ti.Prompt = ": "
	ti.Placeholder = "D0L3"
	ti.CharLimit = 64
	ti.Width = 40

	m := panelModel{
		connMgr: connMgr,
		eng:     eng,
		held:    make(map[string]bool),
		stats:   wmsproto.NewStatistics(),
		input:   ti,
		keys:    newPanelKeyMap(),
		help:    help.New(),
		width:   80,
		height:  24,
		backoff: initialBackoff,
	}
	if connMgr != nil {
		m.connInfo = connMgr.target.String()
	}
	if eng != nil {
		m.buttons = eng.Buttons()
		m.state = eng.State()
	} else {
		m.buttons = board.DefaultButtons()
	}
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m panelModel) Init() tea.Cmd {
	return tea.Batch(panelTickCmd(), textinput.Blink)
}

func panelTickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return panelTickMsg(t)
	})
}

func (m panelModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case panelTickMsg:
		cmd := m.handleTick(time.Time(msg))
		return m, tea.Batch(cmd, panelTickCmd())

	case connectedMsg:
		m.eng = msg.eng
		m.connectionLost = false
		m.backoff = initialBackoff
		m.held = make(map[string]bool)
		m.stats.Reset()
		m.state = m.eng.State()
		m.addLogEntry("Reconnected", false)

	case reconnectFailedMsg:
		m.backoff = msg.backoff
		if m.connMgr != nil {
			return m, m.connMgr.reconnectCmd(m.backoff)
		}
	}

	if m.input.Focused() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleTick polls the engine and ages the warning line
func (m *panelModel) handleTick(now time.Time) tea.Cmd {
	m.expireWarning(now)
	m.stats.CalculateRates()

	if m.eng == nil {
		return nil
	}

	if !m.eng.Connected() {
		m.drainEngine(now)
		m.eng.Close()
		m.eng = nil
		m.connectionLost = true
		m.addLogEntry("Connection lost - reconnecting...", true)
		if m.connMgr == nil {
			return nil
		}
		return m.connMgr.reconnectCmd(m.backoff)
	}

	events, _ := m.eng.Tick()
	m.recordEvents(now, events)
	m.state = m.eng.State()
	return nil
}

// drainEngine collects the last events of a lost engine, e.g. the timeout warning
func (m *panelModel) drainEngine(now time.Time) {
	for {
		events, _ := m.eng.DrainEvents()
		if len(events) == 0 {
			return
		}
		m.recordEvents(now, events)
	}
}

func (m *panelModel) recordEvents(now time.Time, events []wmsproto.Event) {
	for _, ev := range events {
		m.stats.Update(ev)
		switch ev.Kind {
		case wmsproto.EventWarning:
			m.warning = ev.Message
			m.warningAt = now
			m.addLogEntry(ev.Message, true)
		case wmsproto.EventEnabled:
			if ev.Enabled != m.state.Enabled {
				m.addLogEntry(wmsproto.FormatEvent(ev), false)
			}
		}
	}
}

func (m *panelModel) expireWarning(now time.Time) {
	if m.warning != "" && now.Sub(m.warningAt) >= warningTimeout {
		m.warning = ""
	}
}

func (m panelModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.input.Focused() {
		switch msg.String() {
		case "enter":
			m.submitCommand()
			return m, nil
		case "esc":
			m.input.Blur()
			m.input.Reset()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Command):
		cmd := m.input.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Halt):
		if m.eng == nil {
			m.addLogEntry("Cannot halt: connection lost", true)
			return m, nil
		}
		if err := m.eng.Halt(); err != nil {
			m.addLogEntry(fmt.Sprintf("Halt failed: %v", err), true)
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Click):
		m.clickButton(clickKeys[msg.String()])

	case key.Matches(msg, m.keys.Hold):
		m.toggleHold(holdKeys[msg.String()])
	}
	return m, nil
}

func (m *panelModel) submitCommand() {
	text := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	m.input.Blur()
	if text == "" {
		return
	}
	if m.eng == nil {
		m.addLogEntry("Cannot send command: connection lost", true)
		return
	}
	if err := m.eng.IssueCommand(text); err != nil {
		m.addLogEntry(fmt.Sprintf("Command failed: %v", err), true)
		return
	}
	m.addLogEntry(fmt.Sprintf("Sent %q", wmsproto.Terminate(text)), false)
}

func (m *panelModel) clickButton(name string) {
	if m.eng == nil {
		m.addLogEntry("Cannot press: connection lost", true)
		return
	}
	if _, err := m.eng.Click(name); err != nil {
		m.addLogEntry(fmt.Sprintf("%s: %v", name, err), true)
		return
	}
	delete(m.held, name)
	m.state = m.eng.State()
}

func (m *panelModel) toggleHold(name string) {
	if m.eng == nil {
		m.addLogEntry("Cannot press: connection lost", true)
		return
	}
	var err error
	if m.held[name] {
		_, err = m.eng.Release(name)
		delete(m.held, name)
	} else {
		_, err = m.eng.Press(name)
		m.held[name] = true
	}
	if err != nil {
		m.addLogEntry(fmt.Sprintf("%s: %v", name, err), true)
		return
	}
	m.state = m.eng.State()
}

func (m *panelModel) addLogEntry(message string, isWarning bool) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: time.Now(),
		message:   message,
		isWarning: isWarning,
	})
	if len(m.eventLog) > maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	ledOnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	ledOffStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))

	segmentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Background(lipgloss.Color("0")).
			Bold(true).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	buttonUpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("250")).
			Padding(0, 1)

	buttonDownStyle = buttonUpStyle.
			Background(lipgloss.Color("10"))
)

func (m panelModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("WMS PANEL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s", connStatus)))
	s.WriteString("\n\n")

	outputs := boxStyle.Render(m.renderOutputs())
	registers := boxStyle.Render(m.renderRegisters())
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, outputs, " ", registers))
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(m.renderButtons()))
	s.WriteString("\n")

	if m.warning != "" {
		s.WriteString(warningStyle.Render(m.warning))
	}
	s.WriteString("\n")

	s.WriteString(m.renderEventLog())
	s.WriteString("\n")

	if m.input.Focused() {
		s.WriteString(m.input.View())
		s.WriteString("\n")
	}
	s.WriteString(m.help.View(m.keys))
	return s.String()
}

func (m panelModel) renderOutputs() string {
	var s strings.Builder

	s.WriteString(labelStyle.Render("LEDs "))
	for i := 0; i < 4; i++ {
		name := string(rune('A' + i))
		if m.state.LED(i) {
			s.WriteString(ledOnStyle.Render("●" + name))
		} else {
			s.WriteString(ledOffStyle.Render("○" + name))
		}
		s.WriteString(" ")
	}
	s.WriteString("\n")

	s.WriteString(labelStyle.Render("Display "))
	s.WriteString(segmentStyle.Render(string(m.state.SevenSegGlyph())))
	s.WriteString("\n")

	s.WriteString(labelStyle.Render("Motor "))
	s.WriteString(valueStyle.Render(motorText(m.state)))
	s.WriteString("\n")

	s.WriteString(labelStyle.Render("Latch "))
	s.WriteString(valueStyle.Render(onOff(m.state.Latch)))
	return s.String()
}

func (m panelModel) renderRegisters() string {
	var s strings.Builder

	gpiod := valueStyle.Render("enabled")
	if !m.state.Enabled {
		gpiod = warningStyle.Render("disabled")
	} else if m.state.NeedsResync {
		gpiod = warningStyle.Render("syncing")
	}
	s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("GPIOD"), gpiod))
	s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("MODER"), valueStyle.Render(fmt.Sprintf("0x%08X", m.state.Mode))))
	s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("IDR  "), valueStyle.Render(fmt.Sprintf("0x%08X", m.state.Input))))
	s.WriteString(fmt.Sprintf("%s %s", labelStyle.Render("SR   "), valueStyle.Render(fmt.Sprintf("0x%08X", m.state.Status))))
	return s.String()
}

func (m panelModel) renderButtons() string {
	parts := make([]string, 0, len(m.buttons))
	for _, b := range m.buttons {
		label := b.Name()
		down := false
		if pin, ok := b.Pin(); ok {
			down = m.state.Level(pin) == 1
			if m.state.IsLatched(pin) {
				label += "*"
			}
		}
		if m.held[b.Name()] {
			down = true
		}
		if down {
			parts = append(parts, buttonDownStyle.Render(label))
		} else {
			parts = append(parts, buttonUpStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, joinSpaced(parts)...)
}

func (m panelModel) renderEventLog() string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("EVENTS"))
	s.WriteString(headerStyle.Render(fmt.Sprintf("  %.1f ev/s, %d warnings", m.stats.EventRate, m.stats.Warnings)))
	s.WriteString("\n")

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
		return s.String()
	}

	start := len(m.eventLog) - logLines
	if start < 0 {
		start = 0
	}
	for _, entry := range m.eventLog[start:] {
		style := valueStyle
		if entry.isWarning {
			style = errorStyle
		}
		s.WriteString(fmt.Sprintf("  %s %s\n",
			headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
			style.Render(entry.message)))
	}
	return s.String()
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

// motorText describes the motor with its animation frame
func motorText(s board.State) string {
	if !s.Motor {
		return "stopped"
	}
	dir := "cw"
	if s.Direction == 1 {
		dir = "ccw"
	}
	return fmt.Sprintf("%s %s", motorFrames[s.Direction][s.MotorFrame%board.MotorFrames], dir)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func joinSpaced(parts []string) []string {
	out := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			out = append(out, " ")
		}
		out = append(out, p)
	}
	return out
}
