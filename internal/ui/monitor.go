package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/ledble/internal/state"
)

// stateMsg delivers a device state update into the Bubble Tea loop.
type stateMsg struct {
	state *state.DeviceState
}

// closedMsg signals the update channel was closed (connection gone).
type closedMsg struct{}

// MonitorModel displays live device state. Updates arrive on a channel fed
// by the session's ambient notification handler plus periodic queries.
type MonitorModel struct {
	mac     string
	updates <-chan *state.DeviceState

	current *state.DeviceState
	count   int
	width   int
	closed  bool
}

// NewMonitorModel returns a monitor for the given device.
func NewMonitorModel(mac string, updates <-chan *state.DeviceState) MonitorModel {
	width, _ := GetTerminalSize()
	return MonitorModel{
		mac:     mac,
		updates: updates,
		width:   width,
	}
}

// Init implements tea.Model.
func (m MonitorModel) Init() tea.Cmd {
	return m.waitForUpdate()
}

// waitForUpdate blocks on the update channel as a Bubble Tea command.
func (m MonitorModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		st, ok := <-m.updates
		if !ok {
			return closedMsg{}
		}
		return stateMsg{state: st}
	}
}

// Update implements tea.Model.
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		m.current = msg.state
		m.count++
		return m, m.waitForUpdate()

	case closedMsg:
		m.closed = true
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		if m.width > MaxContentWidth {
			m.width = MaxContentWidth
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m MonitorModel) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Device Monitor"))
	b.WriteString(MutedStyle.Render(fmt.Sprintf("  %s  (%d updates)", m.mac, m.count)))
	b.WriteString("\n")

	if m.current == nil {
		b.WriteString(MutedStyle.Render("waiting for first state update..."))
	} else {
		b.WriteString(RenderState(m.current))
	}

	b.WriteString("\n")
	b.WriteString(MutedStyle.Render("press q to quit"))

	return BoxStyle(m.width).Render(b.String())
}

// RenderState formats a device state for terminal display.
func RenderState(st *state.DeviceState) string {
	var b strings.Builder

	power := OffStyle.Render("OFF")
	if st.PowerOn {
		power = OnStyle.Render("ON")
	}
	b.WriteString(KeyStyle.Render("Power") + power + "\n")

	if st.IsStatic {
		b.WriteString(KeyStyle.Render("Mode") + ValueStyle.Render("static color") + "\n")
		b.WriteString(KeyStyle.Render("Color") +
			fmt.Sprintf("%s  #%02X%02X%02X", Swatch(st.Red, st.Green, st.Blue), st.Red, st.Green, st.Blue) + "\n")
		if st.WarmWhite > 0 || st.CoolWhite > 0 {
			b.WriteString(KeyStyle.Render("Whites") +
				ValueStyle.Render(fmt.Sprintf("warm %d / cool %d", st.WarmWhite, st.CoolWhite)) + "\n")
		}
	} else {
		name := state.EffectName(st.EffectID)
		b.WriteString(KeyStyle.Render("Mode") + ValueStyle.Render("effect") + "\n")
		b.WriteString(KeyStyle.Render("Effect") +
			ValueStyle.Render(fmt.Sprintf("%s (0x%02X), speed %d", name, st.EffectID, st.EffectSpeed)) + "\n")
	}

	b.WriteString(KeyStyle.Render("Brightness") + BrightnessBar(st.Brightness, 20))

	if !st.Valid {
		b.WriteString("\n" + MutedStyle.Render("(from advertisement snapshot, unchecksummed)"))
	}
	return b.String()
}

// BrightnessBar renders a proportional bar for a 0-255 level.
func BrightnessBar(level byte, width int) string {
	filled := (int(level)*width + 127) / 255
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %d/255", bar, level)
}

// RunMonitor runs the monitor TUI until the user quits or the update
// channel closes.
func RunMonitor(mac string, updates <-chan *state.DeviceState) error {
	p := tea.NewProgram(NewMonitorModel(mac, updates))
	_, err := p.Run()
	return err
}
