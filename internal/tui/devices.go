// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"orbit/internal/playback"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	DetailScreen
)

// DeviceListModel lists output devices and shows the details of the
// selected one. Enter on a device records its ID in Selected.
type DeviceListModel struct {
	devices       []playback.DeviceInfo
	fetch         func() ([]playback.DeviceInfo, error)
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType
}

type devicesMsg struct {
	devices []playback.DeviceInfo
}

type errMsg struct {
	err error
}

// NewDeviceListModel creates a device list backed by fetch.
func NewDeviceListModel(fetch func() ([]playback.DeviceInfo, error)) DeviceListModel {
	return DeviceListModel{
		fetch:        fetch,
		activeScreen: ListScreen,
	}
}

// Init initializes the Bubble Tea model
func (m DeviceListModel) Init() tea.Cmd {
	return m.fetchDevices
}

// fetchDevices gets the output-capable devices
func (m DeviceListModel) fetchDevices() tea.Msg {
	devices, err := m.fetch()
	if err != nil {
		return errMsg{err}
	}
	outputs := devices[:0:0]
	for _, d := range devices {
		if d.MaxOutputChannels > 0 {
			outputs = append(outputs, d)
		}
	}
	return devicesMsg{outputs}
}

// Selected returns the highlighted device, if any.
func (m DeviceListModel) Selected() (playback.DeviceInfo, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.devices) {
		return playback.DeviceInfo{}, false
	}
	return m.devices[m.selectedIndex], true
}

// Update handles input and updates the model
func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
			m.viewport.SetContent(m.render())
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}

	case devicesMsg:
		m.devices = msg.devices
		if m.ready {
			m.viewport.SetContent(m.render())
		}

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, key.NewBinding(key.WithKeys("q", "ctrl+c"))) {
			return m, tea.Quit
		}

		switch m.activeScreen {
		case ListScreen:
			switch {
			case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
				if m.selectedIndex > 0 {
					m.selectedIndex--
				}
			case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
				if m.selectedIndex < len(m.devices)-1 {
					m.selectedIndex++
				}
			case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
				if len(m.devices) > 0 {
					m.activeScreen = DetailScreen
				}
			}
		case DetailScreen:
			if key.Matches(msg, key.NewBinding(key.WithKeys("esc"))) {
				m.activeScreen = ListScreen
			}
		}
		m.viewport.SetContent(m.render())
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the UI
func (m DeviceListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}

	var title, help string
	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Output Devices")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Details • q: Quit")
	} else {
		title = titleStyle.Render("Device Details")
		help = infoStyle.Render("Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DeviceListModel) render() string {
	if m.activeScreen == DetailScreen {
		return m.renderDetails()
	}
	return m.renderDevices()
}

// renderDevices formats the device list
func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No output devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		line := fmt.Sprintf("[%d] %s\n    Output channels: %d, Default sample rate: %.0f Hz\n",
			device.ID, device.Name, device.MaxOutputChannels, device.DefaultSampleRate)
		if i == m.selectedIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderDetails formats the selected device
func (m DeviceListModel) renderDetails() string {
	device, ok := m.Selected()
	if !ok {
		return "No device selected."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\n", highlightStyle.Render(device.Name))
	fmt.Fprintf(&sb, "%s%d\n", labelStyle.Render("Device ID"), device.ID)
	fmt.Fprintf(&sb, "%s%d\n", labelStyle.Render("Channels"), device.MaxOutputChannels)
	fmt.Fprintf(&sb, "%s%.0f Hz\n", labelStyle.Render("Sample rate"), device.DefaultSampleRate)
	fmt.Fprintf(&sb, "%s%.1f ms\n", labelStyle.Render("Low latency"), device.LowLatencyMs)
	fmt.Fprintf(&sb, "%s%.1f ms\n", labelStyle.Render("High latency"), device.HighLatencyMs)
	fmt.Fprintf(&sb, "\nUse --device %d to play through this device.\n", device.ID)
	return sb.String()
}

// StartDeviceListUI launches the Bubble Tea TUI for listing devices
func StartDeviceListUI() error {
	p := tea.NewProgram(
		NewDeviceListModel(playback.HostDevices),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
