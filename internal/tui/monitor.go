// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"time"

	"orbit/internal/scene"
	"orbit/internal/session"
	"orbit/internal/spectrum"
	"orbit/internal/store"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

// refreshInterval is how often the monitor polls the session.
const refreshInterval = 100 * time.Millisecond

// speedStep is the rotation speed change per key press, in radians per frame.
const speedStep = 0.005

// bandFull is the band energy drawn as a full bar (a quarter of 128 bins at 255).
const bandFull = 32 * 255

// Monitored is the part of a session the monitor reads and steers.
type Monitored interface {
	Snapshot() session.Snapshot
	Controls() *session.Controls
}

type keyMap struct {
	Faster key.Binding
	Slower key.Binding
	Dither key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Faster: key.NewBinding(key.WithKeys("+", "=", "up")),
	Slower: key.NewBinding(key.WithKeys("-", "_", "down")),
	Dither: key.NewBinding(key.WithKeys("d")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

type tickMsg time.Time

// MonitorModel shows the live state of a session.
type MonitorModel struct {
	source Monitored
	snap   session.Snapshot
	bar    progress.Model
	width  int
}

// NewMonitorModel creates a monitor for source.
func NewMonitorModel(source Monitored) MonitorModel {
	return MonitorModel{
		source: source,
		snap:   source.Snapshot(),
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(40)),
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts polling.
func (m MonitorModel) Init() tea.Cmd {
	return tick()
}

// Update handles input and refreshes the snapshot.
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(10, min(60, msg.Width-labelStyle.GetWidth()-4))

	case tickMsg:
		m.snap = m.source.Snapshot()
		return m, tick()

	case tea.KeyMsg:
		controls := m.source.Controls()
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Faster):
			controls.AdjustRotationSpeed(speedStep)
		case key.Matches(msg, keys.Slower):
			controls.AdjustRotationSpeed(-speedStep)
		case key.Matches(msg, keys.Dither):
			controls.ToggleDither()
		}
		m.snap = m.source.Snapshot()
	}
	return m, nil
}

// View renders the monitor.
func (m MonitorModel) View() string {
	s := m.snap
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("orbit"))
	sb.WriteString("\n\n")

	track := s.Track
	if track == "" {
		track = "(no track)"
	}
	row(&sb, "Track", track)

	status := s.Mode.String()
	switch {
	case s.Analyzing:
		status = "analysing"
	case s.Err != nil:
		status = errorStyle.Render("analysis failed: " + s.Err.Error())
	}
	row(&sb, "Status", status)
	row(&sb, "Position", s.Position.Truncate(100*time.Millisecond).String())
	row(&sb, "Frame", fmt.Sprintf("%d (%s)", s.Frame.Seq, s.Frame.Mode))

	if s.Mode == store.Active {
		d := s.Descriptors
		sb.WriteString("\n")
		row(&sb, "Tempo", fmt.Sprintf("%.1f BPM (confidence %.2f)", d.Tempo, d.Confidence))
		row(&sb, "Danceability", fmt.Sprintf("%.2f", d.Danceability))
		row(&sb, "Loudness", fmt.Sprintf("%.1f dB (complexity %.2f)", d.Loudness, d.DynamicComplexity))
	}

	sb.WriteString("\n")
	for i, name := range [...]string{"Low", "Mid-low", "Mid-high", "High"} {
		row(&sb, name, m.bar.ViewAs(bandPercent(s.Frame.Bands, i)))
	}
	row(&sb, "Level", m.bar.ViewAs(float64(s.Level)))

	sb.WriteString("\n")
	for _, name := range [...]string{scene.WhaleNode, scene.AstronautNode, scene.InnerRingNode, scene.OuterRingNode} {
		if n, ok := s.Frame.Node(name); ok {
			row(&sb, name, fmt.Sprintf("scale %.3f", n.Scale))
		}
	}

	sb.WriteString("\n")
	dither := "off"
	if s.Dither {
		dither = "on"
	}
	row(&sb, "Speed", fmt.Sprintf("%.3f rad/frame", s.Controls.RotationSpeed))
	row(&sb, "Dither", dither)

	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render("+/-: Speed • d: Dither • q: Quit"))
	return sb.String()
}

func row(sb *strings.Builder, label, value string) {
	sb.WriteString(labelStyle.Render(label))
	sb.WriteString(value)
	sb.WriteString("\n")
}

func bandPercent(b spectrum.Bands, i int) float64 {
	return min(1, max(0, b[i]/bandFull))
}

// StartMonitor runs the monitor until the user quits.
func StartMonitor(source Monitored) error {
	p := tea.NewProgram(NewMonitorModel(source), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
