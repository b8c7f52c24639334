// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"audioreact/internal/analysis"
)

// DefaultFrameInterval renders at roughly 60 frames per second.
const DefaultFrameInterval = 16 * time.Millisecond

const (
	defaultWidth = 60
	labelWidth   = 4
	bandScale    = 2.0 // Upper end of the dynamic range applied to bands.
)

var (
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	pausedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F25D94")).Bold(true)
	debugStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#767676"))
)

type monitorKeys struct {
	Pause key.Binding
	Debug key.Binding
	Quit  key.Binding
}

func (k monitorKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Debug, k.Quit}
}

func (k monitorKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultMonitorKeys = monitorKeys{
	Pause: key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "pause")),
	Debug: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "debug")),
	Quit:  key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

// frameMsg drives the render loop independently of block arrival.
type frameMsg time.Time

// MonitorModel is a live view of the analysis output: a volume bar and one bar
// per frequency band. Pausing freezes the displayed frame; analysis continues
// underneath.
type MonitorModel struct {
	source   analysis.SnapshotSource
	interval time.Duration
	keys     monitorKeys
	help     help.Model
	volume   progress.Model

	frame  analysis.Snapshot
	frames uint64
	width  int
	paused bool
	debug  bool
}

// NewMonitorModel creates a monitor reading from source every interval.
func NewMonitorModel(source analysis.SnapshotSource, interval time.Duration) MonitorModel {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	vol := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	vol.Width = defaultWidth
	return MonitorModel{
		source:   source,
		interval: interval,
		keys:     defaultMonitorKeys,
		help:     help.New(),
		volume:   vol,
		width:    defaultWidth,
	}
}

func (m MonitorModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

// Init starts the frame ticker.
func (m MonitorModel) Init() tea.Cmd {
	return m.tick()
}

// Update handles frame ticks, resizes and key presses.
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		if !m.paused {
			m.frame = m.source.Snapshot()
			m.frames++
		}
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.width = max(msg.Width-labelWidth-8, 10)
		m.volume.Width = m.width
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Debug):
			m.debug = !m.debug
		}
	}
	return m, nil
}

// View renders the current frame.
func (m MonitorModel) View() string {
	var sb strings.Builder

	title := titleStyle.Render("Audio Monitor")
	if m.paused {
		title += " " + pausedStyle.Render("PAUSED")
	}
	sb.WriteString(title + "\n\n")

	fmt.Fprintf(&sb, "%-*s %s %4.2f\n\n", labelWidth, "vol", m.volume.ViewAs(m.frame.Volume), m.frame.Volume)

	for i, v := range m.frame.Bands {
		fmt.Fprintf(&sb, "%-*d %s %4.2f\n", labelWidth, i, renderBar(v/bandScale, m.width), v)
	}

	if m.debug {
		c := m.frame.Calibration
		sb.WriteString("\n" + debugStyle.Render(fmt.Sprintf(
			"seq=%d level=%.1f max=%.1f floor=%.1f range=%.2f frames=%d",
			m.frame.Seq, m.frame.Level, c.MaxVolume, c.NoiseFloor, c.DynamicRange, m.frames)))
		sb.WriteString("\n")
	}

	sb.WriteString("\n" + m.help.View(m.keys))
	return sb.String()
}

// renderBar draws a bar filling fraction of width cells. fraction is clamped
// to [0,1].
func renderBar(fraction float64, width int) string {
	fraction = min(max(fraction, 0), 1)
	filled := int(fraction*float64(width) + 0.5)
	return barStyle.Render(strings.Repeat("█", filled)) + strings.Repeat("·", width-filled)
}

// Paused reports whether the displayed frame is frozen.
func (m MonitorModel) Paused() bool {
	return m.paused
}

// Frame returns the snapshot currently on screen.
func (m MonitorModel) Frame() analysis.Snapshot {
	return m.frame
}

// RunMonitor runs the monitor full screen until the user quits.
func RunMonitor(source analysis.SnapshotSource, interval time.Duration) error {
	p := tea.NewProgram(NewMonitorModel(source, interval), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
