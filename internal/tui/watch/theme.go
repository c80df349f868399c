// Package watch implements the switchyard live monitor TUI.
package watch

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette colours shared by the monitor's styles.
var (
	colorGreen  = lipgloss.Color("#3FB950")
	colorAmber  = lipgloss.Color("#D29922")
	colorRed    = lipgloss.Color("#F85149")
	colorGrey   = lipgloss.Color("#8B949E")
	colorDark   = lipgloss.Color("#30363D")
	colorAccent = lipgloss.Color("#58A6FF")
	colorRail   = lipgloss.Color("#BC8CFF")
)

// Theme groups the monitor's styles: outcome colours, task kinds and
// frame chrome.
type Theme struct {
	OK      lipgloss.Style
	Active  lipgloss.Style
	Failed  lipgloss.Style
	Muted   lipgloss.Style
	Accent  lipgloss.Style
	Heading lipgloss.Style
	Panel   lipgloss.Style

	Pipeline lipgloss.Style
	Bridge   lipgloss.Style

	PulseOn  lipgloss.Style
	PulseOff lipgloss.Style
}

func NewDefaultTheme() Theme {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	return Theme{
		OK:      fg(colorGreen),
		Active:  fg(colorAmber),
		Failed:  fg(colorRed),
		Muted:   fg(colorGrey),
		Accent:  fg(colorAccent),
		Heading: lipgloss.NewStyle().Bold(true).Padding(0, 1),
		Panel:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorRail),

		Pipeline: fg(colorAccent).Bold(true),
		Bridge:   fg(colorRail).Bold(true),

		PulseOn:  fg(colorGreen),
		PulseOff: fg(colorDark),
	}
}

// kindStyle styles an event type by the subsystem that emitted it.
func (t Theme) kindStyle(eventType string) lipgloss.Style {
	switch {
	case strings.HasPrefix(eventType, "pipeline."):
		return t.Pipeline
	case strings.HasPrefix(eventType, "bridge."):
		return t.Bridge
	default:
		return t.Accent
	}
}
