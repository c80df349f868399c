package watch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/switchyard/internal/events"
)

const maxEventLines = 10

func renderEventStream(eventLog []events.Event, theme Theme, width int) string {
	innerWidth := width - 4

	if len(eventLog) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Heading.Render("EVENT STREAM"),
			theme.Muted.Render("  Waiting for events..."),
		)
		return theme.Panel.Width(innerWidth).Render(content)
	}

	var lines []string
	for i, e := range eventLog {
		if i >= maxEventLines {
			break
		}
		lines = append(lines, formatEvent(e, theme))
	}

	eventsText := lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Heading.Render("EVENT STREAM"),
		eventsText,
	)
	return theme.Panel.Width(innerWidth).Render(content)
}

func formatEvent(e events.Event, theme Theme) string {
	ts := theme.Muted.Render(e.At.Format("15:04:05"))

	typeStyle := theme.kindStyle(e.Type)
	switch {
	case strings.HasSuffix(e.Type, ".completed"), strings.HasSuffix(e.Type, ".delivered"):
		typeStyle = theme.OK
	case strings.HasSuffix(e.Type, ".failed"):
		typeStyle = theme.Failed
	case strings.HasSuffix(e.Type, ".running"):
		typeStyle = theme.Active
	}

	typeName := typeStyle.Render(fmt.Sprintf("%-26s", e.Type))
	return fmt.Sprintf("%s %s %s", ts, typeName, extractEventDesc(e))
}

func extractEventDesc(e events.Event) string {
	data := make(map[string]any)
	_ = json.Unmarshal(e.Data, &data)

	var parts []string
	if id, ok := data["task_id"].(string); ok {
		if len(id) > 8 {
			id = id[:8]
		}
		parts = append(parts, fmt.Sprintf("[%s]", id))
	}
	for _, key := range []string{"stage", "route", "source", "status", "error"} {
		if v, ok := data[key].(string); ok && v != "" {
			parts = append(parts, v)
		}
	}
	if deleted, ok := data["deleted"].(float64); ok {
		parts = append(parts, fmt.Sprintf("deleted=%d", int(deleted)))
	}

	if len(parts) == 0 {
		raw := string(e.Data)
		if len(raw) > 60 {
			raw = raw[:60] + "..."
		}
		return raw
	}
	return strings.Join(parts, " ")
}
