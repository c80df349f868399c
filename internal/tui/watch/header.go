package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// HealthState tracks daemon health from /healthz polling.
type HealthState struct {
	Status        string
	UptimeSeconds int64
	PipelineTasks int
	BridgeEnabled bool
	BridgeActive  int
	Connected     bool
	LastCheck     time.Time
}

// Spinner shows event activity with a decaying dot pattern.
type Spinner struct {
	dots      int
	lastEvent time.Time
}

func (s *Spinner) OnEvent(now time.Time) {
	s.dots = 5
	s.lastEvent = now
}

// Decay drops one dot for every two quiet seconds.
func (s *Spinner) Decay(now time.Time) {
	if s.dots == 0 {
		return
	}
	left := 5 - int(now.Sub(s.lastEvent)/(2*time.Second))
	if left < 0 {
		left = 0
	}
	if left < s.dots {
		s.dots = left
	}
}

func (s Spinner) Render(theme Theme) string {
	var b strings.Builder
	for i := range 5 {
		if i < s.dots {
			b.WriteString(theme.PulseOn.Render("●"))
		} else {
			b.WriteString(theme.PulseOff.Render("○"))
		}
	}
	return b.String()
}

func renderHeader(health HealthState, spinner Spinner, frame int, theme Theme, width int) string {
	innerWidth := width - 4

	statusText := theme.OK.Render("HEALTHY")
	if !health.Connected {
		statusText = theme.Failed.Render("CONNECTING")
	} else if health.Status != "ok" && health.Status != "" {
		statusText = theme.Failed.Render("DEGRADED")
	}

	lastEvent := "never"
	if !spinner.lastEvent.IsZero() {
		lastEvent = fmt.Sprintf("%s ago", time.Since(spinner.lastEvent).Round(time.Second))
	}

	frames := []string{"⟲", "⟳"}
	title := fmt.Sprintf(" SWITCHYARD WATCH %s", theme.Accent.Render(frames[frame%len(frames)]))
	clock := theme.Muted.Render(time.Now().Format("15:04:05"))
	pad := innerWidth - lipgloss.Width(title) - lipgloss.Width(clock) - 4
	if pad < 1 {
		pad = 1
	}
	titleLine := title + strings.Repeat(" ", pad) + clock + " "

	bridge := theme.Muted.Render("bridge off")
	if health.BridgeEnabled {
		bridge = fmt.Sprintf("bridge active: %d", health.BridgeActive)
	}
	statsLine := fmt.Sprintf(" %s  up %s  pipeline tasks: %d  %s",
		statusText,
		formatDuration(time.Duration(health.UptimeSeconds)*time.Second),
		health.PipelineTasks,
		bridge,
	)
	activityLine := fmt.Sprintf(" Last event: %s %s", lastEvent, spinner.Render(theme))

	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, statsLine, activityLine)
	return theme.Panel.Width(innerWidth).Render(content)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
