package watch

import (
	"fmt"
	"time"
)

// renderHeader draws the title line and the host summary.
func (m Model) renderHeader() string {
	t := m.theme

	state := t.StatusWarn.Render("connecting")
	switch {
	case m.lastErr != nil:
		state = t.StatusFailed.Render("error: " + m.lastErr.Error())
	case m.connected:
		state = t.StatusOK.Render("live " + m.ticker.String())
	}

	total, nonZero := m.activity.Dispatches()
	summary := fmt.Sprintf("hooks %d  libraries %d  dispatches %d  nonzero %d",
		m.health.Hooks, m.health.Libraries, total, nonZero)
	if m.health.UptimeSeconds > 0 {
		summary += "  up " + formatDuration(time.Duration(m.health.UptimeSeconds)*time.Second)
	}

	title := t.Title.Render("hookd watch") + "  " + state + "  " + m.pulse.Render(m.now)
	return title + "\n" + t.Normal.Render(summary)
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
