package watch

import (
	"fmt"
	"strings"
	"time"
)

const visibleEvents = 10

// renderEventStream shows the most recent dispatches, newest first.
func (m Model) renderEventStream() string {
	t := m.theme
	lines := []string{t.Highlight.Render("Recent dispatches")}
	if len(m.eventLog) == 0 {
		lines = append(lines, t.Dim.Render("waiting for dispatches..."))
	}
	for i, line := range m.eventLog {
		if i == visibleEvents {
			break
		}
		lines = append(lines, line)
	}
	return t.Section.Render(strings.Join(lines, "\n"))
}

// formatDispatch renders one event line.
func (m Model) formatDispatch(rec dispatchLine) string {
	t := m.theme
	status := t.StatusOK.Render(fmt.Sprintf("%3d", rec.status))
	if rec.status != 0 {
		status = t.StatusFailed.Render(fmt.Sprintf("%3d", rec.status))
	}
	return fmt.Sprintf("%s %s %-28s %s %s",
		t.Dim.Render(rec.at.Format("15:04:05")),
		status,
		rec.hook,
		t.Dim.Render(rec.duration.Round(time.Microsecond).String()),
		t.Dim.Render(fmt.Sprintf("%d callouts", rec.callouts)),
	)
}

type dispatchLine struct {
	at       time.Time
	hook     string
	status   int
	duration time.Duration
	callouts int
}
