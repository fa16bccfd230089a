// Package watch is a terminal dashboard fed by the hookd /events stream.
package watch

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/hookd/internal/events"
)

const (
	maxEventLog    = 50
	healthInterval = 5 * time.Second
	reconnectDelay = 3 * time.Second
	tickInterval   = time.Second
)

// Model is the bubbletea model for hookd watch.
type Model struct {
	apiURL string
	apiKey string

	theme    Theme
	activity *Activity
	table    table.Model
	ticker   Ticker
	pulse    Pulse
	now      time.Time

	health    healthMsg
	connected bool
	lastErr   error
	eventLog  []string

	eventCh chan events.Event

	width  int
	height int
}

// New builds a Model that talks to the API at apiURL.
func New(apiURL, apiKey string) Model {
	columns := []table.Column{
		{Title: "", Width: 2},
		{Title: "Hook", Width: 28},
		{Title: "Callouts", Width: 8},
		{Title: "Dispatches", Width: 10},
		{Title: "Last", Width: 16},
		{Title: "Libraries", Width: 40},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return Model{
		apiURL:   apiURL,
		apiKey:   apiKey,
		theme:    DefaultTheme(),
		activity: NewActivity(),
		table:    t,
		now:      time.Now(),
		eventCh:  make(chan events.Event, 100),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.apiURL, m.apiKey, m.eventCh),
		receiveNextEvent(m.eventCh),
		func() tea.Msg { return fetchHooks(m.apiURL, m.apiKey) },
		func() tea.Msg { return fetchHealth(m.apiURL, m.apiKey) },
		tick(),
		tea.EnterAltScreen,
	)
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		m.ticker.Advance()
		return m, tick()

	case hooksMsg:
		m.activity.Seed(msg.Libraries, msg.Hooks)
		m.table.SetRows(m.activity.Rows(m.theme))
		m.lastErr = nil
		return m, nil

	case healthMsg:
		m.health = msg
		m.lastErr = nil
		apiURL, apiKey := m.apiURL, m.apiKey
		return m, tea.Tick(healthInterval, func(time.Time) tea.Msg {
			return fetchHealth(apiURL, apiKey)
		})

	case eventMsg:
		m.connected = true
		m.recordEvent(events.Event(msg))
		return m, receiveNextEvent(m.eventCh)

	case sseDisconnectedMsg:
		m.connected = false
		return m, tea.Tick(reconnectDelay, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, subscribeToEvents(m.apiURL, m.apiKey, m.eventCh)

	case errMsg:
		m.lastErr = msg
		return m, nil
	}
	return m, nil
}

func (m *Model) recordEvent(e events.Event) {
	rec, ok := decodeDispatch(e)
	if !ok {
		return
	}
	m.activity.Record(rec)
	m.table.SetRows(m.activity.Rows(m.theme))
	m.pulse.Hit(m.now)

	line := m.formatDispatch(dispatchLine{
		at:       rec.Started,
		hook:     rec.Hook,
		status:   rec.Status,
		duration: rec.Duration,
		callouts: len(rec.Callouts),
	})
	m.eventLog = append([]string{line}, m.eventLog...)
	if len(m.eventLog) > maxEventLog {
		m.eventLog = m.eventLog[:maxEventLog]
	}
}

func (m Model) View() string {
	help := m.theme.Dim.Render("↑/↓ select hook • q quit")
	return lipgloss.NewStyle().Margin(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		"",
		m.theme.Section.Render(m.table.View()),
		m.renderEventStream(),
		help,
	))
}
