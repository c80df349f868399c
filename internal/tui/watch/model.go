package watch

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/switchyard/internal/events"
)

const eventLogSize = 50

// Model is the BubbleTea model for the watch TUI.
type Model struct {
	apiURL string
	token  string

	width  int
	height int

	health   HealthState
	tasks    map[string]*TaskState
	eventLog []events.Event
	lastID   int64

	table   table.Model
	spinner Spinner
	frame   int
	theme   Theme

	hubEvents chan events.Event
	lastError string
}

// New creates a watch model pointed at a running switchyard API.
func New(apiURL, token string) Model {
	t := table.New(
		table.WithColumns(taskColumns()),
		table.WithFocused(true),
		table.WithHeight(10),
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
		apiURL:    apiURL,
		token:     token,
		tasks:     make(map[string]*TaskState),
		eventLog:  make([]events.Event, 0, eventLogSize),
		table:     t,
		theme:     NewDefaultTheme(),
		hubEvents: make(chan events.Event, 100),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.apiURL, m.token, 0, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		func() tea.Msg { return fetchHealth(m.apiURL) },
		tick(),
		tea.EnterAltScreen,
	)
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
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

	case tickMsg:
		now := time.Time(msg)
		m.frame++
		m.spinner.Decay(now)
		m.table.SetRows(taskRows(m.tasks, now))
		return m, tick()

	case eventMsg:
		m = m.applyEvent(events.Event(msg), time.Now())
		return m, receiveNextEvent(m.hubEvents)

	case healthMsg:
		m.health.Status = msg.Status
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.PipelineTasks = msg.PipelineTasks
		m.health.BridgeEnabled = msg.BridgeEnabled
		m.health.BridgeActive = msg.BridgeActive
		m.health.Connected = true
		m.health.LastCheck = time.Now()
		m.lastError = ""
		return m, m.pollHealth()

	case sseDisconnectedMsg:
		m.health.Connected = false
		m.lastError = "event stream disconnected, reconnecting..."
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		// The pending receiveNextEvent keeps reading the same channel.
		return m, subscribeToEvents(m.apiURL, m.token, m.lastID, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, m.pollHealth()
	}

	return m, nil
}

func (m Model) pollHealth() tea.Cmd {
	apiURL := m.apiURL
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg { return fetchHealth(apiURL) })
}

// applyEvent records e in the log and folds it into the task table.
func (m Model) applyEvent(e events.Event, now time.Time) Model {
	m.eventLog = append([]events.Event{e}, m.eventLog...)
	if len(m.eventLog) > eventLogSize {
		m.eventLog = m.eventLog[:eventLogSize]
	}
	if e.ID > m.lastID {
		m.lastID = e.ID
	}
	m.spinner.OnEvent(now)
	updateTaskState(m.tasks, e, now)
	m.table.SetRows(taskRows(m.tasks, now))
	m.health.Connected = true
	m.lastError = ""
	return m
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing switchyard watch..."
	}

	header := renderHeader(m.health, m.spinner, m.frame, m.theme, m.width)
	tasks := m.theme.Panel.Width(m.width - 4).Render(lipgloss.JoinVertical(lipgloss.Left,
		m.theme.Heading.Render("TASKS"),
		m.table.View(),
	))
	eventStream := renderEventStream(m.eventLog, m.theme, m.width)

	parts := []string{header, tasks, eventStream}
	if m.lastError != "" {
		parts = append(parts, m.theme.Failed.Render(fmt.Sprintf(" ⚠ %s", m.lastError)))
	}
	parts = append(parts, lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit • [↑/↓] Navigate tasks"))

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

// Run starts the monitor and blocks until the user quits.
func Run(apiURL, token string) error {
	_, err := tea.NewProgram(New(apiURL, token)).Run()
	return err
}
