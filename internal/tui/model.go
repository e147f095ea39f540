package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/command"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/events"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/history"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/recorder"
)

// recentLimit is the number of past recordings shown.
const recentLimit = 5

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// QuitMsg asks the console to stop any recording and exit.
type QuitMsg struct{}

// HideMsg hides the main panel (help and recent recordings).
type HideMsg struct{}

// EventMsg carries a recorder lifecycle event from the bus.
type EventMsg struct {
	Event events.Event
}

// statusMsg is a slot snapshot taken off the update loop. Status reads
// take the supervisor lock, which a stop holds for up to the grace period
// plus the kill timeout.
type statusMsg struct {
	recording bool
	current   recorder.Status
}

// actionDoneMsg reports the result of a start or stop command and the
// slot state right after it.
type actionDoneMsg struct {
	op     string
	err    error
	status statusMsg
}

// quitReadyMsg is sent once the recording has been stopped for exit.
type quitReadyMsg struct {
	err error
}

// historyMsg carries the recent recordings.
type historyMsg struct {
	recs []history.Recording
	err  error
}

// =============================================================================
// Model
// =============================================================================

// Commands is the command surface the console drives.
type Commands interface {
	StartRecording(ctx context.Context, outputPath string) error
	StopRecording(ctx context.Context) error
	GetStatus() bool
	HideWindow(label string) error
}

// StatusSource provides the detailed recording snapshot.
type StatusSource interface {
	Current() recorder.Status
}

// HistoryLister lists past recordings.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]history.Recording, error)
}

// Config holds TUI configuration.
type Config struct {
	Commands Commands
	Status   StatusSource

	// History is optional; without it the recent table is not shown.
	History HistoryLister

	Platform    string
	OutputDir   string
	ControlAddr string
	Version     string
}

// Model represents the TUI state.
type Model struct {
	// Configuration
	platform    string
	outputDir   string
	controlAddr string
	version     string

	// Collaborators
	commands Commands
	status   StatusSource
	history  HistoryLister

	// Current state
	recording  bool
	current    recorder.Status
	busy       bool // a start/stop is in flight
	polling    bool // a status snapshot is in flight
	lastError  string
	lastNotice string
	lastUpdate time.Time
	startTime  time.Time

	// Main panel
	panelVisible bool
	recent       table.Model
	recentCount  int

	// Display options
	width  int
	height int

	exiting  bool // quit requested, stop in flight
	quitting bool
}

// New creates a new TUI model.
func New(cfg Config) Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Started", Width: 19},
			{Title: "File", Width: 28},
			{Title: "Duration", Width: 10},
			{Title: "Status", Width: 9},
			{Title: "Size", Width: 10},
		}),
		table.WithHeight(recentLimit+1),
		table.WithWidth(76),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(rule).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Cell
	t.SetStyles(s)

	return Model{
		platform:     cfg.Platform,
		outputDir:    cfg.OutputDir,
		controlAddr:  cfg.ControlAddr,
		version:      cfg.Version,
		commands:     cfg.Commands,
		status:       cfg.Status,
		history:      cfg.History,
		panelVisible: true,
		recent:       t,
		startTime:    time.Now(),
		lastUpdate:   time.Now(),
		width:        80,
		height:       24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.fetchHistory())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recent.SetWidth(msg.Width - 6)
		return m, nil

	case TickMsg:
		if m.polling {
			return m, tickCmd()
		}
		m.polling = true
		return m, tea.Batch(m.snapshotCmd(), tickCmd())

	case statusMsg:
		m.polling = false
		m.applyStatus(msg)
		return m, nil

	case actionDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.lastError = msg.err.Error()
		} else {
			m.lastError = ""
		}
		m.applyStatus(msg.status)
		return m, nil

	case EventMsg:
		m.applyEvent(msg.Event)
		return m, tea.Batch(m.snapshotCmd(), m.fetchHistory())

	case historyMsg:
		if msg.err != nil {
			m.lastError = "history: " + msg.err.Error()
			return m, nil
		}
		m.setRecent(msg.recs)
		return m, nil

	case HideMsg:
		m.panelVisible = false
		return m, nil

	case QuitMsg:
		return m.beginQuit()

	case quitReadyMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m.beginQuit()

	case "r", " ":
		if m.busy || m.commands == nil {
			return m, nil
		}
		m.busy = true
		return m, m.toggleCmd()

	case "s":
		if m.busy || m.commands == nil {
			return m, nil
		}
		m.busy = true
		return m, m.stopCmd()

	case "esc":
		return m, m.hideCmd()

	case "?", "h":
		m.panelVisible = true
		return m, m.fetchHistory()
	}
	return m, nil
}

// beginQuit stops any recording before exiting. An explicit quit is the
// only way to end the console.
func (m Model) beginQuit() (tea.Model, tea.Cmd) {
	if m.exiting {
		return m, nil
	}
	m.exiting = true
	m.busy = true
	m.lastNotice = "stopping recording before exit..."
	commands := m.commands
	return m, func() tea.Msg {
		if commands == nil {
			return quitReadyMsg{}
		}
		return quitReadyMsg{err: commands.StopRecording(context.Background())}
	}
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderView()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) snapshotCmd() tea.Cmd {
	commands, status := m.commands, m.status
	return func() tea.Msg {
		return snapshot(commands, status)
	}
}

// toggleCmd stops an active recording or starts a new one. The slot is
// checked inside the command so the update loop never waits on it.
func (m Model) toggleCmd() tea.Cmd {
	commands, status := m.commands, m.status
	return func() tea.Msg {
		if commands.GetStatus() {
			return stopAndSnapshot(commands, status)
		}
		return startAndSnapshot(commands, status)
	}
}

func (m Model) stopCmd() tea.Cmd {
	commands, status := m.commands, m.status
	return func() tea.Msg {
		return stopAndSnapshot(commands, status)
	}
}

func startAndSnapshot(commands Commands, status StatusSource) actionDoneMsg {
	err := commands.StartRecording(context.Background(), "")
	return actionDoneMsg{op: command.OpStartRecording, err: err, status: snapshot(commands, status)}
}

func stopAndSnapshot(commands Commands, status StatusSource) actionDoneMsg {
	err := commands.StopRecording(context.Background())
	return actionDoneMsg{op: command.OpStopRecording, err: err, status: snapshot(commands, status)}
}

func snapshot(commands Commands, status StatusSource) statusMsg {
	var s statusMsg
	if commands != nil {
		s.recording = commands.GetStatus()
	}
	if status != nil {
		s.current = status.Current()
	}
	return s
}

// hideCmd hides the main panel through the command surface, which calls
// back into Host. When no host is attached the panel hides directly.
func (m Model) hideCmd() tea.Cmd {
	commands := m.commands
	return func() tea.Msg {
		if commands == nil || commands.HideWindow(WindowMain) != nil {
			return HideMsg{}
		}
		return nil
	}
}

func (m Model) fetchHistory() tea.Cmd {
	if m.history == nil {
		return nil
	}
	h := m.history
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		recs, err := h.List(ctx, recentLimit)
		return historyMsg{recs: recs, err: err}
	}
}

// =============================================================================
// State
// =============================================================================

func (m *Model) applyStatus(s statusMsg) {
	m.recording = s.recording
	m.current = s.current
	m.lastUpdate = time.Now()
}

func (m *Model) applyEvent(ev events.Event) {
	switch e := ev.(type) {
	case events.RecordingStartedEvent:
		m.lastError = ""
		m.lastNotice = "recording " + e.OutputPath
	case events.RecordingStoppedEvent:
		if e.Error != "" {
			m.lastError = e.Error
			return
		}
		notice := fmt.Sprintf("saved %s (%s)", e.OutputPath, formatDuration(e.Duration))
		if e.Forced {
			notice += ", force killed"
		}
		m.lastNotice = notice
	case events.RecordingFailedEvent:
		if e.Stage == events.StageExit {
			m.lastError = fmt.Sprintf("ffmpeg exited with code %d", e.ExitCode)
		} else {
			m.lastError = e.Error
		}
	}
}

func (m *Model) setRecent(recs []history.Recording) {
	rows := make([]table.Row, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, table.Row{
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			baseName(r.OutputPath),
			formatDuration(time.Duration(r.Duration)),
			r.Status,
			formatBytes(r.SizeBytes),
		})
	}
	m.recent.SetRows(rows)
	m.recentCount = len(rows)
}

// =============================================================================
// Accessors
// =============================================================================

// Recording reports whether the slot is held.
func (m Model) Recording() bool {
	return m.recording
}

// PanelVisible reports whether the main panel is shown.
func (m Model) PanelVisible() bool {
	return m.panelVisible
}

// Elapsed returns the length of the active recording, or zero.
func (m Model) Elapsed() time.Duration {
	if m.current.Session == nil {
		return 0
	}
	return time.Since(m.current.Session.StartedAt)
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatNumber formats a number with K/M suffixes.
func formatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// formatBytes formats bytes with KB/MB/GB suffixes.
func formatBytes(n int64) string {
	if n >= 1_000_000_000 {
		return fmt.Sprintf("%.2f GB", float64(n)/1_000_000_000)
	}
	if n >= 1_000_000 {
		return fmt.Sprintf("%.2f MB", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.2f KB", float64(n)/1_000)
	}
	return fmt.Sprintf("%d B", n)
}
