package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/command"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/events"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/history"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/parser"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/process"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/recorder"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeCommands struct {
	mu        sync.Mutex
	recording bool
	starts    int
	stops     int
	hides     []string
	startErr  error
	hideErr   error
}

func (f *fakeCommands) StartRecording(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.recording = true
	return nil
}

func (f *fakeCommands) StopRecording(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.recording = false
	return nil
}

func (f *fakeCommands) GetStatus() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recording
}

func (f *fakeCommands) HideWindow(label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hides = append(f.hides, label)
	return f.hideErr
}

type fakeStatus struct {
	st recorder.Status
}

func (f *fakeStatus) Current() recorder.Status { return f.st }

type fakeHistory struct {
	recs []history.Recording
	err  error
}

func (f *fakeHistory) List(context.Context, int) ([]history.Recording, error) {
	return f.recs, f.err
}

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// step feeds msg to m and returns the updated model and the command's message.
func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Msg) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	if cmd == nil {
		return model, nil
	}
	return model, cmd()
}

// =============================================================================
// Tests: New / Init
// =============================================================================

func TestNew(t *testing.T) {
	m := New(Config{Platform: "linux", OutputDir: "/tmp/rec", ControlAddr: "127.0.0.1:17092", Version: "v1"})

	if m.platform != "linux" || m.outputDir != "/tmp/rec" {
		t.Errorf("config not carried: %+v", m)
	}
	if !m.PanelVisible() {
		t.Error("panel should start visible")
	}
	if m.Recording() {
		t.Error("new model should not be recording")
	}
	if m.width != 80 || m.height != 24 {
		t.Errorf("size = %dx%d, want 80x24", m.width, m.height)
	}
}

func TestModel_Init(t *testing.T) {
	m := New(Config{})
	if cmd := m.Init(); cmd == nil {
		t.Error("Init should return a tick command")
	}
}

// =============================================================================
// Tests: Keys
// =============================================================================

func TestModel_ToggleRecording(t *testing.T) {
	for _, k := range []string{"r", " "} {
		t.Run(k, func(t *testing.T) {
			cmds := &fakeCommands{}
			m := New(Config{Commands: cmds})

			m, msg := step(t, m, key(k))
			if !m.busy {
				t.Error("model should be busy while the command runs")
			}
			done, ok := msg.(actionDoneMsg)
			if !ok || done.op != command.OpStartRecording {
				t.Fatalf("msg = %#v, want start actionDoneMsg", msg)
			}
			m, _ = step(t, m, done)
			if !m.Recording() || m.busy {
				t.Errorf("recording=%v busy=%v, want true/false", m.Recording(), m.busy)
			}

			m, msg = step(t, m, key(k))
			done, ok = msg.(actionDoneMsg)
			if !ok || done.op != command.OpStopRecording {
				t.Fatalf("msg = %#v, want stop actionDoneMsg", msg)
			}
			m, _ = step(t, m, done)
			if m.Recording() {
				t.Error("should be idle after second toggle")
			}
			if cmds.starts != 1 || cmds.stops != 1 {
				t.Errorf("starts=%d stops=%d, want 1/1", cmds.starts, cmds.stops)
			}
		})
	}
}

func TestModel_BusyIgnoresKeys(t *testing.T) {
	cmds := &fakeCommands{}
	m := New(Config{Commands: cmds})

	m, _ = step(t, m, key("r"))
	next, cmd := m.Update(key("r"))
	if cmd != nil {
		t.Error("second r while busy should be ignored")
	}
	if next.(Model).busy != true {
		t.Error("still busy")
	}
	if cmds.starts != 1 {
		t.Errorf("starts = %d, want 1", cmds.starts)
	}
}

func TestModel_StopKey(t *testing.T) {
	cmds := &fakeCommands{recording: true}
	m := New(Config{Commands: cmds})

	_, msg := step(t, m, key("s"))
	if done, ok := msg.(actionDoneMsg); !ok || done.op != command.OpStopRecording {
		t.Fatalf("msg = %#v, want stop", msg)
	}
	if cmds.stops != 1 {
		t.Errorf("stops = %d, want 1", cmds.stops)
	}
}

func TestModel_StartErrorShown(t *testing.T) {
	cmds := &fakeCommands{startErr: &command.Error{Op: command.OpStartRecording, Message: "exec: \"ffmpeg\": executable file not found"}}
	m := New(Config{Commands: cmds})

	m, msg := step(t, m, key("r"))
	m, _ = step(t, m, msg)

	if !strings.Contains(m.lastError, "executable file not found") {
		t.Errorf("lastError = %q", m.lastError)
	}
	if m.Recording() {
		t.Error("failed start must leave the console idle")
	}
	if !strings.Contains(m.View(), "executable file not found") {
		t.Error("error should be rendered")
	}
}

func TestModel_QuitStopsFirst(t *testing.T) {
	for _, k := range []string{"q", "ctrl+c"} {
		t.Run(k, func(t *testing.T) {
			cmds := &fakeCommands{recording: true}
			m := New(Config{Commands: cmds})

			m, msg := step(t, m, key(k))
			if _, ok := msg.(quitReadyMsg); !ok {
				t.Fatalf("msg = %#v, want quitReadyMsg", msg)
			}
			if cmds.stops != 1 || cmds.GetStatus() {
				t.Errorf("recording should be stopped before quit (stops=%d)", cmds.stops)
			}

			m, msg = step(t, m, msg)
			if _, ok := msg.(tea.QuitMsg); !ok {
				t.Fatalf("msg = %#v, want tea.QuitMsg", msg)
			}
			if m.View() != "" {
				t.Error("View should be empty after quit")
			}
		})
	}
}

func TestModel_QuitOnce(t *testing.T) {
	cmds := &fakeCommands{}
	m := New(Config{Commands: cmds})

	m, _ = step(t, m, QuitMsg{})
	_, cmd := m.Update(key("q"))
	if cmd != nil {
		t.Error("second quit should be ignored")
	}
}

func TestModel_EscHidesThroughCommands(t *testing.T) {
	cmds := &fakeCommands{}
	m := New(Config{Commands: cmds})

	_, msg := step(t, m, key("esc"))
	if msg != nil {
		t.Errorf("msg = %#v, want nil (host delivers HideMsg)", msg)
	}
	if len(cmds.hides) != 1 || cmds.hides[0] != WindowMain {
		t.Errorf("hides = %v, want [main]", cmds.hides)
	}

	m, _ = step(t, m, HideMsg{})
	if m.PanelVisible() {
		t.Error("panel should be hidden")
	}

	m, _ = step(t, m, key("?"))
	if !m.PanelVisible() {
		t.Error("? should show the panel")
	}
}

func TestModel_EscWithoutHost(t *testing.T) {
	cmds := &fakeCommands{hideErr: command.ErrWindowNotFound}
	m := New(Config{Commands: cmds})

	_, msg := step(t, m, key("esc"))
	if _, ok := msg.(HideMsg); !ok {
		t.Errorf("msg = %#v, want HideMsg fallback", msg)
	}
}

// =============================================================================
// Tests: Ticks, events, history
// =============================================================================

func TestModel_TickRefreshes(t *testing.T) {
	cmds := &fakeCommands{recording: true}
	status := &fakeStatus{st: recorder.Status{
		State:    recorder.StateRecording,
		Session:  &recorder.Session{ID: "0123456789", OutputPath: "/tmp/recording_1.mp4", Pid: 77, StartedAt: time.Now().Add(-5 * time.Second)},
		Progress: &parser.ProgressUpdate{Frame: 150, FPS: 30, Speed: 1.0, TotalSize: 2048},
	}}
	m := New(Config{Commands: cmds, Status: status})

	next, cmd := m.Update(TickMsg(time.Now()))
	if cmd == nil {
		t.Error("tick should schedule the next tick and a snapshot")
	}
	m = next.(Model)
	if m.Recording() {
		t.Error("tick must not read the slot on the update loop")
	}

	m, _ = step(t, m, m.snapshotCmd()())
	if !m.Recording() {
		t.Error("tick should pick up recording state")
	}
	if m.Elapsed() < 4*time.Second {
		t.Errorf("Elapsed = %v, want >= 4s", m.Elapsed())
	}

	view := m.View()
	for _, want := range []string{"REC", "recording_1.mp4", "77", "01234567", "150", "1.00x"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

// blockingCommands holds GetStatus until release is closed, like a
// supervisor whose lock is held by a slow stop.
type blockingCommands struct {
	fakeCommands
	release chan struct{}
}

func (b *blockingCommands) GetStatus() bool {
	<-b.release
	return b.fakeCommands.GetStatus()
}

func TestModel_SlowStatusDoesNotBlockUpdate(t *testing.T) {
	cmds := &blockingCommands{release: make(chan struct{})}
	defer close(cmds.release)
	m := New(Config{Commands: cmds})

	done := make(chan Model, 1)
	go func() {
		next, _ := m.Update(TickMsg(time.Now()))
		next, _ = next.(Model).Update(key("r"))
		next, _ = next.(Model).Update(EventMsg{Event: events.RecordingStartedEvent{OutputPath: "a.mp4"}})
		done <- next.(Model)
	}()

	select {
	case m = <-done:
	case <-time.After(time.Second):
		t.Fatal("Update blocked on a slow status read")
	}
	if !m.polling || !m.busy {
		t.Errorf("polling=%v busy=%v, want both in flight", m.polling, m.busy)
	}

	// A second tick while a snapshot is pending does not queue another.
	next, _ := m.Update(TickMsg(time.Now()))
	if !next.(Model).polling {
		t.Error("polling should stay set until the snapshot arrives")
	}
	next, _ = next.(Model).Update(statusMsg{recording: true})
	if m = next.(Model); m.polling || !m.Recording() {
		t.Errorf("after snapshot polling=%v recording=%v", m.polling, m.Recording())
	}
}

func TestModel_ExitedSlot(t *testing.T) {
	cmds := &fakeCommands{recording: true}
	status := &fakeStatus{st: recorder.Status{
		State:   recorder.StateRecording,
		Session: &recorder.Session{ID: "x", OutputPath: "o.mp4", StartedAt: time.Now()},
		Exited:  &process.ExitStatus{ExitCode: 1},
	}}
	m := New(Config{Commands: cmds, Status: status})
	m, _ = step(t, m, m.snapshotCmd()())

	view := m.View()
	if !strings.Contains(view, "exited") || !strings.Contains(view, "code 1") {
		t.Errorf("exited slot not shown:\n%s", view)
	}
}

func TestModel_Events(t *testing.T) {
	tests := []struct {
		name       string
		ev         events.Event
		wantError  string
		wantNotice string
	}{
		{
			name:       "started",
			ev:         events.RecordingStartedEvent{OutputPath: "a.mp4"},
			wantNotice: "recording a.mp4",
		},
		{
			name:       "stopped",
			ev:         events.RecordingStoppedEvent{OutputPath: "a.mp4", Duration: 65 * time.Second},
			wantNotice: "saved a.mp4 (00:01:05)",
		},
		{
			name:       "stopped forced",
			ev:         events.RecordingStoppedEvent{OutputPath: "a.mp4", Forced: true},
			wantNotice: "force killed",
		},
		{
			name:      "stop error",
			ev:        events.RecordingStoppedEvent{Error: "terminate recording pid 5: operation not permitted"},
			wantError: "operation not permitted",
		},
		{
			name:      "exit failure",
			ev:        events.RecordingFailedEvent{Stage: events.StageExit, ExitCode: 1},
			wantError: "code 1",
		},
		{
			name:      "spawn failure",
			ev:        events.RecordingFailedEvent{Stage: events.StageSpawn, Error: "spawn recording: no such file"},
			wantError: "no such file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(Config{})
			next, _ := m.Update(EventMsg{Event: tt.ev})
			m = next.(Model)
			if tt.wantError != "" && !strings.Contains(m.lastError, tt.wantError) {
				t.Errorf("lastError = %q, want %q", m.lastError, tt.wantError)
			}
			if tt.wantNotice != "" && !strings.Contains(m.lastNotice, tt.wantNotice) {
				t.Errorf("lastNotice = %q, want %q", m.lastNotice, tt.wantNotice)
			}
		})
	}
}

func TestModel_History(t *testing.T) {
	hist := &fakeHistory{recs: []history.Recording{
		{ID: "b", OutputPath: "/tmp/recording_2.mp4", Status: history.StatusStopped, StartedAt: time.Now(), Duration: history.Duration(30 * time.Second), SizeBytes: 1_500_000},
		{ID: "a", OutputPath: "/tmp/recording_1.mp4", Status: history.StatusFailed, StartedAt: time.Now()},
	}}
	m := New(Config{History: hist})

	cmd := m.fetchHistory()
	if cmd == nil {
		t.Fatal("fetchHistory should return a command with a history source")
	}
	m, _ = step(t, m, cmd())

	if m.recentCount != 2 {
		t.Fatalf("recentCount = %d, want 2", m.recentCount)
	}
	view := m.View()
	for _, want := range []string{"Recent Recordings", "recording_2.mp4", "1.50 MB", "failed"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_HistoryError(t *testing.T) {
	m := New(Config{History: &fakeHistory{err: errors.New("database is locked")}})
	m, _ = step(t, m, m.fetchHistory()())
	if !strings.Contains(m.lastError, "database is locked") {
		t.Errorf("lastError = %q", m.lastError)
	}
}

func TestModel_NoHistorySource(t *testing.T) {
	m := New(Config{})
	if m.fetchHistory() != nil {
		t.Error("fetchHistory without source should be nil")
	}
	if strings.Contains(m.View(), "Recent Recordings") {
		t.Error("recent table should be hidden without history")
	}
}

func TestModel_WindowSize(t *testing.T) {
	m := New(Config{})
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	if m.width != 120 || m.height != 40 {
		t.Errorf("size = %dx%d", m.width, m.height)
	}
}

// =============================================================================
// Tests: Host
// =============================================================================

func TestHost_Hide(t *testing.T) {
	var h Host
	if h.Hide("settings") {
		t.Error("unknown window should report false")
	}
	if h.Hide(WindowMain) {
		t.Error("Hide without attached program should report false")
	}
}

func TestHost_SubscribeWithoutProgram(t *testing.T) {
	var h Host
	bus := events.New()
	unsub := h.Subscribe(bus)
	defer unsub()

	bus.Publish(events.RecordingStartedEvent{SessionID: "a"})
}

var _ command.WindowHost = (*Host)(nil)
