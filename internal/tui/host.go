package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/events"
)

// WindowMain labels the console's main panel.
const WindowMain = "main"

// Host is the window host for the terminal console. It implements
// command.WindowHost and forwards bus events into the running program.
type Host struct {
	mu sync.Mutex
	p  *tea.Program
}

// Attach binds the running program. Messages sent before Attach are dropped.
func (h *Host) Attach(p *tea.Program) {
	h.mu.Lock()
	h.p = p
	h.mu.Unlock()
}

// Hide hides the labelled window. Only WindowMain exists.
func (h *Host) Hide(label string) bool {
	if label != WindowMain {
		return false
	}
	return h.send(HideMsg{})
}

// Quit asks the console to stop any recording and exit.
func (h *Host) Quit() {
	h.send(QuitMsg{})
}

// Subscribe forwards recorder lifecycle events to the console.
func (h *Host) Subscribe(bus *events.Bus) func() {
	unsubs := []func(){
		bus.Subscribe(func(e events.RecordingStartedEvent) { h.send(EventMsg{Event: e}) }),
		bus.Subscribe(func(e events.RecordingStoppedEvent) { h.send(EventMsg{Event: e}) }),
		bus.Subscribe(func(e events.RecordingFailedEvent) { h.send(EventMsg{Event: e}) }),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (h *Host) send(msg tea.Msg) bool {
	h.mu.Lock()
	p := h.p
	h.mu.Unlock()
	if p == nil {
		return false
	}
	p.Send(msg)
	return true
}
