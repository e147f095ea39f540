//go:build unix

package process

import (
	"bytes"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/logging"
)

// readyWriter closes ready once "ready" has been written.
type readyWriter struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	once  sync.Once
	ready chan struct{}
}

func newReadyWriter() *readyWriter {
	return &readyWriter{ready: make(chan struct{})}
}

func (w *readyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.buf.Write(p)
	if strings.Contains(w.buf.String(), "ready") {
		w.once.Do(func() { close(w.ready) })
	}
	return n, err
}

func waitExit(t *testing.T, ch <-chan ExitStatus) ExitStatus {
	t.Helper()
	select {
	case st := <-ch:
		return st
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for OnExit")
		return ExitStatus{}
	}
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestStartHandle_ExitCode(t *testing.T) {
	exits := make(chan ExitStatus, 1)
	h, err := StartHandle(exec.Command("sh", "-c", "exit 3"), HandleOptions{
		Logger:    logging.Discard(),
		Callbacks: Callbacks{OnExit: func(st ExitStatus) { exits <- st }},
	})
	if err != nil {
		t.Fatalf("StartHandle() error: %v", err)
	}
	if h.Pid() <= 0 {
		t.Errorf("Pid() = %d, want > 0", h.Pid())
	}

	st := waitExit(t, exits)
	if st.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", st.ExitCode)
	}
	if st.Pid != h.Pid() {
		t.Errorf("ExitStatus.Pid = %d, want %d", st.Pid, h.Pid())
	}
	var exitErr *exec.ExitError
	if !errors.As(st.Err, &exitErr) {
		t.Errorf("ExitStatus.Err = %v, want *exec.ExitError", st.Err)
	}
}

func TestStartHandle_CleanExit(t *testing.T) {
	exits := make(chan ExitStatus, 1)
	if _, err := StartHandle(exec.Command("true"), HandleOptions{
		Logger:    logging.Discard(),
		Callbacks: Callbacks{OnExit: func(st ExitStatus) { exits <- st }},
	}); err != nil {
		t.Fatalf("StartHandle() error: %v", err)
	}

	st := waitExit(t, exits)
	if st.ExitCode != 0 || st.Err != nil {
		t.Errorf("ExitStatus = code %d err %v, want 0 and nil", st.ExitCode, st.Err)
	}
}

func TestStartHandle_MissingBinary(t *testing.T) {
	_, err := StartHandle(exec.Command("/nonexistent/ffmpeg-binary"), HandleOptions{Logger: logging.Discard()})
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestTerminate_Graceful(t *testing.T) {
	exits := make(chan ExitStatus, 1)
	var forced atomic.Bool

	h, err := StartHandle(exec.Command("sleep", "30"), HandleOptions{
		GracePeriod: 2 * time.Second,
		Logger:      logging.Discard(),
		Callbacks: Callbacks{
			OnExit:      func(st ExitStatus) { exits <- st },
			OnForceKill: func(int) { forced.Store(true) },
		},
	})
	if err != nil {
		t.Fatalf("StartHandle() error: %v", err)
	}

	start := time.Now()
	if err := h.Terminate(); err != nil {
		t.Fatalf("Terminate() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed >= 2*time.Second {
		t.Errorf("graceful Terminate took %v, should return before the grace period", elapsed)
	}
	if forced.Load() {
		t.Error("OnForceKill called for a process that honours SIGTERM")
	}

	st := waitExit(t, exits)
	if st.ExitCode != 128+15 {
		t.Errorf("ExitCode = %d, want %d (SIGTERM)", st.ExitCode, 128+15)
	}
}

func TestTerminate_ForceKillAfterGrace(t *testing.T) {
	out := newReadyWriter()
	cmd := exec.Command("sh", "-c", `trap "" TERM; echo ready; exec sleep 30`)
	cmd.Stdout = out

	exits := make(chan ExitStatus, 1)
	var forcedPid atomic.Int64
	grace := 100 * time.Millisecond

	h, err := StartHandle(cmd, HandleOptions{
		GracePeriod: grace,
		Logger:      logging.Discard(),
		Callbacks: Callbacks{
			OnExit:      func(st ExitStatus) { exits <- st },
			OnForceKill: func(pid int) { forcedPid.Store(int64(pid)) },
		},
	})
	if err != nil {
		t.Fatalf("StartHandle() error: %v", err)
	}

	select {
	case <-out.ready:
	case <-time.After(5 * time.Second):
		t.Fatal("child never became ready")
	}

	start := time.Now()
	if err := h.Terminate(); err != nil {
		t.Fatalf("Terminate() error: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < grace {
		t.Errorf("Terminate returned after %v, before the grace period %v", elapsed, grace)
	}
	if elapsed > grace+DefaultKillTimeout {
		t.Errorf("Terminate took %v, want at most %v", elapsed, grace+DefaultKillTimeout)
	}
	if got := int(forcedPid.Load()); got != h.Pid() {
		t.Errorf("OnForceKill pid = %d, want %d", got, h.Pid())
	}

	st := waitExit(t, exits)
	if st.ExitCode != 128+9 {
		t.Errorf("ExitCode = %d, want %d (SIGKILL)", st.ExitCode, 128+9)
	}
}

func TestTerminate_AfterExitIsNoop(t *testing.T) {
	exits := make(chan ExitStatus, 1)
	h, err := StartHandle(exec.Command("true"), HandleOptions{
		Logger:    logging.Discard(),
		Callbacks: Callbacks{OnExit: func(st ExitStatus) { exits <- st }},
	})
	if err != nil {
		t.Fatalf("StartHandle() error: %v", err)
	}
	waitExit(t, exits)

	start := time.Now()
	if err := h.Terminate(); err != nil {
		t.Errorf("Terminate() after exit = %v, want nil", err)
	}
	if elapsed := time.Since(start); elapsed > DefaultGracePeriod {
		t.Errorf("Terminate() after exit took %v", elapsed)
	}
}

func TestTerminate_Twice(t *testing.T) {
	h, err := StartHandle(exec.Command("sleep", "30"), HandleOptions{Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("StartHandle() error: %v", err)
	}
	if err := h.Terminate(); err != nil {
		t.Fatalf("first Terminate() error: %v", err)
	}
	if err := h.Terminate(); err != nil {
		t.Errorf("second Terminate() error: %v", err)
	}
}

// =============================================================================
// Table-Driven Tests: extractExitCode
// =============================================================================

func TestExtractExitCode(t *testing.T) {
	tests := []struct {
		name string
		cmd  *exec.Cmd
		want int
	}{
		{"success", exec.Command("true"), 0},
		{"failure", exec.Command("false"), 1},
		{"custom", exec.Command("sh", "-c", "exit 42"), 42},
		{"signaled", exec.Command("sh", "-c", "kill -KILL $$"), 128 + 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Run()
			if got := extractExitCode(err); got != tt.want {
				t.Errorf("extractExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
