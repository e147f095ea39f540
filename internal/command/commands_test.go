package command

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"testing"

	"github.com/golang/mock/gomock"

	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/command/mocks"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/logging"
)

type fakeWindows map[string]bool

func (w fakeWindows) Hide(label string) bool {
	if _, ok := w[label]; !ok {
		return false
	}
	w[label] = false
	return true
}

func newTestCommands(t *testing.T) (*Commands, *mocks.MockRecorder) {
	t.Helper()
	ctrl := gomock.NewController(t)
	rec := mocks.NewMockRecorder(ctrl)
	return New(Config{Recorder: rec, Logger: logging.Discard()}), rec
}

// =============================================================================
// StartRecording
// =============================================================================

func TestStartRecording(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		path     string
		spawnErr error
		wantErr  bool
	}{
		{"explicit path", "out.mp4", nil, false},
		{"generated path", "", nil, false},
		{"launch failure", "out.mp4", fmt.Errorf("spawn recording: %w", exec.ErrNotFound), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newTestCommands(t)
			rec.EXPECT().Spawn(gomock.Any(), tt.path).Return(tt.spawnErr)

			err := c.StartRecording(ctx, tt.path)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("StartRecording() error: %v", err)
				}
				return
			}

			var cmdErr *Error
			if !errors.As(err, &cmdErr) {
				t.Fatalf("error type = %T, want *command.Error", err)
			}
			if cmdErr.Op != OpStartRecording {
				t.Errorf("Op = %q, want %q", cmdErr.Op, OpStartRecording)
			}
			if cmdErr.Message != tt.spawnErr.Error() {
				t.Errorf("Message = %q, want %q", cmdErr.Message, tt.spawnErr.Error())
			}
			// Internal error types do not cross the surface.
			if errors.Is(err, exec.ErrNotFound) {
				t.Error("command error still wraps the internal error")
			}
		})
	}
}

func TestStartRecording_PanicIsRecovered(t *testing.T) {
	c, rec := newTestCommands(t)
	rec.EXPECT().Spawn(gomock.Any(), "out.mp4").DoAndReturn(func(context.Context, string) error {
		panic("boom")
	})

	err := c.StartRecording(context.Background(), "out.mp4")
	var cmdErr *Error
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error = %v, want *command.Error", err)
	}
	if cmdErr.Message != "boom" {
		t.Errorf("Message = %q, want boom", cmdErr.Message)
	}
}

// =============================================================================
// StopRecording
// =============================================================================

func TestStopRecording(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		c, rec := newTestCommands(t)
		rec.EXPECT().Kill().Return(nil)

		if err := c.StopRecording(context.Background()); err != nil {
			t.Errorf("StopRecording() error: %v", err)
		}
	})

	t.Run("terminate failure", func(t *testing.T) {
		c, rec := newTestCommands(t)
		rec.EXPECT().Kill().Return(errors.New("terminate recording pid 42: operation not permitted"))

		err := c.StopRecording(context.Background())
		var cmdErr *Error
		if !errors.As(err, &cmdErr) {
			t.Fatalf("error = %v, want *command.Error", err)
		}
		if cmdErr.Op != OpStopRecording {
			t.Errorf("Op = %q, want %q", cmdErr.Op, OpStopRecording)
		}
		if got, want := cmdErr.Error(), "stop_recording: terminate recording pid 42: operation not permitted"; got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
	})
}

// =============================================================================
// GetStatus
// =============================================================================

func TestGetStatus(t *testing.T) {
	c, rec := newTestCommands(t)
	gomock.InOrder(
		rec.EXPECT().IsRunning().Return(false),
		rec.EXPECT().IsRunning().Return(true),
	)

	if c.GetStatus() {
		t.Error("GetStatus() = true, want false")
	}
	if !c.GetStatus() {
		t.Error("GetStatus() = false, want true")
	}
}

// Start → status → stop → status → stop, as the host drives it.
func TestCommands_Sequence(t *testing.T) {
	c, rec := newTestCommands(t)
	ctx := context.Background()

	gomock.InOrder(
		rec.EXPECT().Spawn(ctx, "out.mp4").Return(nil),
		rec.EXPECT().IsRunning().Return(true),
		rec.EXPECT().Kill().Return(nil),
		rec.EXPECT().IsRunning().Return(false),
		rec.EXPECT().Kill().Return(nil),
	)

	if err := c.StartRecording(ctx, "out.mp4"); err != nil {
		t.Fatalf("StartRecording() error: %v", err)
	}
	if !c.GetStatus() {
		t.Fatal("want recording")
	}
	if err := c.StopRecording(ctx); err != nil {
		t.Fatalf("StopRecording() error: %v", err)
	}
	if c.GetStatus() {
		t.Fatal("want idle")
	}
	if err := c.StopRecording(ctx); err != nil {
		t.Errorf("second StopRecording() error: %v", err)
	}
}

// =============================================================================
// HideWindow
// =============================================================================

func TestHideWindow(t *testing.T) {
	ctrl := gomock.NewController(t)
	windows := fakeWindows{"main": true}
	c := New(Config{Recorder: mocks.NewMockRecorder(ctrl), Windows: windows, Logger: logging.Discard()})

	if err := c.HideWindow("main"); err != nil {
		t.Errorf("HideWindow(main) error: %v", err)
	}
	if windows["main"] {
		t.Error("main window still visible")
	}

	err := c.HideWindow("settings")
	if !errors.Is(err, ErrWindowNotFound) {
		t.Errorf("HideWindow(settings) = %v, want ErrWindowNotFound", err)
	}
}

func TestHideWindow_NoHost(t *testing.T) {
	c, _ := newTestCommands(t)
	if err := c.HideWindow("main"); !errors.Is(err, ErrWindowNotFound) {
		t.Errorf("HideWindow() = %v, want ErrWindowNotFound", err)
	}
}
