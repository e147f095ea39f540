// Package command is the fixed start/stop/status surface the host invokes.
// It adapts recorder errors into plain, serialisable command errors.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

//go:generate mockgen -destination=mocks/mock_recorder.go -package=mocks github.com/randomizedcoder/go-ffmpeg-screenrec/internal/command Recorder

// Recorder defines the supervisor operations used by the command surface.
type Recorder interface {
	Spawn(ctx context.Context, outputPath string) error
	Kill() error
	IsRunning() bool
}

// WindowHost is the host's window chrome. The terminal console has one
// window labelled "main".
type WindowHost interface {
	// Hide hides the labelled window and reports whether it exists.
	Hide(label string) bool
}

// ErrWindowNotFound is returned by HideWindow for an unknown window label.
var ErrWindowNotFound = errors.New("window not found")

// Operation names carried by Error.
const (
	OpStartRecording = "start_recording"
	OpStopRecording  = "stop_recording"
)

// Error is the only error type that crosses the command surface. It holds
// a human-readable message and no internal types.
type Error struct {
	Op      string `json:"op"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Message
}

// Config holds configuration for creating Commands.
type Config struct {
	Recorder Recorder
	Windows  WindowHost
	Logger   *slog.Logger
}

// Commands is the host-facing command surface.
type Commands struct {
	rec     Recorder
	windows WindowHost
	logger  *slog.Logger
}

// New creates the command surface over an existing recorder.
func New(cfg Config) *Commands {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Commands{
		rec:     cfg.Recorder,
		windows: cfg.Windows,
		logger:  logger,
	}
}

// StartRecording starts a recording. An empty outputPath lets the recorder
// generate a name. Starting while already recording succeeds without effect.
func (c *Commands) StartRecording(ctx context.Context, outputPath string) (err error) {
	defer c.recoverTo(OpStartRecording, &err)

	if err := c.rec.Spawn(ctx, outputPath); err != nil {
		return c.fail(OpStartRecording, err)
	}
	return nil
}

// StopRecording stops the active recording. Stopping while idle succeeds.
func (c *Commands) StopRecording(_ context.Context) (err error) {
	defer c.recoverTo(OpStopRecording, &err)

	if err := c.rec.Kill(); err != nil {
		return c.fail(OpStopRecording, err)
	}
	return nil
}

// GetStatus reports whether a recording is held.
func (c *Commands) GetStatus() bool {
	return c.rec.IsRunning()
}

// HideWindow hides a host window. A missing window is reported as
// ErrWindowNotFound and is not fatal.
func (c *Commands) HideWindow(label string) error {
	if c.windows == nil || !c.windows.Hide(label) {
		c.logger.Debug("window_not_found", "label", label)
		return fmt.Errorf("%w: %q", ErrWindowNotFound, label)
	}
	return nil
}

func (c *Commands) fail(op string, err error) *Error {
	c.logger.Warn("command_failed", "op", op, "error", err)
	return &Error{Op: op, Message: err.Error()}
}

func (c *Commands) recoverTo(op string, err *error) {
	if r := recover(); r != nil {
		c.logger.Error("command_panic", "op", op, "panic", r)
		*err = &Error{Op: op, Message: fmt.Sprint(r)}
	}
}
