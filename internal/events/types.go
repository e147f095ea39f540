// Package events broadcasts recording lifecycle events to the host's
// consumers (history, metrics, console).
package events

import "time"

// Event type constants for kelindar/event.
const (
	TypeRecordingStarted uint32 = iota + 1
	TypeRecordingStopped
	TypeRecordingFailed
)

// Failure stages carried by RecordingFailedEvent.
const (
	StageSpawn = "spawn"
	StageExit  = "exit"
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// RecordingStartedEvent is published when a capture process starts.
type RecordingStartedEvent struct {
	SessionID  string    `json:"session_id"`
	OutputPath string    `json:"output_path"`
	Pid        int       `json:"pid"`
	StartedAt  time.Time `json:"started_at"`
}

// Type returns the event type identifier for RecordingStartedEvent.
func (e RecordingStartedEvent) Type() uint32 { return TypeRecordingStarted }

// RecordingStoppedEvent is published when a recording is stopped on request.
type RecordingStoppedEvent struct {
	SessionID  string        `json:"session_id"`
	OutputPath string        `json:"output_path"`
	Pid        int           `json:"pid"`
	StartedAt  time.Time     `json:"started_at"`
	StoppedAt  time.Time     `json:"stopped_at"`
	Duration   time.Duration `json:"duration"`

	// TerminateDuration is how long the graceful-then-forceful stop took.
	TerminateDuration time.Duration `json:"terminate_duration"`

	// Forced is set when the process ignored the graceful request.
	Forced bool `json:"forced"`

	// Error holds the termination failure, if any.
	Error string `json:"error,omitempty"`
}

// Type returns the event type identifier for RecordingStoppedEvent.
func (e RecordingStoppedEvent) Type() uint32 { return TypeRecordingStopped }

// RecordingFailedEvent is published when a recording could not start, or
// when the capture process exited on its own with a non-zero code.
type RecordingFailedEvent struct {
	Stage      string    `json:"stage"`
	SessionID  string    `json:"session_id,omitempty"`
	OutputPath string    `json:"output_path"`
	Pid        int       `json:"pid,omitempty"`
	ExitCode   int       `json:"exit_code"`
	Error      string    `json:"error"`
	Stderr     []string  `json:"stderr,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Type returns the event type identifier for RecordingFailedEvent.
func (e RecordingFailedEvent) Type() uint32 { return TypeRecordingFailed }
