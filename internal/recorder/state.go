// Package recorder owns the single recording slot and serialises every
// start, stop and status request against it.
package recorder

// State represents the slot state of the supervisor.
type State int

const (
	// StateIdle means no recording process is held.
	StateIdle State = iota

	// StateRecording means the slot holds a process handle.
	StateRecording
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	default:
		return "unknown"
	}
}

// IsActive returns true if the slot is occupied.
func (s State) IsActive() bool {
	return s == StateRecording
}
