package recorder

import "fmt"

// LaunchError is returned by Spawn when the capture process could not be
// started. The slot stays idle.
type LaunchError struct {
	OutputPath string
	Err        error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("spawn recording %q: %v", e.OutputPath, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// TerminateError is returned by Kill when the hard kill failed. The slot
// is cleared regardless.
type TerminateError struct {
	Pid int
	Err error
}

func (e *TerminateError) Error() string {
	return fmt.Sprintf("terminate recording pid %d: %v", e.Pid, e.Err)
}

func (e *TerminateError) Unwrap() error { return e.Err }
