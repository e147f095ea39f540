package process

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"
)

const (
	// DefaultGracePeriod is how long Terminate waits after the graceful
	// request before escalating to a hard kill.
	DefaultGracePeriod = 500 * time.Millisecond

	// DefaultKillTimeout bounds the wait for the OS to reap a hard-killed child.
	DefaultKillTimeout = 2 * time.Second
)

// Handle is one live external process. Only the recorder's slot holds it.
type Handle interface {
	// Pid returns the OS process id.
	Pid() int

	// Terminate stops the process, gracefully first and forcefully after the
	// grace period. It is a no-op once the process has exited.
	Terminate() error
}

// ExitStatus describes how a process ended.
type ExitStatus struct {
	Pid      int
	ExitCode int
	Uptime   time.Duration
	Err      error

	// Stderr holds the most recent stderr lines, when captured.
	Stderr []string
}

// Callbacks contains optional hooks for process events.
type Callbacks struct {
	// OnExit is called once, from the reaper goroutine, when the process ends
	// for any reason.
	OnExit func(ExitStatus)

	// OnForceKill is called when Terminate escalates to a hard kill.
	OnForceKill func(pid int)
}

// HandleOptions configures an OSHandle.
type HandleOptions struct {
	GracePeriod time.Duration
	KillTimeout time.Duration
	Logger      *slog.Logger
	Callbacks   Callbacks

	// afterWait runs on the reaper goroutine after Wait returns and before
	// OnExit, so output readers can be drained first.
	afterWait func()
}

// OSHandle is a Handle backed by a real child process.
type OSHandle struct {
	cmd       *exec.Cmd
	pid       int
	startTime time.Time

	grace       time.Duration
	killTimeout time.Duration
	logger      *slog.Logger
	callbacks   Callbacks

	done chan struct{}
}

// StartHandle starts cmd in its own process group and begins reaping it in
// the background. The caller wires cmd's stdio before calling.
func StartHandle(cmd *exec.Cmd, opts HandleOptions) (*OSHandle, error) {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.KillTimeout <= 0 {
		opts.KillTimeout = DefaultKillTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	setProcAttr(cmd)
	// Bound Wait when a grandchild keeps our pipes open.
	cmd.WaitDelay = opts.KillTimeout

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	h := &OSHandle{
		cmd:         cmd,
		pid:         cmd.Process.Pid,
		startTime:   time.Now(),
		grace:       opts.GracePeriod,
		killTimeout: opts.KillTimeout,
		logger:      opts.Logger,
		callbacks:   opts.Callbacks,
		done:        make(chan struct{}),
	}

	go h.reap(opts.afterWait)

	return h, nil
}

// reap waits for the process and publishes its exit.
func (h *OSHandle) reap(afterWait func()) {
	err := h.cmd.Wait()
	close(h.done)

	if afterWait != nil {
		afterWait()
	}

	if h.callbacks.OnExit != nil {
		h.callbacks.OnExit(ExitStatus{
			Pid:      h.pid,
			ExitCode: extractExitCode(err),
			Uptime:   time.Since(h.startTime),
			Err:      err,
		})
	}
}

// Pid returns the OS process id.
func (h *OSHandle) Pid() int {
	return h.pid
}

// exited is the non-blocking liveness poll.
func (h *OSHandle) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Terminate stops the process: graceful request, grace period, hard kill.
// Graceful-path failures are logged and swallowed. A failed hard kill is
// returned as an error.
func (h *OSHandle) Terminate() error {
	if h.exited() {
		return nil
	}

	if err := gracefulStop(h.cmd); err != nil {
		h.logger.Debug("graceful_stop_failed", "pid", h.pid, "error", err)
	}

	select {
	case <-h.done:
		return nil
	case <-time.After(h.grace):
	}

	if h.exited() {
		return nil
	}

	h.logger.Warn("force_killing_process", "pid", h.pid, "grace_period", h.grace.String())
	if h.callbacks.OnForceKill != nil {
		h.callbacks.OnForceKill(h.pid)
	}

	if err := forceKill(h.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to stop process %d: %w", h.pid, err)
	}

	select {
	case <-h.done:
	case <-time.After(h.killTimeout):
		h.logger.Error("process_not_reaped", "pid", h.pid, "timeout", h.killTimeout.String())
	}

	return nil
}

// extractExitCode extracts the exit code from a Wait() error.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// Signal exit: 128 + signal number
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
		return exitErr.ExitCode()
	}

	return 1
}

var _ Handle = (*OSHandle)(nil)
