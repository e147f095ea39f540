package recorder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/events"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/parser"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/process"
)

// Session describes the recording held in the slot. OutputPath never
// changes for the lifetime of the recording.
type Session struct {
	ID         string
	OutputPath string
	Pid        int
	StartedAt  time.Time
}

// Status is a point-in-time snapshot of the supervisor.
type Status struct {
	State   State
	Session *Session

	// Progress is the last progress block of the active recording.
	Progress *parser.ProgressUpdate

	// Exited is set when the held process has already ended on its own.
	// The slot stays occupied until Kill.
	Exited *process.ExitStatus
}

// Config holds configuration for creating a new Supervisor.
type Config struct {
	Launcher  process.Launcher
	OutputDir string
	Logger    *slog.Logger

	// Bus receives lifecycle events. Optional.
	Bus *events.Bus

	// OnProgress receives every progress block of the active recording.
	// Optional.
	OnProgress parser.ProgressCallback

	// Now overrides the clock used for generated names (tests).
	Now func() time.Time
}

// slot is the single occupied recording.
type slot struct {
	handle  process.Handle
	session Session

	stopping atomic.Bool
	forced   atomic.Bool
	progress atomic.Pointer[parser.ProgressUpdate]
	exit     atomic.Pointer[process.ExitStatus]
}

// Supervisor holds at most one recording process. Every operation runs
// under one mutex, so concurrent callers never observe a half-built slot.
type Supervisor struct {
	launcher   process.Launcher
	logger     *slog.Logger
	bus        *events.Bus
	onProgress parser.ProgressCallback
	now        func() time.Time

	mu        sync.Mutex
	slot      *slot
	outputDir string
}

// New creates a new idle Supervisor.
func New(cfg Config) *Supervisor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Supervisor{
		launcher:   cfg.Launcher,
		logger:     logger,
		bus:        cfg.Bus,
		onProgress: cfg.OnProgress,
		now:        now,
		outputDir:  cfg.OutputDir,
	}
}

// Spawn starts a recording into outputPath. An empty outputPath generates
// recording_<unix seconds>.mp4 in the output directory. Spawn is a no-op
// returning nil while a recording is held. ctx only bounds launch
// preparation; cancelling it never stops the recording.
func (s *Supervisor) Spawn(ctx context.Context, outputPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slot != nil {
		s.logger.Debug("spawn_ignored",
			"reason", "already_recording",
			"session_id", s.slot.session.ID,
		)
		return nil
	}

	now := s.now()
	if outputPath == "" {
		outputPath = process.GenerateOutputPath(s.outputDir, now)
	}

	sl := &slot{
		session: Session{
			ID:         uuid.NewString(),
			OutputPath: outputPath,
			StartedAt:  now,
		},
	}

	h, err := s.launcher.Launch(ctx, process.LaunchRequest{
		SessionID:  sl.session.ID,
		OutputPath: outputPath,
		Callbacks: process.Callbacks{
			OnExit:      func(st process.ExitStatus) { s.onExit(sl, st) },
			OnForceKill: func(int) { sl.forced.Store(true) },
		},
		OnProgress: func(u *parser.ProgressUpdate) {
			sl.progress.Store(u)
			if s.onProgress != nil {
				s.onProgress(u)
			}
		},
	})
	if err != nil {
		s.logger.Error("recording_spawn_failed", "output", outputPath, "error", err)
		s.bus.Publish(events.RecordingFailedEvent{
			Stage:      events.StageSpawn,
			SessionID:  sl.session.ID,
			OutputPath: outputPath,
			ExitCode:   -1,
			Error:      err.Error(),
			Timestamp:  now,
		})
		return &LaunchError{OutputPath: outputPath, Err: err}
	}

	sl.handle = h
	sl.session.Pid = h.Pid()
	s.slot = sl

	s.logger.Info("recording_started",
		"session_id", sl.session.ID,
		"pid", sl.session.Pid,
		"output", outputPath,
	)
	s.bus.Publish(events.RecordingStartedEvent{
		SessionID:  sl.session.ID,
		OutputPath: outputPath,
		Pid:        sl.session.Pid,
		StartedAt:  now,
	})

	return nil
}

// IsRunning reports whether the slot is occupied. It does not check OS
// liveness: a process that died on its own reads as running until Kill.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slot != nil
}

// State returns the current slot state.
func (s *Supervisor) State() State {
	if s.IsRunning() {
		return StateRecording
	}
	return StateIdle
}

// Kill stops the held recording and clears the slot. It is a no-op
// returning nil when idle. The slot is cleared even if termination fails.
func (s *Supervisor) Kill() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.slot
	if sl == nil {
		s.logger.Debug("stop_ignored", "reason", "not_recording")
		return nil
	}
	s.slot = nil

	sl.stopping.Store(true)
	start := time.Now()
	err := sl.handle.Terminate()
	elapsed := time.Since(start)

	stoppedAt := s.now()
	ev := events.RecordingStoppedEvent{
		SessionID:         sl.session.ID,
		OutputPath:        sl.session.OutputPath,
		Pid:               sl.session.Pid,
		StartedAt:         sl.session.StartedAt,
		StoppedAt:         stoppedAt,
		Duration:          stoppedAt.Sub(sl.session.StartedAt),
		TerminateDuration: elapsed,
		Forced:            sl.forced.Load(),
	}

	if err != nil {
		ev.Error = err.Error()
		s.bus.Publish(ev)
		s.logger.Error("recording_terminate_failed",
			"session_id", sl.session.ID,
			"pid", sl.session.Pid,
			"error", err,
		)
		return &TerminateError{Pid: sl.session.Pid, Err: err}
	}

	s.bus.Publish(ev)
	s.logger.Info("recording_stopped",
		"session_id", sl.session.ID,
		"pid", sl.session.Pid,
		"output", sl.session.OutputPath,
		"duration", ev.Duration.String(),
		"forced", ev.Forced,
	)
	return nil
}

// Shutdown stops any active recording. The host calls it on explicit exit.
func (s *Supervisor) Shutdown() error {
	s.logger.Debug("supervisor_shutdown")
	return s.Kill()
}

// Current returns a snapshot of the slot.
func (s *Supervisor) Current() Status {
	s.mu.Lock()
	sl := s.slot
	s.mu.Unlock()

	if sl == nil {
		return Status{State: StateIdle}
	}

	session := sl.session
	return Status{
		State:    StateRecording,
		Session:  &session,
		Progress: sl.progress.Load(),
		Exited:   sl.exit.Load(),
	}
}

// OutputDir returns the directory used for generated names.
func (s *Supervisor) OutputDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputDir
}

// SetOutputDir changes where generated names are placed. A held recording
// keeps its path.
func (s *Supervisor) SetOutputDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputDir = dir
}

// onExit runs on the reaper goroutine of sl's process.
func (s *Supervisor) onExit(sl *slot, st process.ExitStatus) {
	sl.exit.Store(&st)

	if sl.stopping.Load() {
		s.logger.Debug("recording_reaped",
			"session_id", sl.session.ID,
			"pid", st.Pid,
			"exit_code", st.ExitCode,
		)
		return
	}

	// Exited on its own. The slot is left occupied until the next Kill.
	s.logger.Warn("recording_exited",
		"session_id", sl.session.ID,
		"pid", st.Pid,
		"exit_code", st.ExitCode,
		"uptime", st.Uptime.String(),
		"stderr", st.Stderr,
	)

	if st.ExitCode != 0 {
		msg := "capture process exited"
		if st.Err != nil {
			msg = st.Err.Error()
		}
		s.bus.Publish(events.RecordingFailedEvent{
			Stage:      events.StageExit,
			SessionID:  sl.session.ID,
			OutputPath: sl.session.OutputPath,
			Pid:        st.Pid,
			ExitCode:   st.ExitCode,
			Error:      msg,
			Stderr:     st.Stderr,
			Timestamp:  s.now(),
		})
	}
}
