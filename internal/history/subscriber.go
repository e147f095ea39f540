package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/events"
)

// writeTimeout bounds each history write made from an event handler.
const writeTimeout = 5 * time.Second

// Ingest writes recording lifecycle events into a Store.
type Ingest struct {
	store  *Store
	logger *slog.Logger
}

// NewIngest creates an Ingest for store.
func NewIngest(store *Store, logger *slog.Logger) *Ingest {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingest{store: store, logger: logger}
}

// Subscribe attaches the ingest to bus and returns a function that detaches it.
func (in *Ingest) Subscribe(bus *events.Bus) func() {
	unsubs := []func(){
		bus.Subscribe(in.OnStarted),
		bus.Subscribe(in.OnStopped),
		bus.Subscribe(in.OnFailed),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// OnStarted records a new recording.
func (in *Ingest) OnStarted(e events.RecordingStartedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := in.store.Started(ctx, e.SessionID, e.OutputPath, e.Pid, e.StartedAt); err != nil {
		in.logger.Warn("history_write_failed", "session_id", e.SessionID, "error", err)
	}
}

// OnStopped finalises a recording with its file size and digest.
func (in *Ingest) OnStopped(e events.RecordingStoppedEvent) {
	info := StopInfo{
		ID:         e.SessionID,
		OutputPath: e.OutputPath,
		Pid:        e.Pid,
		StartedAt:  e.StartedAt,
		StoppedAt:  e.StoppedAt,
		Duration:   e.Duration,
		Forced:     e.Forced,
		Error:      e.Error,
	}

	size, digest, err := FileDigest(e.OutputPath)
	if err != nil {
		in.logger.Debug("recording_digest_skipped", "output", e.OutputPath, "error", err)
	} else {
		info.SizeBytes = size
		info.Digest = digest
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := in.store.Stopped(ctx, info); err != nil {
		in.logger.Warn("history_write_failed", "session_id", e.SessionID, "error", err)
	}
}

// OnFailed records a launch failure or an unexpected exit.
func (in *Ingest) OnFailed(e events.RecordingFailedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err := in.store.Failed(ctx, FailInfo{
		ID:         e.SessionID,
		OutputPath: e.OutputPath,
		Pid:        e.Pid,
		ExitCode:   e.ExitCode,
		Error:      e.Error,
		At:         e.Timestamp,
	})
	if err != nil {
		in.logger.Warn("history_write_failed", "session_id", e.SessionID, "error", err)
	}
}
