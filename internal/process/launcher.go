package process

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/logging"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/parser"
)

// Launcher starts capture processes.
// This interface allows the recorder to be decoupled from ffmpeg specifics.
type Launcher interface {
	// Launch starts one capture writing to req.OutputPath. The process must
	// outlive ctx; ctx only bounds any preparation work.
	Launch(ctx context.Context, req LaunchRequest) (Handle, error)
}

// LaunchRequest describes one recording to start.
type LaunchRequest struct {
	SessionID  string
	OutputPath string
	Callbacks  Callbacks

	// OnProgress receives each -progress block, when enabled.
	OnProgress parser.ProgressCallback
}

// LauncherOptions configures an FFmpegLauncher.
type LauncherOptions struct {
	GracePeriod time.Duration
	KillTimeout time.Duration
	Logger      *slog.Logger

	// Verbose logs every ffmpeg stderr line instead of warnings and errors only.
	Verbose bool

	// Probe overrides the darwin screen device probe (tests).
	Probe func(ctx context.Context, binaryPath string) (string, error)
}

// FFmpegLauncher implements Launcher for ffmpeg screen captures.
type FFmpegLauncher struct {
	mu  sync.RWMutex
	cfg CaptureConfig

	grace       time.Duration
	killTimeout time.Duration
	logger      *slog.Logger
	verbose     bool
	probe       func(ctx context.Context, binaryPath string) (string, error)
}

// NewFFmpegLauncher creates a launcher with the given capture configuration.
func NewFFmpegLauncher(cfg CaptureConfig, opts LauncherOptions) *FFmpegLauncher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	probe := opts.Probe
	if probe == nil {
		probe = ProbeScreenDevice
	}
	return &FFmpegLauncher{
		cfg:         cfg,
		grace:       opts.GracePeriod,
		killTimeout: opts.KillTimeout,
		logger:      logger,
		verbose:     opts.Verbose,
		probe:       probe,
	}
}

// Config returns the capture configuration used for the next launch.
func (l *FFmpegLauncher) Config() CaptureConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// SetConfig replaces the capture configuration. A running capture keeps
// the settings it was launched with.
func (l *FFmpegLauncher) SetConfig(cfg CaptureConfig) {
	l.mu.Lock()
	l.cfg = cfg
	l.mu.Unlock()
	l.logger.Info("capture_config_updated",
		"platform", cfg.Platform,
		"frame_rate", cfg.FrameRate,
		"preset", cfg.Preset,
	)
}

// Launch builds the ffmpeg command for req and starts it.
func (l *FFmpegLauncher) Launch(ctx context.Context, req LaunchRequest) (Handle, error) {
	cfg := l.Config()

	if cfg.Platform == PlatformDarwin && cfg.ScreenDevice == ScreenDeviceAuto {
		cfg.ScreenDevice = l.resolveScreenDevice(ctx, cfg.BinaryPath)
	}

	args, err := BuildArgs(cfg, req.OutputPath)
	if err != nil {
		return nil, err
	}

	// Not CommandContext: the recording must outlive the request that started it.
	cmd := exec.Command(cfg.BinaryPath, args...)

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	stderrHandler := logging.NewStderrHandler(req.SessionID, l.logger, l.verbose)
	progress := parser.NewProgressParser(req.OnProgress)

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		if err := parser.ReadLines(stdoutR, progress); err != nil {
			l.logger.Debug("progress_reader_error", "session_id", req.SessionID, "error", err)
		}
		// Keep draining so ffmpeg never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, stdoutR)
	}()
	go func() {
		defer readers.Done()
		if err := stderrHandler.HandleReader(stderrR); err != nil {
			l.logger.Debug("stderr_reader_error", "session_id", req.SessionID, "error", err)
		}
		_, _ = io.Copy(io.Discard, stderrR)
	}()

	callbacks := req.Callbacks
	userOnExit := callbacks.OnExit
	callbacks.OnExit = func(st ExitStatus) {
		st.Stderr = stderrHandler.RecentLines(10)
		if failures := stderrHandler.Failures(); len(failures) > 0 {
			l.logger.Warn("ffmpeg_failures", "session_id", req.SessionID, "counts", failures)
		}
		if userOnExit != nil {
			userOnExit(st)
		}
	}

	closePipes := func() {
		stdoutW.Close()
		stderrW.Close()
		readers.Wait()
	}

	h, err := StartHandle(cmd, HandleOptions{
		GracePeriod: l.grace,
		KillTimeout: l.killTimeout,
		Logger:      l.logger,
		Callbacks:   callbacks,
		afterWait:   closePipes,
	})
	if err != nil {
		closePipes()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	l.logger.Debug("ffmpeg_started",
		"session_id", req.SessionID,
		"pid", h.Pid(),
		"args", args,
	)

	return h, nil
}

// resolveScreenDevice probes for the AVFoundation screen index and falls
// back to the profile default.
func (l *FFmpegLauncher) resolveScreenDevice(ctx context.Context, binaryPath string) string {
	device, err := l.probe(ctx, binaryPath)
	if err != nil {
		fallback := captureProfiles[PlatformDarwin].Input
		l.logger.Warn("screen_device_probe_failed", "error", err, "fallback", fallback)
		return fallback
	}
	l.logger.Debug("screen_device_probed", "device", device)
	return device
}

var _ Launcher = (*FFmpegLauncher)(nil)
