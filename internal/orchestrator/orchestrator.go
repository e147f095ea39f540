// Package orchestrator wires the recorder, its command surface and the
// host surfaces (terminal console, control server, config watcher) into
// one running program.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/command"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/config"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/control"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/events"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/history"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/metrics"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/process"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/recorder"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/tui"
)

// shutdownTimeout bounds stopping the control server on exit.
const shutdownTimeout = 10 * time.Second

// drainTimeout bounds waiting for subscribers to record the final stop.
const drainTimeout = 5 * time.Second

// Options holds what the orchestrator needs beyond the config.
type Options struct {
	Version string

	// Headless disables the console even when the config enables it.
	Headless bool

	// Reload re-reads the configuration for the watcher. Usually
	// config.Loader.Load so flags and environment keep precedence.
	Reload func() (*config.Config, error)

	// Launcher overrides the ffmpeg launcher (tests).
	Launcher process.Launcher

	// Out receives the exit summary. Defaults to os.Stdout.
	Out io.Writer
}

// Orchestrator coordinates all components of a recorder session.
type Orchestrator struct {
	config  *config.Config
	logger  *slog.Logger
	opts    Options
	out     io.Writer
	console bool

	bus       *events.Bus
	registry  *prometheus.Registry
	metrics   *metrics.Collector
	launcher  process.Launcher
	recorder  *recorder.Supervisor
	host      *tui.Host
	commands  *command.Commands
	history   *history.Store
	control   *control.Server
	watcher   *config.Watcher
	unsubs    []func()
	startTime time.Time
}

// New creates an Orchestrator for cfg. It opens the history database when
// one is configured; Close releases it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	o := &Orchestrator{
		config:   cfg,
		logger:   logger,
		opts:     opts,
		out:      out,
		console:  cfg.TUI && !opts.Headless,
		bus:      events.New(),
		registry: prometheus.NewRegistry(),
		host:     &tui.Host{},
	}

	o.metrics = metrics.NewCollectorWithRegistry(metrics.CollectorConfig{
		Version:  opts.Version,
		Platform: cfg.Platform,
	}, o.registry)

	o.launcher = opts.Launcher
	if o.launcher == nil {
		o.launcher = process.NewFFmpegLauncher(cfg.Capture(), process.LauncherOptions{
			GracePeriod: cfg.GracePeriod,
			KillTimeout: cfg.KillTimeout,
			Logger:      logger,
			Verbose:     cfg.Verbose,
		})
	}

	o.recorder = recorder.New(recorder.Config{
		Launcher:   o.launcher,
		OutputDir:  cfg.OutputDir,
		Logger:     logger,
		Bus:        o.bus,
		OnProgress: o.metrics.RecordProgress,
	})

	var windows command.WindowHost
	if o.console {
		windows = o.host
	}
	o.commands = command.New(command.Config{
		Recorder: o.recorder,
		Windows:  windows,
		Logger:   logger,
	})

	if cfg.HistoryDB != "" {
		store, err := history.Open(ctx, cfg.HistoryDB)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		o.history = store
	}

	if cfg.ControlAddr != "" {
		srv := control.Config{
			Addr:     cfg.ControlAddr,
			Commands: o.commands,
			Status:   o.recorder,
			Gatherer: o.registry,
			Logger:   logger,
		}
		if o.history != nil {
			srv.History = o.history
		}
		o.control = control.NewServer(srv)
	}

	return o, nil
}

// Run starts the host surfaces and blocks until the console exits, a
// signal arrives or ctx is cancelled. Any active recording is stopped
// before Run returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startTime = time.Now()

	o.unsubs = append(o.unsubs, o.metrics.Subscribe(o.bus))
	if o.history != nil {
		o.unsubs = append(o.unsubs, history.NewIngest(o.history, o.logger).Subscribe(o.bus))
	}

	if o.control != nil {
		if err := o.control.Start(); err != nil {
			return fmt.Errorf("failed to start control server: %w", err)
		}
	}

	if err := o.startWatcher(); err != nil {
		o.logger.Warn("config_watcher_failed", "error", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	var runErr error
	if o.console {
		runErr = o.runConsole(ctx, sigCh)
	} else {
		o.waitHeadless(ctx, sigCh)
	}

	o.shutdown()
	o.printExitSummary()

	return runErr
}

func (o *Orchestrator) runConsole(ctx context.Context, sigCh <-chan os.Signal) error {
	model := tui.New(tui.Config{
		Commands:    o.commands,
		Status:      o.recorder,
		History:     o.historyLister(),
		Platform:    o.config.Platform,
		OutputDir:   o.config.OutputDir,
		ControlAddr: o.config.ControlAddr,
		Version:     o.opts.Version,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	o.host.Attach(p)
	o.unsubs = append(o.unsubs, o.host.Subscribe(o.bus))

	// Signals and cancellation go through the console so it can stop the
	// recording before it exits.
	go func() {
		select {
		case sig := <-sigCh:
			o.logger.Info("received_signal", "signal", sig.String())
			o.host.Quit()
		case <-ctx.Done():
			o.host.Quit()
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}

func (o *Orchestrator) waitHeadless(ctx context.Context, sigCh <-chan os.Signal) {
	o.logger.Info("recorder_ready",
		"control_addr", o.config.ControlAddr,
		"output_dir", o.recorder.OutputDir(),
	)

	select {
	case sig := <-sigCh:
		o.logger.Info("received_signal", "signal", sig.String())
	case <-ctx.Done():
		o.logger.Info("context_cancelled")
	}
}

func (o *Orchestrator) startWatcher() error {
	if !o.config.WatchConfig || o.opts.Reload == nil || o.config.File == "" {
		return nil
	}
	o.watcher = config.NewWatcher(o.config.File, o.opts.Reload, config.WatcherOptions{
		Logger: o.logger,
	})
	o.watcher.OnReload(o.applyConfig)
	return o.watcher.Start()
}

// applyConfig pushes reloadable settings into the running components. The
// active recording keeps the settings it was started with.
func (o *Orchestrator) applyConfig(cfg *config.Config) {
	if l, ok := o.launcher.(*process.FFmpegLauncher); ok {
		l.SetConfig(cfg.Capture())
	}
	o.recorder.SetOutputDir(cfg.OutputDir)
	o.logger.Info("config_applied",
		"output_dir", cfg.OutputDir,
		"platform", cfg.Platform,
		"codec", cfg.Codec,
	)
}

func (o *Orchestrator) shutdown() {
	if err := o.recorder.Shutdown(); err != nil {
		o.logger.Warn("shutdown_incomplete", "error", err)
	}

	// The summary and history must see the stop Shutdown just published.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainTimeout)
	defer cancelDrain()
	if err := o.bus.Drain(drainCtx); err != nil {
		o.logger.Warn("event_drain_incomplete", "pending", o.bus.Pending(), "error", err)
	}

	if o.watcher != nil {
		if err := o.watcher.Stop(); err != nil {
			o.logger.Warn("config_watcher_stop_error", "error", err)
		}
	}

	if o.control != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := o.control.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Warn("control_server_shutdown_error", "error", err)
		}
	}
}

// Close releases the history database and detaches bus subscribers.
func (o *Orchestrator) Close() error {
	for _, u := range o.unsubs {
		u()
	}
	o.unsubs = nil
	if o.history != nil {
		return o.history.Close()
	}
	return nil
}

func (o *Orchestrator) historyLister() tui.HistoryLister {
	if o.history == nil {
		return nil
	}
	return o.history
}

// printExitSummary prints a summary of the session.
func (o *Orchestrator) printExitSummary() {
	summary := o.metrics.GenerateSummary()
	w := o.out

	fmt.Fprintln(w)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
	fmt.Fprintln(w, "                        screenrec Exit Summary")
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
	fmt.Fprintf(w, "Session Duration:       %s\n", formatDuration(time.Since(o.startTime)))
	fmt.Fprintf(w, "Recorded Time:          %s\n", formatDuration(summary.Recorded))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Lifecycle:")
	fmt.Fprintf(w, "  Recordings Started:   %d\n", summary.TotalStarts)
	fmt.Fprintf(w, "  Recordings Stopped:   %d\n", summary.TotalStops)
	fmt.Fprintf(w, "  Forced Kills:         %d\n", summary.ForcedKills)
	fmt.Fprintln(w)

	if summary.TotalStops > 0 {
		fmt.Fprintln(w, "Stop Latency:")
		fmt.Fprintf(w, "  P50 (median):         %s\n", summary.TerminateP50)
		fmt.Fprintf(w, "  P95:                  %s\n", summary.TerminateP95)
		fmt.Fprintf(w, "  P99:                  %s\n", summary.TerminateP99)
		fmt.Fprintln(w)
	}

	if len(summary.Failures) > 0 {
		fmt.Fprintln(w, "Failures:")
		for stage, count := range summary.Failures {
			fmt.Fprintf(w, "  %-20s %d\n", stage, count)
		}
		fmt.Fprintln(w)
	}

	if o.config.ControlAddr != "" {
		fmt.Fprintf(w, "Control endpoint was: http://%s\n", o.config.ControlAddr)
	}
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
}

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Commands returns the command surface for external access.
func (o *Orchestrator) Commands() *command.Commands {
	return o.commands
}

// Recorder returns the supervisor for external access.
func (o *Orchestrator) Recorder() *recorder.Supervisor {
	return o.recorder
}

// Metrics returns the metrics collector for external access.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}

// ControlAddr returns the control server's bound address, or "".
func (o *Orchestrator) ControlAddr() string {
	if o.control == nil {
		return ""
	}
	return o.control.Addr()
}
