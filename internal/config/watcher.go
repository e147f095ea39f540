package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads the config file on change and hands every successfully
// validated Config to the registered handlers. Invalid files are logged
// and the previous settings stay in effect.
type Watcher struct {
	path     string
	debounce time.Duration
	load     func() (*Config, error)
	logger   *slog.Logger

	mu       sync.RWMutex
	handlers []func(*Config)
	onError  func(error)

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration

	// OnError is called when a reload fails.
	OnError func(error)

	Logger *slog.Logger
}

// NewWatcher watches path and calls load on every change.
// load is usually Loader.Load so flags and environment keep precedence.
func NewWatcher(path string, load func() (*Config, error), opts WatcherOptions) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: opts.Debounce,
		load:     load,
		logger:   opts.Logger,
		onError:  opts.OnError,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// OnReload registers a handler called with each reloaded config.
func (w *Watcher) OnReload(handler func(*Config)) {
	w.mu.Lock()
	w.handlers = append(w.handlers, handler)
	w.mu.Unlock()
}

// Start begins watching. The parent directory is watched so that editors
// which replace the file on save are still seen.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	w.watcher = fw

	w.logger.Info("config_watcher_started", "path", w.path, "debounce", w.debounce)
	go w.watch()
	return nil
}

// Stop stops watching and waits for the loop to exit.
func (w *Watcher) Stop() error {
	w.cancel()
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) watch() {
	defer close(w.done)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Debug("config_watcher_stopped")
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("config_change_detected", "op", ev.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config_watcher_error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := w.load()
	if err != nil {
		w.logger.Warn("config_reload_failed", "path", w.path, "error", err)
		if w.onError != nil {
			w.onError(err)
		}
		return
	}

	w.mu.RLock()
	handlers := append([]func(*Config){}, w.handlers...)
	w.mu.RUnlock()

	w.logger.Info("config_reloaded", "path", w.path)
	for _, h := range handlers {
		h(cfg)
	}
}
