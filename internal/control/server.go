// Package control serves the local HTTP control surface: recording
// commands, status, history, Prometheus metrics and health checks.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/history"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/recorder"
)

// Commands is the command surface the control server drives.
type Commands interface {
	StartRecording(ctx context.Context, outputPath string) error
	StopRecording(ctx context.Context) error
	GetStatus() bool
}

// StatusSource provides the detailed recording snapshot.
type StatusSource interface {
	Current() recorder.Status
}

// HistoryLister lists past recordings.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]history.Recording, error)
}

// Config holds control server configuration.
type Config struct {
	Addr     string
	Commands Commands
	Status   StatusSource

	// History is optional; without it /api/recordings returns 503.
	History HistoryLister

	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// Server provides the HTTP control API.
type Server struct {
	addr      string
	commands  Commands
	status    StatusSource
	history   HistoryLister
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
	startedAt time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer creates a new control server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		addr:      cfg.Addr,
		commands:  cfg.Commands,
		status:    cfg.Status,
		history:   cfg.History,
		gatherer:  gatherer,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/recording/start", s.handleStart)
		r.Post("/recording/stop", s.handleStop)
		r.Get("/recording/status", s.handleStatus)
		r.Get("/recordings", s.handleRecordings)
	})

	return r
}

// Start binds the listener and serves in a goroutine.
// Returns once the address is bound. Use Shutdown to stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("control server listen %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("control_server_starting", "addr", ln.Addr().String())

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control_server_error", "error", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Debug("control_server_shutting_down")
	return srv.Shutdown(ctx)
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
