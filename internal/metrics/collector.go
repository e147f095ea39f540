// Package metrics provides Prometheus metrics for screenrec.
//
// Lifecycle metrics are fed from the recorder's event bus. Capture metrics
// are fed from ffmpeg -progress blocks of the active recording.
package metrics

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/events"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/parser"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/timeseries"
)

const namespace = "screenrec"

// Stop results used as the "result" label.
const (
	ResultClean  = "clean"
	ResultForced = "forced"
	ResultError  = "error"
)

// Collector manages all Prometheus metrics for the recorder.
type Collector struct {
	// --- Lifecycle ---
	info               *prometheus.GaugeVec
	active             prometheus.Gauge
	startsTotal        prometheus.Counter
	stopsTotal         *prometheus.CounterVec
	failuresTotal      *prometheus.CounterVec
	terminateSeconds   prometheus.Histogram
	recordingSeconds   prometheus.Histogram
	terminateP50       prometheus.Gauge
	terminateP95       prometheus.Gauge
	terminateP99       prometheus.Gauge
	recordedSecondsSum prometheus.Counter

	// --- Capture (from -progress) ---
	captureFPS        prometheus.Gauge
	captureSpeed      prometheus.Gauge
	captureFrames     prometheus.Gauge
	captureBytes      prometheus.Gauge
	captureDropFrames prometheus.Gauge
	captureDupFrames  prometheus.Gauge
	captureRate       prometheus.Gauge
	captureRateAvg    prometheus.Gauge
	rate              *timeseries.RateTracker

	// For summary generation
	mu              sync.Mutex
	startTime       time.Time
	terminateDigest *tdigest.TDigest
	totalStarts     int64
	totalStops      int64
	forcedKills     int64
	failures        map[string]int64
	recorded        time.Duration
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version  string
	Platform string
}

// NewCollector creates a new metrics collector on the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Information about the recorder (value always 1)",
		}, []string{"version", "platform"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recording_active",
			Help:      "1 while the recording slot is occupied",
		}),
		startsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_started_total",
			Help:      "Recordings started",
		}),
		stopsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_stopped_total",
			Help:      "Recordings stopped on request, by result (clean, forced, error)",
		}, []string{"result"}),
		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recording_failures_total",
			Help:      "Recordings that failed to start or exited on their own, by stage",
		}, []string{"stage"}),
		terminateSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "terminate_duration_seconds",
			Help:      "Time taken to stop the capture process",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5},
		}),
		recordingSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recording_duration_seconds",
			Help:      "Length of finished recordings",
			Buckets:   []float64{1, 10, 30, 60, 300, 900, 1800, 3600, 7200},
		}),
		terminateP50: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "terminate_p50_seconds",
			Help:      "Median stop latency",
		}),
		terminateP95: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "terminate_p95_seconds",
			Help:      "95th percentile stop latency",
		}),
		terminateP99: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "terminate_p99_seconds",
			Help:      "99th percentile stop latency",
		}),
		recordedSecondsSum: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recorded_seconds_total",
			Help:      "Total wall time recorded",
		}),
		captureFPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_fps",
			Help:      "Current encode rate of the active recording",
		}),
		captureSpeed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_speed",
			Help:      "Encode speed relative to realtime (1.0 = keeping up)",
		}),
		captureFrames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_frames",
			Help:      "Frames encoded by the active recording",
		}),
		captureBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_bytes",
			Help:      "Bytes written by the active recording",
		}),
		captureDropFrames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_dropped_frames",
			Help:      "Frames dropped by the active recording",
		}),
		captureDupFrames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_duplicated_frames",
			Help:      "Frames duplicated by the active recording",
		}),
		captureRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_output_bytes_per_second",
			Help:      "Output rate of the active recording over the last 5 seconds",
		}),
		captureRateAvg: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_output_bytes_per_second_avg",
			Help:      "Output rate of the active recording since it started",
		}),
		rate:            timeseries.NewRateTracker(),
		startTime:       time.Now(),
		terminateDigest: tdigest.NewWithCompression(100),
		failures:        make(map[string]int64),
	}

	registry.MustRegister(
		c.info,
		c.active,
		c.startsTotal,
		c.stopsTotal,
		c.failuresTotal,
		c.terminateSeconds,
		c.recordingSeconds,
		c.terminateP50,
		c.terminateP95,
		c.terminateP99,
		c.recordedSecondsSum,
		c.captureFPS,
		c.captureSpeed,
		c.captureFrames,
		c.captureBytes,
		c.captureDropFrames,
		c.captureDupFrames,
		c.captureRate,
		c.captureRateAvg,
	)

	c.info.WithLabelValues(cfg.Version, cfg.Platform).Set(1)

	return c
}

// Subscribe attaches the collector to bus and returns a function that detaches it.
func (c *Collector) Subscribe(bus *events.Bus) func() {
	unsubs := []func(){
		bus.Subscribe(c.OnStarted),
		bus.Subscribe(c.OnStopped),
		bus.Subscribe(c.OnFailed),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// =============================================================================
// Event Recording Methods
// =============================================================================

// OnStarted records a recording start.
func (c *Collector) OnStarted(events.RecordingStartedEvent) {
	c.startsTotal.Inc()
	c.active.Set(1)
	c.resetCapture()

	c.mu.Lock()
	c.totalStarts++
	c.mu.Unlock()
}

// OnStopped records a requested stop and its termination latency.
func (c *Collector) OnStopped(e events.RecordingStoppedEvent) {
	result := ResultClean
	switch {
	case e.Error != "":
		result = ResultError
	case e.Forced:
		result = ResultForced
	}
	c.stopsTotal.WithLabelValues(result).Inc()
	c.active.Set(0)
	c.terminateSeconds.Observe(e.TerminateDuration.Seconds())
	c.recordingSeconds.Observe(e.Duration.Seconds())
	c.recordedSecondsSum.Add(e.Duration.Seconds())

	c.mu.Lock()
	c.totalStops++
	if e.Forced {
		c.forcedKills++
	}
	c.recorded += e.Duration
	c.terminateDigest.Add(e.TerminateDuration.Seconds(), 1)
	p50 := c.terminateDigest.Quantile(0.50)
	p95 := c.terminateDigest.Quantile(0.95)
	p99 := c.terminateDigest.Quantile(0.99)
	c.mu.Unlock()

	c.terminateP50.Set(p50)
	c.terminateP95.Set(p95)
	c.terminateP99.Set(p99)
}

// OnFailed records a launch failure or unexpected exit.
func (c *Collector) OnFailed(e events.RecordingFailedEvent) {
	stage := e.Stage
	if stage == "" {
		stage = events.StageExit
	}
	c.failuresTotal.WithLabelValues(stage).Inc()

	c.mu.Lock()
	c.failures[stage]++
	c.mu.Unlock()
}

// RecordProgress updates the capture gauges from one progress block.
func (c *Collector) RecordProgress(u *parser.ProgressUpdate) {
	if u == nil {
		return
	}
	c.captureFPS.Set(u.FPS)
	c.captureSpeed.Set(u.Speed)
	c.captureFrames.Set(float64(u.Frame))
	c.captureBytes.Set(float64(u.TotalSize))
	c.captureDropFrames.Set(float64(u.DropFrames))
	c.captureDupFrames.Set(float64(u.DupFrames))

	c.rate.Observe(u.TotalSize)
	stats := c.rate.Stats()
	c.captureRate.Set(stats.Avg5s)
	c.captureRateAvg.Set(stats.AvgOverall)
}

// OutputRate returns the output rate of the active recording.
func (c *Collector) OutputRate() timeseries.RateStats {
	return c.rate.Stats()
}

func (c *Collector) resetCapture() {
	c.captureFPS.Set(0)
	c.captureSpeed.Set(0)
	c.captureFrames.Set(0)
	c.captureBytes.Set(0)
	c.captureDropFrames.Set(0)
	c.captureDupFrames.Set(0)
	c.captureRate.Set(0)
	c.captureRateAvg.Set(0)
	c.rate.Reset()
}

// =============================================================================
// Summary Generation
// =============================================================================

// Summary holds the data for generating an exit summary.
type Summary struct {
	Uptime       time.Duration
	TotalStarts  int64
	TotalStops   int64
	ForcedKills  int64
	Failures     map[string]int64
	Recorded     time.Duration
	TerminateP50 time.Duration
	TerminateP95 time.Duration
	TerminateP99 time.Duration
}

// GenerateSummary creates a summary of the session.
func (c *Collector) GenerateSummary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Summary{
		Uptime:      time.Since(c.startTime),
		TotalStarts: c.totalStarts,
		TotalStops:  c.totalStops,
		ForcedKills: c.forcedKills,
		Failures:    make(map[string]int64, len(c.failures)),
		Recorded:    c.recorded,
	}
	for stage, n := range c.failures {
		s.Failures[stage] = n
	}

	if c.totalStops > 0 {
		s.TerminateP50 = seconds(c.terminateDigest.Quantile(0.50))
		s.TerminateP95 = seconds(c.terminateDigest.Quantile(0.95))
		s.TerminateP99 = seconds(c.terminateDigest.Quantile(0.99))
	}

	return s
}

// TotalStarts returns the number of recordings started.
func (c *Collector) TotalStarts() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalStarts
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
