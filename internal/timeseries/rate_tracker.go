// Package timeseries tracks the output rate of the active recording.
//
// ffmpeg reports the cumulative size written in each -progress block (about
// once per second). RateTracker keeps those observations in a ring buffer
// and computes rolling averages over fixed windows.
//
// Thread-safe: Observe acquires the write lock, Stats the read lock.
package timeseries

import (
	"sync"
	"time"
)

const (
	// ringBufferSize is the number of samples to retain (5 minutes at 1 sample/sec)
	ringBufferSize = 300

	// Window durations for rolling averages
	window5s  = 5 * time.Second
	window30s = 30 * time.Second
	window60s = 60 * time.Second
)

// Clock interface for testing with deterministic time.
type Clock interface {
	Now() time.Time
}

// realClock uses time.Now() for production.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// sample is a point-in-time snapshot of the cumulative byte count.
type sample struct {
	timestamp time.Time
	bytes     int64
}

// RateTracker computes rolling output rates from cumulative byte counts.
//
// Usage:
//
//	tracker := NewRateTracker()
//	tracker.Observe(update.TotalSize) // per progress block
//	stats := tracker.Stats()
type RateTracker struct {
	mu       sync.RWMutex
	samples  []sample
	writeIdx int // Next write position once the buffer is full
	start    time.Time
	clock    Clock
}

// RateStats contains computed rolling averages in bytes per second.
type RateStats struct {
	TotalBytes int64

	Avg5s      float64
	Avg30s     float64
	Avg60s     float64
	AvgOverall float64
}

// NewRateTracker creates a tracker with the real clock.
func NewRateTracker() *RateTracker {
	return NewRateTrackerWithClock(realClock{})
}

// NewRateTrackerWithClock creates a tracker with a custom clock for testing.
func NewRateTrackerWithClock(clock Clock) *RateTracker {
	t := &RateTracker{
		samples: make([]sample, 0, ringBufferSize),
		clock:   clock,
	}
	t.resetLocked(clock.Now())
	return t
}

// Observe records the cumulative byte count of the current recording. A
// count lower than the last one means a new recording started, and the
// history is cleared first.
func (t *RateTracker) Observe(total int64) {
	if total < 0 {
		return
	}
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if total < t.newestLocked().bytes {
		t.resetLocked(now)
	}

	s := sample{timestamp: now, bytes: total}
	if len(t.samples) < ringBufferSize {
		t.samples = append(t.samples, s)
		return
	}
	t.samples[t.writeIdx] = s
	t.writeIdx = (t.writeIdx + 1) % ringBufferSize
}

// Stats computes the current rates. Windows longer than the recorded
// history use the oldest sample available.
func (t *RateTracker) Stats() RateStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	newest := t.newestLocked()
	stats := RateStats{TotalBytes: newest.bytes}

	if elapsed := newest.timestamp.Sub(t.start).Seconds(); elapsed > 0 {
		stats.AvgOverall = float64(newest.bytes) / elapsed
	}
	stats.Avg5s = t.avgOverWindow(newest, window5s)
	stats.Avg30s = t.avgOverWindow(newest, window30s)
	stats.Avg60s = t.avgOverWindow(newest, window60s)
	return stats
}

// Reset clears all samples.
func (t *RateTracker) Reset() {
	now := t.clock.Now()
	t.mu.Lock()
	t.resetLocked(now)
	t.mu.Unlock()
}

// SampleCount returns the number of samples in the ring buffer.
func (t *RateTracker) SampleCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.samples)
}

// avgOverWindow returns bytes/sec between newest and the sample closest to
// (but not after) newest minus window. Must be called with mu held.
func (t *RateTracker) avgOverWindow(newest sample, window time.Duration) float64 {
	target := newest.timestamp.Add(-window)

	var best *sample
	var bestDiff time.Duration = -1
	for i := range t.samples {
		s := &t.samples[i]
		if s.timestamp.After(target) {
			continue
		}
		if diff := target.Sub(s.timestamp); bestDiff < 0 || diff < bestDiff {
			best = s
			bestDiff = diff
		}
	}
	if best == nil {
		best = t.oldestLocked()
	}

	elapsed := newest.timestamp.Sub(best.timestamp).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(newest.bytes-best.bytes) / elapsed
}

func (t *RateTracker) resetLocked(now time.Time) {
	t.samples = t.samples[:0]
	t.samples = append(t.samples, sample{timestamp: now})
	t.writeIdx = 0
	t.start = now
}

// oldestLocked returns the oldest sample. Must be called with mu held.
func (t *RateTracker) oldestLocked() *sample {
	if len(t.samples) < ringBufferSize {
		return &t.samples[0]
	}
	return &t.samples[t.writeIdx]
}

// newestLocked returns the newest sample. Must be called with mu held.
func (t *RateTracker) newestLocked() sample {
	if len(t.samples) < ringBufferSize {
		return t.samples[len(t.samples)-1]
	}
	return t.samples[(t.writeIdx+ringBufferSize-1)%ringBufferSize]
}
