// Package parser parses the machine-readable output of the ffmpeg capture
// process.
//
// ProgressParser consumes ffmpeg's -progress output: a series of key=value
// lines, each block terminated by "progress=continue" or "progress=end".
//
// Example block from a screen capture at 30 fps:
//
//	frame=60
//	fps=30.00
//	bitrate=1843.2kbits/s
//	total_size=460844
//	out_time_us=2000000
//	dup_frames=0
//	drop_frames=0
//	speed=1.00x
//	progress=continue
package parser

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LineParser consumes one line of process output at a time.
type LineParser interface {
	ParseLine(line string)
}

// ProgressUpdate is a single progress report from a running capture.
// All counters are cumulative since the recording started.
type ProgressUpdate struct {
	// Frames encoded so far.
	Frame int64

	// Current encode rate.
	FPS float64

	// Current bitrate as reported, e.g. "1843.2kbits/s" or "N/A".
	Bitrate string

	// Bytes written to the output file.
	TotalSize int64

	// Recorded media time in microseconds.
	OutTimeUS int64

	// Frames duplicated or dropped to hold the target frame rate.
	DupFrames  int64
	DropFrames int64

	// Encode speed relative to realtime (1.0 = keeping up).
	Speed float64

	// "continue" or "end".
	Progress string

	ReceivedAt time.Time
}

// ProgressCallback is called for each complete progress block.
// The callback receives a copy, so it is safe to store.
type ProgressCallback func(*ProgressUpdate)

// ProgressParser parses ffmpeg -progress output.
// Safe for use from multiple goroutines.
type ProgressParser struct {
	callback ProgressCallback

	mu      sync.Mutex
	current *ProgressUpdate
	last    *ProgressUpdate

	blocksReceived int64
	linesProcessed int64
}

// NewProgressParser creates a new progress parser with the given callback.
// Pass nil for callback if only Last() is needed.
func NewProgressParser(cb ProgressCallback) *ProgressParser {
	return &ProgressParser{
		callback: cb,
		current:  &ProgressUpdate{},
	}
}

// ParseLine implements LineParser.
func (p *ProgressParser) ParseLine(line string) {
	key, value, ok := parseKeyValue(strings.TrimSpace(line))
	if !ok {
		return
	}

	p.mu.Lock()
	p.linesProcessed++

	var emit *ProgressUpdate
	switch key {
	case "frame":
		p.current.Frame, _ = strconv.ParseInt(value, 10, 64)
	case "fps":
		p.current.FPS, _ = strconv.ParseFloat(value, 64)
	case "bitrate":
		p.current.Bitrate = value
	case "total_size":
		if value != "N/A" && value != "" {
			p.current.TotalSize, _ = strconv.ParseInt(value, 10, 64)
		}
	case "out_time_us":
		p.current.OutTimeUS, _ = strconv.ParseInt(value, 10, 64)
	case "dup_frames":
		p.current.DupFrames, _ = strconv.ParseInt(value, 10, 64)
	case "drop_frames":
		p.current.DropFrames, _ = strconv.ParseInt(value, 10, 64)
	case "speed":
		p.current.Speed = parseSpeed(value)
	case "progress":
		p.current.Progress = value
		p.current.ReceivedAt = time.Now()
		p.blocksReceived++

		update := *p.current
		p.last = &update
		emit = &update
		p.current = &ProgressUpdate{}
	}
	p.mu.Unlock()

	// Callback runs outside the lock so it may call Last().
	if emit != nil && p.callback != nil {
		update := *emit
		p.callback(&update)
	}
}

// Stats returns parser statistics.
func (p *ProgressParser) Stats() (blocksReceived, linesProcessed int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.blocksReceived, p.linesProcessed
}

// Current returns the in-progress (incomplete) block.
func (p *ProgressParser) Current() *ProgressUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := *p.current
	return &c
}

// Last returns the most recent complete block, or nil before the first one.
func (p *ProgressParser) Last() *ProgressUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil
	}
	c := *p.last
	return &c
}

// ReadLines feeds every line of r to lp until EOF or a read error.
func ReadLines(r io.Reader, lp LineParser) error {
	scanner := bufio.NewScanner(r)
	const maxLineSize = 64 * 1024
	scanner.Buffer(make([]byte, 4096), maxLineSize)

	for scanner.Scan() {
		lp.ParseLine(scanner.Text())
	}
	return scanner.Err()
}

// parseKeyValue splits "key=value" into parts.
func parseKeyValue(line string) (key, value string, ok bool) {
	idx := strings.Index(line, "=")
	if idx < 0 {
		return "", "", false
	}
	return line[:idx], line[idx+1:], true
}

// parseSpeed converts an ffmpeg speed string ("1.00x", "N/A") to float64.
func parseSpeed(s string) float64 {
	s = strings.TrimSuffix(s, "x")
	if s == "N/A" || s == "" {
		return 0
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// OutTimeDuration returns the recorded media time.
func (u *ProgressUpdate) OutTimeDuration() time.Duration {
	return time.Duration(u.OutTimeUS) * time.Microsecond
}

// IsFallingBehind reports whether the encoder is slower than realtime,
// which for a live capture means frames are being dropped.
func (u *ProgressUpdate) IsFallingBehind() bool {
	// 0 means N/A (startup)
	if u.Speed == 0 {
		return false
	}
	return u.Speed < 0.9
}

// IsEnd returns true if this is the final progress update.
func (u *ProgressUpdate) IsEnd() bool {
	return u.Progress == "end"
}
