package logging

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength caps a stored stderr line. Longer lines are cut and
	// marked with truncatedSuffix.
	MaxLineLength = 4096

	// TailSize is how many stderr lines a handler keeps for the exit report.
	TailSize = 100

	truncatedSuffix = "...(truncated)"
)

// stderrRule matches a lowercased stderr line when it contains every
// substring in all. failure, when set, names the condition in Failures.
type stderrRule struct {
	all     []string
	level   slog.Level
	failure string
}

// First match wins.
var stderrRules = []stderrRule{
	{all: []string{"cannot open display"}, level: slog.LevelError, failure: "cannot open display"},
	{all: []string{"permission denied"}, level: slog.LevelError, failure: "permission denied"},
	{all: []string{"input/output error"}, level: slog.LevelError, failure: "input/output error"},
	{all: []string{"no such file or directory"}, level: slog.LevelError, failure: "no such file or directory"},
	{all: []string{"unknown encoder"}, level: slog.LevelError, failure: "unknown encoder"},
	{all: []string{"conversion failed"}, level: slog.LevelError, failure: "conversion failed"},
	{all: []string{"[error]"}, level: slog.LevelError},
	{all: []string{"error", "failed"}, level: slog.LevelError},
	{all: []string{"dropping frame"}, level: slog.LevelWarn, failure: "dropping frame"},
	{all: []string{"past duration"}, level: slog.LevelWarn},
	{all: []string{"[warning]"}, level: slog.LevelWarn},
}

func matchRule(line string) (stderrRule, bool) {
	lower := strings.ToLower(line)
	for _, r := range stderrRules {
		ok := true
		for _, s := range r.all {
			if !strings.Contains(lower, s) {
				ok = false
				break
			}
		}
		if ok {
			return r, true
		}
	}
	return stderrRule{}, false
}

// ClassifyLine returns the log level for one line of ffmpeg stderr.
// Status and banner lines are debug.
func ClassifyLine(line string) slog.Level {
	if r, ok := matchRule(line); ok {
		return r.level
	}
	return slog.LevelDebug
}

// StderrHandler logs the stderr of one recording and remembers its tail.
// Debug-level lines are only logged when verbose is set; every line is
// kept in the tail.
type StderrHandler struct {
	sessionID string
	logger    *slog.Logger
	verbose   bool

	mu       sync.Mutex
	tail     []string
	next     int
	failures map[string]int
}

// NewStderrHandler returns a handler tagging records with sessionID.
func NewStderrHandler(sessionID string, logger *slog.Logger, verbose bool) *StderrHandler {
	return &StderrHandler{
		sessionID: sessionID,
		logger:    logger,
		verbose:   verbose,
		tail:      make([]string, 0, TailSize),
		failures:  make(map[string]int),
	}
}

// HandleReader consumes r line by line until EOF. Lines longer than
// MaxLineLength are cut without aborting the read.
func (h *StderrHandler) HandleReader(r io.Reader) error {
	br := bufio.NewReaderSize(r, MaxLineLength)
	for {
		chunk, more, err := br.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		line := string(chunk)
		if more {
			line += truncatedSuffix
			for more && err == nil {
				_, more, err = br.ReadLine()
			}
		}
		h.record(line)

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// HandleLine processes a single stderr line.
func (h *StderrHandler) HandleLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + truncatedSuffix
	}
	h.record(line)
}

func (h *StderrHandler) record(line string) {
	if line == "" {
		return
	}

	rule, matched := matchRule(line)
	level := slog.LevelDebug
	if matched {
		level = rule.level
	}

	h.mu.Lock()
	if len(h.tail) < TailSize {
		h.tail = append(h.tail, line)
	} else {
		h.tail[h.next] = line
		h.next = (h.next + 1) % TailSize
	}
	if rule.failure != "" {
		h.failures[rule.failure]++
	}
	h.mu.Unlock()

	if level == slog.LevelDebug && !h.verbose {
		return
	}
	h.logger.Log(context.Background(), level, "ffmpeg_stderr",
		"session_id", h.sessionID,
		"line", line,
	)
}

// RecentLines returns up to n of the newest lines, oldest first.
func (h *StderrHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	size := len(h.tail)
	n = min(max(n, 0), size)

	out := make([]string, 0, n)
	for i := size - n; i < size; i++ {
		out = append(out, h.tail[(h.next+i)%size])
	}
	return out
}

// Failures counts known failure conditions seen over the whole recording,
// not only the retained tail.
func (h *StderrHandler) Failures() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]int, len(h.failures))
	for k, v := range h.failures {
		out[k] = v
	}
	return out
}
