// Package logging builds the slog loggers used by screenrec and turns the
// capture process's stderr into log records.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Output formats accepted by NewLogger.
const (
	FormatJSON    = "json"
	FormatText    = "text"
	FormatJournal = "journal"
)

// NewLogger returns a logger writing to stderr, or to the systemd journal
// when format is "journal" and journald is reachable. Unknown formats
// produce JSON. verbose forces debug level.
func NewLogger(format, level string, verbose bool) *slog.Logger {
	lvl := parseLevel(level)
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(newHandler(os.Stderr, normalizeFormat(format, FormatJSON), lvl))
}

// NewLoggerWithWriter returns a logger writing to w. It never talks to
// journald; "journal" is written as JSON and unknown formats as text.
func NewLoggerWithWriter(w io.Writer, format, level string) *slog.Logger {
	f := normalizeFormat(format, FormatText)
	if f == FormatJournal {
		f = FormatJSON
	}
	return slog.New(newHandler(w, f, parseLevel(level)))
}

func normalizeFormat(format, fallback string) string {
	switch f := strings.ToLower(format); f {
	case FormatJSON, FormatText, FormatJournal:
		return f
	default:
		return fallback
	}
}

func newHandler(w io.Writer, format string, lvl slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl <= slog.LevelDebug,
	}

	switch format {
	case FormatJournal:
		if journalAvailable() {
			return NewJournalHandler(lvl)
		}
		return slog.NewTextHandler(w, opts)
	case FormatText:
		return slog.NewTextHandler(w, opts)
	default:
		return slog.NewJSONHandler(w, opts)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetDefault installs logger as the slog package default.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
