package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
)

// syslogIdentifier tags every journal entry written by screenrec.
const syslogIdentifier = "screenrec"

// JournalHandler is a slog.Handler that sends records to the systemd journal.
type JournalHandler struct {
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

// NewJournalHandler creates a journal handler that drops records below level.
func NewJournalHandler(level slog.Level) *JournalHandler {
	return &JournalHandler{level: level}
}

// journalAvailable reports whether the journald socket can be reached.
func journalAvailable() bool {
	return journal.Enabled()
}

// Enabled reports whether the handler handles records at the given level.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle sends the log record to the journal.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	fields := map[string]string{
		"SYSLOG_IDENTIFIER": syslogIdentifier,
	}
	for _, attr := range h.attrs {
		addAttrToFields(fields, attr, h.groups)
	}
	r.Attrs(func(attr slog.Attr) bool {
		addAttrToFields(fields, attr, h.groups)
		return true
	})

	if err := journal.Send(r.Message, mapLevelToPriority(r.Level), fields); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s %s\n", r.Level, r.Message, err)
		return nil
	}
	return nil
}

// WithAttrs returns a handler carrying attrs on every record.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

// WithGroup returns a handler that prefixes subsequent keys with name.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(append([]string(nil), h.groups...), name)
	return &next
}

func mapLevelToPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// addAttrToFields flattens an attr into journal field form (UPPER_SNAKE keys).
func addAttrToFields(fields map[string]string, attr slog.Attr, groups []string) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	if attr.Value.Kind() == slog.KindGroup {
		sub := groups
		if attr.Key != "" {
			sub = append(append([]string(nil), groups...), attr.Key)
		}
		for _, a := range attr.Value.Group() {
			addAttrToFields(fields, a, sub)
		}
		return
	}

	fields[journalKey(groups, attr.Key)] = attr.Value.String()
}

// journalKey builds a valid journal field name: uppercase letters, digits
// and underscores, not starting with an underscore.
func journalKey(groups []string, key string) string {
	parts := append(append([]string(nil), groups...), key)
	raw := strings.ToUpper(strings.Join(parts, "_"))

	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.TrimLeft(b.String(), "_")
}
