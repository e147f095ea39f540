package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// =============================================================================
// Tests: Levels and formats
// =============================================================================

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"Warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"trace", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLevel(tt.in); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeFormat(t *testing.T) {
	tests := []struct {
		in       string
		fallback string
		want     string
	}{
		{"json", FormatText, FormatJSON},
		{"TEXT", FormatJSON, FormatText},
		{"Journal", FormatText, FormatJournal},
		{"", FormatJSON, FormatJSON},
		{"logfmt", FormatText, FormatText},
	}

	for _, tt := range tests {
		if got := normalizeFormat(tt.in, tt.fallback); got != tt.want {
			t.Errorf("normalizeFormat(%q, %q) = %q, want %q", tt.in, tt.fallback, got, tt.want)
		}
	}
}

func TestNewLogger_AllFormats(t *testing.T) {
	for _, format := range []string{"json", "text", "journal", "", "bogus"} {
		t.Run(format, func(t *testing.T) {
			if NewLogger(format, "info", false) == nil {
				t.Fatal("NewLogger returned nil")
			}
		})
	}
}

func TestNewLogger_VerboseEnablesDebug(t *testing.T) {
	logger := NewLogger("text", "error", true)
	if !logger.Enabled(t.Context(), slog.LevelDebug) {
		t.Error("verbose logger should be enabled at debug")
	}

	quiet := NewLogger("text", "error", false)
	if quiet.Enabled(t.Context(), slog.LevelWarn) {
		t.Error("error-level logger should not be enabled at warn")
	}
}

// =============================================================================
// Tests: NewLoggerWithWriter
// =============================================================================

func TestNewLoggerWithWriter_JSONRecord(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerWithWriter(&buf, "json", "info").Info("recording_started", "pid", 4242)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v: %s", err, buf.String())
	}
	if rec["msg"] != "recording_started" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec["pid"] != float64(4242) {
		t.Errorf("pid = %v", rec["pid"])
	}
}

func TestNewLoggerWithWriter_JournalWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerWithWriter(&buf, "journal", "info").Info("hello")

	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("journal format to a writer should be JSON, got %q", buf.String())
	}
}

func TestNewLoggerWithWriter_UnknownFormatIsText(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerWithWriter(&buf, "", "").Info("hello", "output", "rec.mp4")

	out := buf.String()
	if !strings.Contains(out, "output=rec.mp4") || strings.HasPrefix(out, "{") {
		t.Errorf("expected text output, got %q", out)
	}
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	tests := []struct {
		level   string
		visible []string
		hidden  []string
	}{
		{"debug", []string{"d-msg", "i-msg", "w-msg", "e-msg"}, nil},
		{"info", []string{"i-msg", "w-msg", "e-msg"}, []string{"d-msg"}},
		{"warn", []string{"w-msg", "e-msg"}, []string{"d-msg", "i-msg"}},
		{"error", []string{"e-msg"}, []string{"d-msg", "i-msg", "w-msg"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(&buf, "text", tt.level)
			logger.Debug("d-msg")
			logger.Info("i-msg")
			logger.Warn("w-msg")
			logger.Error("e-msg")

			out := buf.String()
			for _, m := range tt.visible {
				if !strings.Contains(out, m) {
					t.Errorf("%s missing at level %s", m, tt.level)
				}
			}
			for _, m := range tt.hidden {
				if strings.Contains(out, m) {
					t.Errorf("%s logged at level %s", m, tt.level)
				}
			}
		})
	}
}

func TestSetDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	SetDefault(NewLoggerWithWriter(&buf, "text", "info"))
	slog.Info("via default")

	if !strings.Contains(buf.String(), "via default") {
		t.Error("SetDefault did not install the logger")
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error("dropped")
	if logger.Enabled(t.Context(), slog.LevelDebug) {
		t.Error("Discard logger should not be enabled at debug")
	}
}
