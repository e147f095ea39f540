package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override, e.g. SCREENREC_OUTPUT_DIR.
const EnvPrefix = "SCREENREC_"

// setting ties one config key to its flag and environment variable.
type setting struct {
	key   string // TOML key
	flag  string
	usage string
	field func(*Config) any // *string, *int, *bool or *time.Duration
}

// settings lists every file/env/flag key in display order.
var settings = []setting{
	// FFmpeg / capture
	{"ffmpeg_path", "ffmpeg", "Path to FFmpeg binary", func(c *Config) any { return &c.FFmpegPath }},
	{"platform", "platform", `Capture platform: "auto", "darwin", "windows", "linux"`, func(c *Config) any { return &c.Platform }},
	{"output_dir", "output-dir", "Directory for generated recording names", func(c *Config) any { return &c.OutputDir }},
	{"frame_rate", "frame-rate", "Capture frame rate (0 = platform default)", func(c *Config) any { return &c.FrameRate }},
	{"codec", "codec", "Video codec override", func(c *Config) any { return &c.Codec }},
	{"preset", "preset", "Encoder preset override", func(c *Config) any { return &c.Preset }},
	{"pixel_format", "pixel-format", "Pixel format override", func(c *Config) any { return &c.PixelFormat }},
	{"screen_device", "screen-device", `Capture source override ("auto" probes AVFoundation on macOS)`, func(c *Config) any { return &c.ScreenDevice }},
	{"ffmpeg_log_level", "ffmpeg-loglevel", "FFmpeg -loglevel", func(c *Config) any { return &c.FFmpegLogLevel }},

	// Termination
	{"grace_period", "grace-period", "Wait after the graceful stop before force kill", func(c *Config) any { return &c.GracePeriod }},
	{"kill_timeout", "kill-timeout", "Wait for the OS to reap a force-killed process", func(c *Config) any { return &c.KillTimeout }},

	// Surfaces
	{"control_addr", "control-addr", `HTTP control and metrics address ("" = disabled)`, func(c *Config) any { return &c.ControlAddr }},
	{"history_db", "history-db", `SQLite recording history ("" = disabled)`, func(c *Config) any { return &c.HistoryDB }},

	// Observability
	{"log_format", "log-format", `Log format: "json", "text" or "journal"`, func(c *Config) any { return &c.LogFormat }},
	{"log_level", "log-level", `Log level: "debug", "info", "warn", "error"`, func(c *Config) any { return &c.LogLevel }},
	{"log_file", "log-file", "Write logs to this file (TUI mode discards logs otherwise)", func(c *Config) any { return &c.LogFile }},
	{"verbose", "verbose", "Verbose logging, including every ffmpeg stderr line", func(c *Config) any { return &c.Verbose }},

	// Console
	{"tui", "tui", "Enable the terminal console (use --tui=false to disable)", func(c *Config) any { return &c.TUI }},
	{"watch_config", "watch-config", "Reload capture settings when the config file changes", func(c *Config) any { return &c.WatchConfig }},
}

// lookupKey returns the setting for a TOML key.
func lookupKey(key string) (setting, bool) {
	for _, s := range settings {
		if s.key == key {
			return s, true
		}
	}
	return setting{}, false
}

// envName returns the environment variable for a key.
func envName(key string) string {
	return EnvPrefix + strings.ToUpper(key)
}

// BindFlags registers a flag for every setting on fs, plus --config.
// Flag defaults come from DefaultConfig.
func BindFlags(fs *pflag.FlagSet) {
	defaults := DefaultConfig()

	fs.StringP("config", "c", DefaultFile, "Path to TOML config file")

	for _, s := range settings {
		switch p := s.field(defaults).(type) {
		case *string:
			fs.String(s.flag, *p, s.usage)
		case *int:
			fs.Int(s.flag, *p, s.usage)
		case *bool:
			fs.Bool(s.flag, *p, s.usage)
		case *time.Duration:
			fs.Duration(s.flag, *p, s.usage)
		}
	}

	fs.Lookup("verbose").Shorthand = "v"
}

// setString assigns a textual value to one setting.
func (s setting) setString(cfg *Config, value string) error {
	switch p := s.field(cfg).(type) {
	case *string:
		*p = value
	case *int:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", s.key, value)
		}
		*p = n
	case *bool:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: invalid boolean %q", s.key, value)
		}
		*p = b
	case *time.Duration:
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q", s.key, value)
		}
		*p = d
	}
	return nil
}

// setValue assigns a decoded TOML value to one setting.
func (s setting) setValue(cfg *Config, value any) error {
	switch p := s.field(cfg).(type) {
	case *string:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s: expected string, got %T", s.key, value)
		}
		*p = v
	case *int:
		v, ok := value.(int64)
		if !ok {
			return fmt.Errorf("%s: expected integer, got %T", s.key, value)
		}
		*p = int(v)
	case *bool:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%s: expected boolean, got %T", s.key, value)
		}
		*p = v
	case *time.Duration:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s: expected duration string like \"500ms\", got %T", s.key, value)
		}
		return s.setString(cfg, v)
	}
	return nil
}
