// Package config provides configuration management for screenrec.
package config

import (
	"time"

	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/process"
)

// DefaultFile is the config file read when --config is not given.
// A missing default file is not an error.
const DefaultFile = "screenrec.toml"

// Config holds all configuration options for the recorder.
type Config struct {
	// FFmpeg / capture
	FFmpegPath     string `toml:"ffmpeg_path"`
	Platform       string `toml:"platform"` // auto, darwin, windows, linux
	OutputDir      string `toml:"output_dir"`
	FrameRate      int    `toml:"frame_rate"` // 0 = profile default
	Codec          string `toml:"codec"`
	Preset         string `toml:"preset"`
	PixelFormat    string `toml:"pixel_format"`
	ScreenDevice   string `toml:"screen_device"` // "" = profile default, "auto" = probe (darwin)
	FFmpegLogLevel string `toml:"ffmpeg_log_level"`

	// Termination
	GracePeriod time.Duration `toml:"grace_period"`
	KillTimeout time.Duration `toml:"kill_timeout"`

	// Surfaces
	ControlAddr string `toml:"control_addr"` // "" = disabled
	HistoryDB   string `toml:"history_db"`   // "" = disabled

	// Observability
	LogFormat string `toml:"log_format"` // json, text, journal
	LogLevel  string `toml:"log_level"`
	LogFile   string `toml:"log_file"`
	Verbose   bool   `toml:"verbose"`

	// Console
	TUI         bool `toml:"tui"`
	WatchConfig bool `toml:"watch_config"`

	// File is the config file the values were loaded from, if any.
	File string `toml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// FFmpeg / capture
		FFmpegPath:     "ffmpeg",
		Platform:       "auto",
		OutputDir:      ".",
		FFmpegLogLevel: "info",

		// Termination
		GracePeriod: process.DefaultGracePeriod,
		KillTimeout: process.DefaultKillTimeout,

		// Surfaces
		ControlAddr: "127.0.0.1:17092",
		HistoryDB:   "screenrec.db",

		// Observability
		LogFormat: "json",
		LogLevel:  "info",

		// Console
		TUI:         true,
		WatchConfig: false,
	}
}

// Capture returns the launch configuration for the next recording.
// Validate must have accepted the config.
func (c *Config) Capture() process.CaptureConfig {
	platform, err := process.ParsePlatform(c.Platform)
	if err != nil {
		platform = process.CurrentPlatform()
	}
	return process.CaptureConfig{
		BinaryPath:   c.FFmpegPath,
		Platform:     platform,
		FrameRate:    c.FrameRate,
		Codec:        c.Codec,
		Preset:       c.Preset,
		PixelFormat:  c.PixelFormat,
		ScreenDevice: c.ScreenDevice,
		LogLevel:     c.FFmpegLogLevel,
		Progress:     true,
	}
}
