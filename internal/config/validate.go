package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/process"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

const maxFrameRate = 240

var (
	validLogFormats = map[string]bool{"json": true, "text": true, "journal": true}
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

	validFFmpegLogLevels = map[string]bool{
		"quiet": true, "panic": true, "fatal": true, "error": true, "warning": true,
		"info": true, "verbose": true, "debug": true, "trace": true,
	}
)

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or every problem joined with errors.Join.
func Validate(cfg *Config) error {
	var errs []error

	if strings.TrimSpace(cfg.FFmpegPath) == "" {
		errs = append(errs, ValidationError{
			Field:   "ffmpeg_path",
			Message: "must not be empty",
		})
	}

	if _, err := process.ParsePlatform(cfg.Platform); err != nil {
		errs = append(errs, ValidationError{
			Field:   "platform",
			Message: fmt.Sprintf("must be one of: auto, darwin, windows, linux (got %q)", cfg.Platform),
		})
	}

	if cfg.FrameRate < 0 || cfg.FrameRate > maxFrameRate {
		errs = append(errs, ValidationError{
			Field:   "frame_rate",
			Message: fmt.Sprintf("must be between 0 and %d (got %d)", maxFrameRate, cfg.FrameRate),
		})
	}

	if !validFFmpegLogLevels[cfg.FFmpegLogLevel] {
		errs = append(errs, ValidationError{
			Field:   "ffmpeg_log_level",
			Message: fmt.Sprintf("unknown ffmpeg log level %q", cfg.FFmpegLogLevel),
		})
	}

	if cfg.GracePeriod <= 0 {
		errs = append(errs, ValidationError{
			Field:   "grace_period",
			Message: "must be positive",
		})
	}
	if cfg.KillTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "kill_timeout",
			Message: "must be positive",
		})
	}

	if cfg.ControlAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.ControlAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "control_addr",
				Message: fmt.Sprintf("must be host:port (got %q)", cfg.ControlAddr),
			})
		}
	}

	if !validLogFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json', 'text' or 'journal' (got %q)", cfg.LogFormat),
		})
	}
	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("must be debug, info, warn or error (got %q)", cfg.LogLevel),
		})
	}

	if cfg.WatchConfig && cfg.File == "" {
		errs = append(errs, ValidationError{
			Field:   "watch_config",
			Message: "requires a config file",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
