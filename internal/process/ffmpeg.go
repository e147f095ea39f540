// Package process launches and terminates the external ffmpeg capture process.
package process

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Platform selects the capture backend.
type Platform string

const (
	// PlatformDarwin captures through AVFoundation.
	PlatformDarwin Platform = "darwin"

	// PlatformWindows captures through GDI (gdigrab).
	PlatformWindows Platform = "windows"

	// PlatformLinux captures an X11 display (x11grab).
	PlatformLinux Platform = "linux"
)

// ErrUnsupportedPlatform is returned when no capture profile exists for a platform.
var ErrUnsupportedPlatform = errors.New("unsupported capture platform")

// CurrentPlatform returns the platform the binary was built for.
func CurrentPlatform() Platform {
	return Platform(runtime.GOOS)
}

// ParsePlatform maps a config value to a Platform. Empty or "auto" means
// the build platform.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return CurrentPlatform(), nil
	case "darwin", "macos":
		return PlatformDarwin, nil
	case "windows":
		return PlatformWindows, nil
	case "linux":
		return PlatformLinux, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedPlatform, s)
	}
}

// CaptureProfile is the fixed capture recipe for one platform.
type CaptureProfile struct {
	Format      string // ffmpeg input format (-f)
	Input       string // default capture source (-i)
	FrameRate   int
	Codec       string
	Preset      string
	PixelFormat string
}

// captureProfiles holds the per-platform argument tables.
var captureProfiles = map[Platform]CaptureProfile{
	PlatformDarwin: {
		Format:      "avfoundation",
		Input:       "4", // screen only, no audio device
		FrameRate:   15,
		Codec:       "libx264",
		Preset:      "ultrafast",
		PixelFormat: "yuv420p",
	},
	PlatformWindows: {
		Format:      "gdigrab",
		Input:       "desktop",
		FrameRate:   30,
		Codec:       "libx264",
		Preset:      "ultrafast",
		PixelFormat: "yuv420p",
	},
	PlatformLinux: {
		Format:      "x11grab",
		Input:       ":0.0",
		FrameRate:   30,
		Codec:       "libx264",
		Preset:      "ultrafast",
		PixelFormat: "yuv420p",
	},
}

// ProfileFor returns the capture profile for p.
func ProfileFor(p Platform) (CaptureProfile, error) {
	profile, ok := captureProfiles[p]
	if !ok {
		return CaptureProfile{}, fmt.Errorf("%w: %q", ErrUnsupportedPlatform, p)
	}
	return profile, nil
}

// ScreenDeviceAuto asks the launcher to probe for the screen device (darwin only).
const ScreenDeviceAuto = "auto"

// CaptureConfig holds the launch configuration for one recording.
// Zero values fall back to the platform profile.
type CaptureConfig struct {
	// BinaryPath is the path to the ffmpeg binary.
	BinaryPath string

	// Platform selects the capture profile.
	Platform Platform

	// FrameRate overrides the profile frame rate when > 0.
	FrameRate int

	// Codec, Preset and PixelFormat override the profile when non-empty.
	Codec       string
	Preset      string
	PixelFormat string

	// ScreenDevice overrides the capture source (-i). On darwin "auto"
	// probes the AVFoundation device list.
	ScreenDevice string

	// LogLevel is the ffmpeg -loglevel.
	LogLevel string

	// Progress enables -progress pipe:1 on stdout.
	Progress bool
}

// DefaultCaptureConfig returns a CaptureConfig for the build platform.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		BinaryPath: "ffmpeg",
		Platform:   CurrentPlatform(),
		LogLevel:   "info",
		Progress:   true,
	}
}

// BuildArgs returns the ffmpeg argument list that records the screen of
// cfg.Platform into outputPath.
func BuildArgs(cfg CaptureConfig, outputPath string) ([]string, error) {
	profile, err := ProfileFor(cfg.Platform)
	if err != nil {
		return nil, err
	}
	if outputPath == "" {
		return nil, errors.New("output path is required")
	}

	logLevel := cfg.LogLevel
	if logLevel == "" {
		logLevel = "info"
	}

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", logLevel,
	}

	if cfg.Progress {
		args = append(args, "-progress", "pipe:1", "-stats_period", "1")
	}

	// Input
	args = append(args,
		"-f", profile.Format,
		"-framerate", strconv.Itoa(pick(cfg.FrameRate, profile.FrameRate)),
		"-i", captureInput(cfg, profile),
	)

	// Encoding
	args = append(args,
		"-c:v", pickString(cfg.Codec, profile.Codec),
		"-preset", pickString(cfg.Preset, profile.Preset),
		"-pix_fmt", pickString(cfg.PixelFormat, profile.PixelFormat),
		"-an",
		"-movflags", "+faststart",
	)

	// -nostdin makes ffmpeg fail on an existing output instead of prompting.
	args = append(args, "-y", outputPath)

	return args, nil
}

// captureInput resolves the -i value.
func captureInput(cfg CaptureConfig, profile CaptureProfile) string {
	if cfg.ScreenDevice != "" && cfg.ScreenDevice != ScreenDeviceAuto {
		return cfg.ScreenDevice
	}
	if cfg.Platform == PlatformLinux {
		if display := os.Getenv("DISPLAY"); display != "" {
			return display
		}
	}
	return profile.Input
}

func pick(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func pickString(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// CommandString returns the command that would be executed (for debugging).
func CommandString(cfg CaptureConfig, outputPath string) (string, error) {
	args, err := BuildArgs(cfg, outputPath)
	if err != nil {
		return "", err
	}
	return cfg.BinaryPath + " " + strings.Join(args, " "), nil
}
