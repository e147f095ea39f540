// Package preflight provides startup validation checks.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/process"
)

// probeTimeout bounds each ffmpeg invocation.
const probeTimeout = 5 * time.Second

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// Options selects what RunAll verifies.
type Options struct {
	FFmpegPath string
	Capture    process.CaptureConfig
	OutputDir  string
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

func (r *Result) add(c Check) {
	r.Checks = append(r.Checks, c)
	if !c.Passed {
		r.Passed = false
	}
}

// Get returns the named check.
func (r *Result) Get(name string) (Check, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return Check{}, false
}

// RunAll executes all preflight checks.
func RunAll(ctx context.Context, opts Options) *Result {
	result := &Result{
		Checks: make([]Check, 0, 6),
		Passed: true,
	}

	ffmpegPath := opts.FFmpegPath
	if ffmpegPath == "" {
		ffmpegPath = opts.Capture.BinaryPath
	}

	result.add(checkPlatform(opts.Capture.Platform))

	ffmpegCheck := checkFFmpeg(ctx, ffmpegPath)
	result.add(ffmpegCheck)

	// Capabilities can only be probed with a working binary.
	if ffmpegCheck.Passed {
		if profile, err := process.ProfileFor(opts.Capture.Platform); err == nil {
			result.add(checkInputFormat(ctx, ffmpegPath, profile.Format))
			codec := opts.Capture.Codec
			if codec == "" {
				codec = profile.Codec
			}
			result.add(checkEncoder(ctx, ffmpegPath, codec))
		}
	}

	if opts.Capture.Platform == process.PlatformLinux {
		result.add(checkDisplay(opts.Capture.ScreenDevice))
	}

	result.add(checkOutputDir(opts.OutputDir))
	result.add(checkFileDescriptors())

	return result
}

// checkPlatform verifies a capture profile exists for the platform.
func checkPlatform(p process.Platform) Check {
	profile, err := process.ProfileFor(p)
	if err != nil {
		return Check{
			Name:    "platform",
			Passed:  false,
			Message: err.Error(),
		}
	}
	return Check{
		Name:    "platform",
		Passed:  true,
		Message: fmt.Sprintf("%s (%s, %d fps)", p, profile.Format, profile.FrameRate),
	}
}

// checkFFmpeg verifies FFmpeg is available and working.
func checkFFmpeg(ctx context.Context, path string) Check {
	output, err := runFFmpeg(ctx, path, "-version")
	if err != nil {
		return Check{
			Name:    "ffmpeg",
			Passed:  false,
			Message: fmt.Sprintf("not found at %s: %v", path, err),
		}
	}

	return Check{
		Name:    "ffmpeg",
		Passed:  true,
		Message: fmt.Sprintf("found at %s (version %s)", path, parseVersion(output)),
	}
}

// parseVersion extracts the version from "ffmpeg version 6.1 Copyright ...".
func parseVersion(output string) string {
	first, _, _ := strings.Cut(output, "\n")
	parts := strings.Fields(first)
	if len(parts) >= 3 && parts[1] == "version" {
		return parts[2]
	}
	return "unknown"
}

// checkInputFormat verifies ffmpeg was built with the capture device.
func checkInputFormat(ctx context.Context, path, format string) Check {
	output, err := runFFmpeg(ctx, path, "-hide_banner", "-devices")
	if err != nil {
		return Check{
			Name:    "input_format",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("unable to list devices: %v", err),
		}
	}
	if !listsName(output, format) {
		return Check{
			Name:    "input_format",
			Passed:  false,
			Message: fmt.Sprintf("%s not supported by this ffmpeg build", format),
		}
	}
	return Check{
		Name:    "input_format",
		Passed:  true,
		Message: format,
	}
}

// checkEncoder verifies ffmpeg was built with the video encoder.
func checkEncoder(ctx context.Context, path, codec string) Check {
	output, err := runFFmpeg(ctx, path, "-hide_banner", "-encoders")
	if err != nil {
		return Check{
			Name:    "encoder",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("unable to list encoders: %v", err),
		}
	}
	if !listsName(output, codec) {
		return Check{
			Name:    "encoder",
			Passed:  false,
			Message: fmt.Sprintf("%s not supported by this ffmpeg build", codec),
		}
	}
	return Check{
		Name:    "encoder",
		Passed:  true,
		Message: codec,
	}
}

// listsName reports whether an ffmpeg -devices / -encoders table has a
// row naming name. Rows look like " D  x11grab   X11 screen capture".
func listsName(output, name string) bool {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == name {
			return true
		}
	}
	return false
}

// checkDisplay warns when x11grab has no display to capture.
func checkDisplay(screenDevice string) Check {
	if screenDevice != "" {
		return Check{
			Name:    "display",
			Passed:  true,
			Message: fmt.Sprintf("%s (configured)", screenDevice),
		}
	}
	if d := os.Getenv("DISPLAY"); d != "" {
		return Check{
			Name:    "display",
			Passed:  true,
			Message: fmt.Sprintf("%s (from DISPLAY)", d),
		}
	}
	return Check{
		Name:    "display",
		Passed:  true,
		Warning: true,
		Message: "DISPLAY not set, using :0.0",
	}
}

// checkOutputDir verifies recordings can be written to dir.
func checkOutputDir(dir string) Check {
	if dir == "" {
		dir = "."
	}
	info, err := os.Stat(dir)
	if err != nil {
		return Check{
			Name:    "output_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s: %v", dir, err),
		}
	}
	if !info.IsDir() {
		return Check{
			Name:    "output_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s is not a directory", dir),
		}
	}

	f, err := os.CreateTemp(dir, ".screenrec-preflight-*")
	if err != nil {
		return Check{
			Name:    "output_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s not writable: %v", dir, err),
		}
	}
	name := f.Name()
	f.Close()
	os.Remove(name)

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return Check{
		Name:    "output_dir",
		Passed:  true,
		Message: fmt.Sprintf("%s writable", abs),
	}
}

func runFFmpeg(ctx context.Context, path string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, args...).Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("timed out after %v", probeTimeout)
		}
		return "", err
	}
	return string(out), nil
}

// PrintResults writes the preflight check results to w.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "file_descriptors":
		return "ulimit -n 1024 (or edit /etc/security/limits.conf)"
	case "ffmpeg":
		return "install ffmpeg (apt install ffmpeg / brew install ffmpeg) or set ffmpeg_path"
	case "platform":
		return "set platform to darwin, windows or linux"
	case "input_format", "encoder":
		return "install a full ffmpeg build or override codec"
	case "output_dir":
		return "create the directory or set output_dir to a writable path"
	default:
		return "see documentation"
	}
}
