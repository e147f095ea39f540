//go:build unix

package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/process"
)

// fakeFFmpeg writes a script answering -version, -devices and -encoders.
func fakeFFmpeg(t *testing.T, devices, encoders string) string {
	t.Helper()
	script := `#!/bin/sh
for a in "$@"; do
  case "$a" in
    -version) echo "ffmpeg version 7.1 Copyright (c) 2000-2024"; exit 0 ;;
    -devices) printf 'Devices:\n --\n D  ` + devices + `   capture\n'; exit 0 ;;
    -encoders) printf 'Encoders:\n ------\n V....D ` + encoders + `   encoder\n'; exit 0 ;;
  esac
done
exit 1
`
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunAll_FakeFFmpeg(t *testing.T) {
	tests := []struct {
		name      string
		devices   string
		encoders  string
		codec     string
		pass      bool
		failCheck string
	}{
		{"all present", "x11grab", "libx264", "", true, ""},
		{"device missing", "lavfi", "libx264", "", false, "input_format"},
		{"encoder missing", "x11grab", "libx264", "libx265", false, "encoder"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin := fakeFFmpeg(t, tt.devices, tt.encoders)
			result := RunAll(context.Background(), Options{
				FFmpegPath: bin,
				Capture: process.CaptureConfig{
					Platform:     process.PlatformLinux,
					Codec:        tt.codec,
					ScreenDevice: ":0.0",
				},
				OutputDir: t.TempDir(),
			})

			if c, _ := result.Get("ffmpeg"); !strings.Contains(c.Message, "version 7.1") {
				t.Errorf("ffmpeg check = %+v", c)
			}
			if tt.failCheck != "" {
				c, ok := result.Get(tt.failCheck)
				if !ok || c.Passed {
					t.Errorf("%s check = %+v, want failure", tt.failCheck, c)
				}
			}
			// file_descriptors depends on the host, so judge the rest.
			passed := true
			for _, c := range result.Checks {
				if c.Name != "file_descriptors" && !c.Passed {
					passed = false
				}
			}
			if passed != tt.pass {
				t.Errorf("passed = %v, want %v: %+v", passed, tt.pass, result.Checks)
			}
		})
	}
}
