package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// probeTimeout bounds the device listing when ctx has no deadline.
const probeTimeout = 5 * time.Second

// ErrNoScreenDevice is returned when the device list has no screen entry.
var ErrNoScreenDevice = errors.New("no screen capture device found")

// AVFoundation -list_devices prints lines such as:
//
//	[AVFoundation indev @ 0x7f9] AVFoundation video devices:
//	[AVFoundation indev @ 0x7f9] [0] FaceTime HD Camera
//	[AVFoundation indev @ 0x7f9] [1] Capture screen 0
//	[AVFoundation indev @ 0x7f9] AVFoundation audio devices:
//	[AVFoundation indev @ 0x7f9] [0] MacBook Pro Microphone
var avfDeviceLine = regexp.MustCompile(`\]\s*\[(\d+)\]\s+(.+)$`)

// ProbeScreenDevice lists AVFoundation devices and returns the index of the
// first screen. ffmpeg exits non-zero after listing, so only the output counts.
func ProbeScreenDevice(ctx context.Context, binaryPath string) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, probeTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, binaryPath,
		"-hide_banner",
		"-f", "avfoundation",
		"-list_devices", "true",
		"-i", "",
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return "", fmt.Errorf("device probe: %w", ctx.Err())
	}

	device, err := parseScreenDevice(out.String())
	if err != nil && runErr != nil {
		return "", fmt.Errorf("device probe: %w (ffmpeg: %v)", err, runErr)
	}
	return device, err
}

// parseScreenDevice returns the index of the first "Capture screen" video device.
func parseScreenDevice(output string) (string, error) {
	inVideo := false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.Contains(line, "AVFoundation video devices"):
			inVideo = true
			continue
		case strings.Contains(line, "AVFoundation audio devices"):
			inVideo = false
			continue
		}
		if !inVideo {
			continue
		}

		m := avfDeviceLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(m[2]), "Capture screen") {
			return m[1], nil
		}
	}
	return "", ErrNoScreenDevice
}
