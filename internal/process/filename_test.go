package process

import (
	"path/filepath"
	"testing"
	"time"
)

func TestGenerateOutputPath(t *testing.T) {
	now := time.Unix(1700000000, 999_000_000)

	tests := []struct {
		name string
		dir  string
		want string
	}{
		{"bare", "", "recording_1700000000.mp4"},
		{"dir", "videos", filepath.Join("videos", "recording_1700000000.mp4")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateOutputPath(tt.dir, now)
			if got != tt.want {
				t.Errorf("GenerateOutputPath(%q) = %q, want %q", tt.dir, got, tt.want)
			}
			if !OutputNamePattern.MatchString(filepath.Base(got)) {
				t.Errorf("%q does not match %s", got, OutputNamePattern)
			}
		})
	}
}

func TestGenerateOutputPath_SameSecondCollides(t *testing.T) {
	a := GenerateOutputPath("", time.Unix(1700000000, 0))
	b := GenerateOutputPath("", time.Unix(1700000000, 500_000_000))
	if a != b {
		t.Errorf("names within one second differ: %q vs %q", a, b)
	}
}

func TestOutputNamePattern(t *testing.T) {
	tests := []struct {
		name  string
		match bool
	}{
		{"recording_1.mp4", true},
		{"recording_1700000000.mp4", true},
		{"recording_.mp4", false},
		{"recording_abc.mp4", false},
		{"recording_1.mkv", false},
		{"my_recording_1.mp4", false},
	}
	for _, tt := range tests {
		if got := OutputNamePattern.MatchString(tt.name); got != tt.match {
			t.Errorf("match(%q) = %v, want %v", tt.name, got, tt.match)
		}
	}
}
