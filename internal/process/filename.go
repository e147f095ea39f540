package process

import (
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

const (
	// OutputFilePrefix starts every generated recording name.
	OutputFilePrefix = "recording_"

	// OutputFileExt is the container extension of generated recordings.
	OutputFileExt = ".mp4"
)

// OutputNamePattern matches generated recording file names.
var OutputNamePattern = regexp.MustCompile(`^recording_\d+\.mp4$`)

// GenerateOutputPath names a recording after the Unix time in whole seconds
// and places it in dir. An empty dir yields a bare file name.
func GenerateOutputPath(dir string, now time.Time) string {
	name := OutputFilePrefix + strconv.FormatInt(now.Unix(), 10) + OutputFileExt
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}
