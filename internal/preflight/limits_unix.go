//go:build unix

package preflight

import (
	"fmt"
	"syscall"
)

// minFileDescriptors covers ffmpeg pipes, the history database, the
// control server and the config watcher.
const minFileDescriptors = 64

// checkFileDescriptors verifies sufficient file descriptors are available.
func checkFileDescriptors() Check {
	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		return Check{
			Name:    "file_descriptors",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("unable to check: %v", err),
		}
	}

	cur := uint64(limit.Cur)
	if cur > 1<<31-1 {
		cur = 1<<31 - 1
	}
	actual := int(cur)

	return Check{
		Name:     "file_descriptors",
		Required: minFileDescriptors,
		Actual:   actual,
		Passed:   actual >= minFileDescriptors,
		Message:  fmt.Sprintf("ulimit -n %d (need %d)", actual, minFileDescriptors),
	}
}
