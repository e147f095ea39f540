//go:build unix

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// setProcAttr starts the child in its own process group so the whole
// capture tree can be signaled at once.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// gracefulStop sends SIGTERM to the process group. ffmpeg finalizes the
// output (including the faststart moov relocation) on SIGTERM.
func gracefulStop(cmd *exec.Cmd) error {
	return signalGroup(cmd, syscall.SIGTERM)
}

// forceKill sends SIGKILL to the process group.
func forceKill(cmd *exec.Cmd) error {
	return signalGroup(cmd, syscall.SIGKILL)
}

func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return os.ErrProcessDone
	}

	pid := cmd.Process.Pid
	if pgid, err := syscall.Getpgid(pid); err == nil {
		if err := syscall.Kill(-pgid, sig); err != nil {
			if errors.Is(err, syscall.ESRCH) {
				return os.ErrProcessDone
			}
			return err
		}
		return nil
	}

	return cmd.Process.Signal(sig)
}
