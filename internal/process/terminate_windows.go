//go:build windows

package process

import (
	"os/exec"
	"syscall"
)

// setProcAttr puts the child in a new process group.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// gracefulStop is a no-op: Windows has no signal a console-less child can
// be asked to honor. Terminate still waits the grace period so a capture
// that is already exiting can finish writing.
func gracefulStop(cmd *exec.Cmd) error {
	return nil
}

// forceKill terminates the process.
func forceKill(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
