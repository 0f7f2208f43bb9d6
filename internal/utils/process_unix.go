//go:build !windows

package utils

import (
	"errors"
	"os/exec"
	"syscall"
)

// SetNewPG puts the child in its own process group so a terminal Ctrl-C
// reaches only the keeper, which then stops its tunnels itself.
func SetNewPG(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// signalGroup signals the process group led by pid.
func signalGroup(pid int, force bool) error {
	sig := syscall.SIGTERM
	if force {
		sig = syscall.SIGKILL
	}
	err := syscall.Kill(-pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}
