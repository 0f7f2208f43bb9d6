//go:build windows

package utils

import (
	"os/exec"
	"syscall"
)

// SetNewPG detaches the child from the console's Ctrl-C group.
func SetNewPG(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// Windows has no process group signals, the tree walk in TerminateTree covers it.
func signalGroup(pid int, force bool) error {
	return nil
}
