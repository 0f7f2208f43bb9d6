package utils

import (
	"errors"
	"fmt"
	"time"

	"kairo-keeper/internal/logger"

	"github.com/shirou/gopsutil/v4/process"
)

/**
 * Check whether a process exists
 * @param {int} pid - Process ID
 * @returns {bool} true if the process exists
 * @returns {error} Error from the OS process table query
 */
func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, nil
	}
	return process.PidExists(int32(pid))
}

// descendants returns every live descendant of pid, deepest first.
func descendants(pid int) []*process.Process {
	root, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil
	}
	var out []*process.Process
	var walk func(p *process.Process)
	walk = func(p *process.Process) {
		children, err := p.Children()
		if err != nil {
			if !errors.Is(err, process.ErrorNoChildren) {
				logger.Debugf("Failed to list children of PID %d: %v", p.Pid, err)
			}
			return
		}
		for _, c := range children {
			walk(c)
			out = append(out, c)
		}
	}
	walk(root)
	return out
}

func signalTree(pid int, tree []*process.Process, force bool) error {
	var errs []error
	if err := signalGroup(pid, force); err != nil {
		errs = append(errs, err)
	}
	for _, p := range tree {
		var err error
		if force {
			err = p.Kill()
		} else {
			err = p.Terminate()
		}
		if err != nil {
			if running, _ := p.IsRunning(); running {
				errs = append(errs, fmt.Errorf("PID %d: %w", p.Pid, err))
			}
		}
	}
	if root, err := process.NewProcess(int32(pid)); err == nil {
		if force {
			err = root.Kill()
		} else {
			err = root.Terminate()
		}
		if err != nil {
			if running, _ := root.IsRunning(); running {
				errs = append(errs, fmt.Errorf("PID %d: %w", pid, err))
			}
		}
	}
	return errors.Join(errs...)
}

/**
 * Terminate a process and all of its descendants
 * @param {int} pid - Root process ID
 * @param {<-chan struct{}} exited - Closed once the root process has been reaped
 * @param {time.Duration} timeout - Grace period before force-killing
 * @returns {error} Error when the tree could not be signalled or the root survived a force kill
 * @description
 * - Descendants are collected before signalling so reparented grandchildren are not lost
 * - Sends a graceful termination request to the tree, then waits up to timeout
 * - Force-kills whatever is still alive after the timeout
 * @example
 * err := utils.TerminateTree(cmd.Process.Pid, done, 3*time.Second)
 */
func TerminateTree(pid int, exited <-chan struct{}, timeout time.Duration) error {
	tree := descendants(pid)
	if err := signalTree(pid, tree, false); err != nil {
		logger.Debugf("Graceful termination of PID %d reported: %v", pid, err)
	}

	select {
	case <-exited:
		// the root is gone, make sure no child outlived it
		for _, p := range tree {
			if running, _ := p.IsRunning(); running {
				_ = p.Kill()
			}
		}
		return nil
	case <-time.After(timeout):
	}

	logger.Warnf("Process %d did not exit within %v, force killing", pid, timeout)
	tree = append(tree, descendants(pid)...)
	killErr := signalTree(pid, tree, true)

	select {
	case <-exited:
		return nil
	case <-time.After(timeout):
		if killErr != nil {
			return fmt.Errorf("failed to kill process %d: %w", pid, killErr)
		}
		return fmt.Errorf("process %d still running after force kill", pid)
	}
}
