package services

import (
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"kairo-keeper/internal/logger"
	"kairo-keeper/internal/models"
	"kairo-keeper/internal/utils"
)

/**
 * ProcessInstance wraps one child process
 * @property {string} Title - Display name used in logs
 * @property {string} Command - Executable path
 * @property {[]string} Args - Command arguments
 * @property {string} WorkDir - Working directory, inherited when empty
 * @property {models.RunStatus} Status - running/exited/error/stopped
 * @property {time.Time} StartTime - Start time
 * @property {time.Time} LastExitTime - Exit time
 * @property {string} LastExitReason - Why the process ended
 */
type ProcessInstance struct {
	Title          string
	Command        string
	Args           []string
	WorkDir        string
	Status         models.RunStatus
	StartTime      time.Time
	LastExitTime   time.Time
	LastExitReason string
	stdout         io.Writer
	stderr         io.Writer
	onExited       func(*ProcessInstance) // called once after the process has been reaped
	cmd            *exec.Cmd
	done           chan struct{}
	terminate      func(pid int, exited <-chan struct{}, timeout time.Duration) error
	mutex          sync.Mutex
}

/**
 * NewProcessInstance creates a process instance that is not started yet
 * @param {string} title - Display name
 * @param {string} command - Executable path
 * @param {[]string} args - Command arguments
 * @returns {*ProcessInstance} New instance in exited state
 */
func NewProcessInstance(title, command string, args []string) *ProcessInstance {
	return &ProcessInstance{
		Title:   title,
		Command: command,
		Args:    args,
		Status:    models.StatusExited,
		terminate: utils.TerminateTree,
	}
}

// SetOutput attaches writers for stdout and stderr. Writers with a Flush()
// method are flushed once the process has exited.
func (pi *ProcessInstance) SetOutput(stdout, stderr io.Writer) {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	pi.stdout = stdout
	pi.stderr = stderr
}

func (pi *ProcessInstance) OnExited(fn func(*ProcessInstance)) {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	pi.onExited = fn
}

func (pi *ProcessInstance) Pid() int {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	return pi.pid()
}

func (pi *ProcessInstance) pid() int {
	if pi.cmd == nil || pi.cmd.Process == nil {
		return 0
	}
	return pi.cmd.Process.Pid
}

// Done is closed once the process has been reaped.
func (pi *ProcessInstance) Done() <-chan struct{} {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	return pi.done
}

func (pi *ProcessInstance) GetDetail() models.ProcessDetail {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	return models.ProcessDetail{
		Title:          pi.Title,
		Command:        pi.Command,
		Args:           pi.Args,
		Pid:            pi.pid(),
		Status:         pi.Status,
		StartTime:      pi.StartTime,
		LastExitTime:   pi.LastExitTime,
		LastExitReason: pi.LastExitReason,
	}
}

/**
 * StartProcess launches the process and a watcher goroutine
 * @returns {error} Error if the process could not be spawned
 * @description
 * - The child gets its own process group
 * - stdout/stderr go to the writers set by SetOutput
 * - The watcher reaps the child, updates status and calls the exit callback
 */
func (pi *ProcessInstance) StartProcess() error {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	if pi.Status == models.StatusRunning {
		return nil
	}
	logger.Debugf("Executing command: %s %s", pi.Command, strings.Join(redactArgs(pi.Args), " "))

	cmd := exec.Command(pi.Command, pi.Args...)
	if pi.WorkDir != "" {
		cmd.Dir = pi.WorkDir
	}
	cmd.Stdout = pi.stdout
	cmd.Stderr = pi.stderr
	// don't let grandchildren holding the pipes block Wait forever
	cmd.WaitDelay = 2 * time.Second
	utils.SetNewPG(cmd)

	if err := cmd.Start(); err != nil {
		pi.Status = models.StatusError
		pi.LastExitReason = fmt.Sprintf("start failed: %v", err)
		logger.Errorf("Failed to start process '%s', error: %v", pi.Title, err)
		return err
	}

	pi.cmd = cmd
	pi.done = make(chan struct{})
	pi.Status = models.StatusRunning
	pi.StartTime = time.Now()
	pi.LastExitReason = ""

	logger.Infof("Process '%s' started (PID: %d)", pi.Title, pi.pid())
	go pi.watchProcess(cmd, pi.done)
	return nil
}

/**
 * StopProcess terminates the process tree
 * @param {time.Duration} timeout - Grace period before force-killing
 * @returns {error} Error if the process could not be confirmed dead
 * @description
 * - Marks the instance stopped first so the watcher reports the right reason
 * - Blocks until the process has been reaped or the kill failed
 */
func (pi *ProcessInstance) StopProcess(timeout time.Duration) error {
	pi.mutex.Lock()
	if pi.Status != models.StatusRunning {
		pi.mutex.Unlock()
		return nil
	}
	pi.Status = models.StatusStopped
	pi.LastExitReason = "stopped by request"
	pid := pi.pid()
	done := pi.done
	terminate := pi.terminate
	pi.mutex.Unlock()

	if err := terminate(pid, done, timeout); err != nil {
		logger.Errorf("Failed to stop process '%s' (PID: %d): %v", pi.Title, pid, err)
		return err
	}
	logger.Infof("Process '%s' (PID: %d) stopped", pi.Title, pid)
	return nil
}

func (pi *ProcessInstance) watchProcess(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()

	for _, w := range []io.Writer{cmd.Stdout, cmd.Stderr} {
		if f, ok := w.(interface{ Flush() }); ok {
			f.Flush()
		}
	}

	pi.mutex.Lock()
	pi.LastExitTime = time.Now()
	pid := cmd.Process.Pid
	switch {
	case pi.Status == models.StatusStopped:
		logger.Infof("Process '%s' (PID: %d) stopped by request", pi.Title, pid)
	case err != nil:
		logger.Warnf("Process '%s' (PID: %d) exited with error: %v", pi.Title, pid, err)
		pi.LastExitReason = fmt.Sprintf("exited with error: %v", err)
		pi.Status = models.StatusError
	default:
		logger.Infof("Process '%s' (PID: %d) exited normally", pi.Title, pid)
		pi.LastExitReason = "exited normally"
		pi.Status = models.StatusExited
	}
	onExited := pi.onExited
	pi.mutex.Unlock()

	close(done)
	if onExited != nil {
		onExited(pi)
	}
}

// redactArgs hides the value following -u so tokens never reach the logs.
func redactArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == "-u" {
			out[i+1] = "******"
		}
	}
	return out
}
