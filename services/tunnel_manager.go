package services

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"kairo-keeper/internal/logger"
	"kairo-keeper/internal/models"

	"golang.org/x/sync/errgroup"
)

const DefaultStopTimeout = 3 * time.Second

// TunnelManagerOptions configures a TunnelManager.
type TunnelManagerOptions struct {
	StopTimeout time.Duration // grace period before force kill, DefaultStopTimeout when zero
	IdFlag      string        // "-p" (default) or "-t"
	Sink        LogSink       // receives client output, discarded when nil
}

type tunnelInstance struct {
	id     int
	binary string
	proc   *ProcessInstance
	exited bool // the client died before Start committed the record, guarded by tm.mu
}

/**
 * TunnelManager supervises tunnel client processes, one per tunnel id
 * @description
 * - The process table is guarded by a single mutex, never held across fork/exec
 * - An id being spawned is reserved in starting, so a second Start for it fails fast
 * - A record is removed exactly once, by Stop or by the exit watcher,
 *   and only the remover emits the Stopped notification
 * - Observers are called outside the lock, in registration order
 */
type TunnelManager struct {
	mu          sync.Mutex
	tunnels     map[int]*tunnelInstance
	starting    map[int]*tunnelInstance
	obsMu       sync.Mutex
	onExit      []func(int)
	onEvent     []func(models.TunnelEvent)
	sink        LogSink
	stopTimeout time.Duration
	idFlag      string
}

/**
 * Create a tunnel manager
 * @param {TunnelManagerOptions} opts - Manager options
 * @returns {*TunnelManager} New manager with an empty process table
 * @example
 * tm := services.NewTunnelManager(services.TunnelManagerOptions{Sink: services.NewTunnelLogBuffer(0)})
 * pid, err := tm.Start(42, "/home/me/.config/kairo/bin/frpc", token)
 */
func NewTunnelManager(opts TunnelManagerOptions) *TunnelManager {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.IdFlag != "-t" {
		opts.IdFlag = "-p"
	}
	return &TunnelManager{
		tunnels:     make(map[int]*tunnelInstance),
		starting:    make(map[int]*tunnelInstance),
		sink:        opts.Sink,
		stopTimeout: opts.StopTimeout,
		idFlag:      opts.IdFlag,
	}
}

// OnExit registers a callback for every Stopped notification.
func (tm *TunnelManager) OnExit(fn func(tunnelId int)) {
	tm.obsMu.Lock()
	defer tm.obsMu.Unlock()
	tm.onExit = append(tm.onExit, fn)
}

// OnEvent registers a callback for Started and Stopped notifications.
func (tm *TunnelManager) OnEvent(fn func(models.TunnelEvent)) {
	tm.obsMu.Lock()
	defer tm.obsMu.Unlock()
	tm.onEvent = append(tm.onEvent, fn)
}

func (tm *TunnelManager) IsRunning(tunnelId int) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	_, ok := tm.tunnels[tunnelId]
	return ok
}

// validateBinary checks that path names an existing executable regular file.
func validateBinary(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", models.ErrInvalidBinaryPath)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidBinaryPath, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", models.ErrInvalidBinaryPath, path)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0111 == 0 {
		return fmt.Errorf("%w: %s is not executable", models.ErrInvalidBinaryPath, path)
	}
	return nil
}

/**
 * Start a tunnel client
 * @param {int} tunnelId - Tunnel id
 * @param {string} binaryPath - Tunnel client executable
 * @param {string} token - Authentication token
 * @returns {int} PID of the spawned client
 * @returns {error} ErrInvalidBinaryPath, ErrAlreadyRunning or ErrProcessStartFailed
 * @description
 * - The client runs as "<binary> -u <token> -p <id>" (or -t with IdFlag "-t")
 * - Output lines go to the log sink tagged with the tunnel id and stream
 * - On failure no record is left behind
 */
func (tm *TunnelManager) Start(tunnelId int, binaryPath, token string) (int, error) {
	if err := validateBinary(binaryPath); err != nil {
		return 0, err
	}

	args := []string{"-u", token, tm.idFlag, strconv.Itoa(tunnelId)}
	proc := NewProcessInstance(fmt.Sprintf("tunnel-%d", tunnelId), binaryPath, args)
	if tm.sink != nil {
		proc.SetOutput(newLineWriter(tm.sink, tunnelId, models.StreamInfo),
			newLineWriter(tm.sink, tunnelId, models.StreamError))
	}
	ti := &tunnelInstance{id: tunnelId, binary: binaryPath, proc: proc}
	proc.OnExited(func(*ProcessInstance) { tm.handleExit(ti) })

	tm.mu.Lock()
	_, running := tm.tunnels[tunnelId]
	_, pending := tm.starting[tunnelId]
	if running || pending {
		tm.mu.Unlock()
		return 0, fmt.Errorf("%w: tunnel %d", models.ErrAlreadyRunning, tunnelId)
	}
	tm.starting[tunnelId] = ti
	tm.mu.Unlock()

	startErr := proc.StartProcess()

	tm.mu.Lock()
	delete(tm.starting, tunnelId)
	if startErr != nil {
		tm.mu.Unlock()
		return 0, fmt.Errorf("%w: %v", models.ErrProcessStartFailed, startErr)
	}
	exitedEarly := ti.exited
	if !exitedEarly {
		tm.tunnels[tunnelId] = ti
	}
	count := len(tm.tunnels)
	pid := proc.Pid()
	tm.mu.Unlock()

	SetTunnelsRunning(count)
	RecordTunnelEvent(string(models.TunnelStarted))
	logger.Infof("Successfully started tunnel %d, process: %s (PID: %d)", tunnelId, binaryPath, pid)
	tm.notify(models.TunnelEvent{Kind: models.TunnelStarted, TunnelId: tunnelId, Pid: pid, Time: time.Now()})
	if exitedEarly {
		tm.notifyExited(ti)
	}
	return pid, nil
}

// remove deletes the record only if it is still ti. Returns whether this call removed it.
func (tm *TunnelManager) remove(ti *tunnelInstance) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if cur, ok := tm.tunnels[ti.id]; !ok || cur != ti {
		return false
	}
	delete(tm.tunnels, ti.id)
	SetTunnelsRunning(len(tm.tunnels))
	return true
}

func (tm *TunnelManager) handleExit(ti *tunnelInstance) {
	tm.mu.Lock()
	if tm.starting[ti.id] == ti {
		// Start has not committed yet, it reports the exit itself
		ti.exited = true
		tm.mu.Unlock()
		return
	}
	tm.mu.Unlock()

	if !tm.remove(ti) {
		return
	}
	tm.notifyExited(ti)
}

func (tm *TunnelManager) notifyExited(ti *tunnelInstance) {
	detail := ti.proc.GetDetail()
	logger.Infof("Tunnel %d (PID: %d) %s", ti.id, detail.Pid, detail.LastExitReason)
	RecordTunnelEvent(string(models.ReasonExited))
	tm.notify(models.TunnelEvent{
		Kind:     models.TunnelStopped,
		TunnelId: ti.id,
		Pid:      detail.Pid,
		Reason:   models.ReasonExited,
		Time:     time.Now(),
	})
}

/**
 * Stop a tunnel
 * @param {int} tunnelId - Tunnel id
 * @returns {bool} false when no such tunnel was running
 * @description
 * - Removes the record first, then terminates the process tree,
 *   waiting StopTimeout before force-killing
 * - A tunnel that is still being spawned is not running yet and yields false
 * - If the client could not be killed the Stopped event carries the error
 */
func (tm *TunnelManager) Stop(tunnelId int) bool {
	found, err := tm.stopTunnel(tunnelId)
	if err != nil {
		logger.Errorf("Tunnel %d removed but its process may still be alive: %v", tunnelId, err)
	}
	return found
}

func (tm *TunnelManager) stopTunnel(tunnelId int) (bool, error) {
	tm.mu.Lock()
	ti, ok := tm.tunnels[tunnelId]
	if ok {
		delete(tm.tunnels, tunnelId)
	}
	running := len(tm.tunnels)
	tm.mu.Unlock()
	if !ok {
		return false, nil
	}
	SetTunnelsRunning(running)

	pid := ti.proc.Pid()
	ev := models.TunnelEvent{
		Kind:     models.TunnelStopped,
		TunnelId: tunnelId,
		Pid:      pid,
		Reason:   models.ReasonStopped,
	}
	err := ti.proc.StopProcess(tm.stopTimeout)
	if err != nil {
		ev.Error = err.Error()
		RecordTunnelEvent("stop_failed")
	} else {
		logger.Infof("Tunnel %d (PID: %d) stopped", tunnelId, pid)
	}
	RecordTunnelEvent(string(models.ReasonStopped))
	ev.Time = time.Now()
	tm.notify(ev)
	return true, err
}

/**
 * Stop every running tunnel
 * @returns {int} Number of tunnels stopped successfully
 * @description
 * - Tunnels are stopped in parallel; a failure is logged and does not abort the sweep
 */
func (tm *TunnelManager) StopAll() int {
	tm.mu.Lock()
	ids := make([]int, 0, len(tm.tunnels))
	for id := range tm.tunnels {
		ids = append(ids, id)
	}
	tm.mu.Unlock()

	var stopped atomic.Int64
	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() error {
			found, err := tm.stopTunnel(id)
			if err != nil {
				logger.Errorf("Failed to stop tunnel %d: %v", id, err)
				return nil
			}
			if found {
				stopped.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	n := int(stopped.Load())
	if len(ids) > 0 {
		logger.Infof("Stopped %d of %d tunnels", n, len(ids))
	}
	return n
}

// List returns the running tunnels ordered by id.
func (tm *TunnelManager) List() []models.TunnelRecord {
	tm.mu.Lock()
	instances := make([]*tunnelInstance, 0, len(tm.tunnels))
	for _, ti := range tm.tunnels {
		instances = append(instances, ti)
	}
	tm.mu.Unlock()

	records := make([]models.TunnelRecord, 0, len(instances))
	for _, ti := range instances {
		records = append(records, ti.record())
	}
	sort.Slice(records, func(i, j int) bool { return records[i].TunnelId < records[j].TunnelId })
	return records
}

/**
 * Get one running tunnel
 * @param {int} tunnelId - Tunnel id
 * @returns {models.TunnelRecord} Tunnel record
 * @returns {error} ErrTunnelNotFound when the tunnel is not running
 */
func (tm *TunnelManager) Get(tunnelId int) (models.TunnelRecord, error) {
	tm.mu.Lock()
	ti, ok := tm.tunnels[tunnelId]
	tm.mu.Unlock()
	if !ok {
		return models.TunnelRecord{}, fmt.Errorf("%w: %d", models.ErrTunnelNotFound, tunnelId)
	}
	return ti.record(), nil
}

func (ti *tunnelInstance) record() models.TunnelRecord {
	detail := ti.proc.GetDetail()
	return models.TunnelRecord{
		TunnelId:  ti.id,
		Pid:       detail.Pid,
		Binary:    ti.binary,
		Status:    detail.Status,
		StartTime: detail.StartTime,
	}
}

func (tm *TunnelManager) notify(ev models.TunnelEvent) {
	tm.obsMu.Lock()
	onExit := append([]func(int){}, tm.onExit...)
	onEvent := append([]func(models.TunnelEvent){}, tm.onEvent...)
	tm.obsMu.Unlock()

	for _, fn := range onEvent {
		tm.deliver(func() { fn(ev) })
	}
	if ev.Kind == models.TunnelStopped {
		for _, fn := range onExit {
			tm.deliver(func() { fn(ev.TunnelId) })
		}
	}
}

// deliver keeps a panicking observer from taking down the watcher goroutine.
func (tm *TunnelManager) deliver(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Tunnel observer panicked: %v", r)
		}
	}()
	fn()
}
