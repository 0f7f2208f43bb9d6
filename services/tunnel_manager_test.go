//go:build !windows

package services

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"kairo-keeper/internal/models"
	"kairo-keeper/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func newTestManager(sink LogSink) *TunnelManager {
	return NewTunnelManager(TunnelManagerOptions{StopTimeout: 500 * time.Millisecond, Sink: sink})
}

func TestTunnelStartAndStop(t *testing.T) {
	bin := writeScript(t, "frpc", "exec sleep 30\n")
	tm := newTestManager(nil)

	var events []models.TunnelEvent
	var mu sync.Mutex
	tm.OnEvent(func(ev models.TunnelEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	pid, err := tm.Start(7, bin, "secret")
	require.NoError(t, err)
	assert.Greater(t, pid, 0)
	assert.True(t, tm.IsRunning(7))

	rec, err := tm.Get(7)
	require.NoError(t, err)
	assert.Equal(t, pid, rec.Pid)
	assert.Equal(t, models.StatusRunning, rec.Status)

	assert.True(t, tm.Stop(7))
	assert.False(t, tm.IsRunning(7))
	assert.False(t, tm.Stop(7))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, models.TunnelStarted, events[0].Kind)
	assert.Equal(t, models.TunnelStopped, events[1].Kind)
	assert.Equal(t, models.ReasonStopped, events[1].Reason)
}

func TestTunnelStartAlreadyRunning(t *testing.T) {
	bin := writeScript(t, "frpc", "exec sleep 30\n")
	tm := newTestManager(nil)
	defer tm.StopAll()

	first, err := tm.Start(1, bin, "tok")
	require.NoError(t, err)

	_, err = tm.Start(1, bin, "tok")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrAlreadyRunning))

	rec, err := tm.Get(1)
	require.NoError(t, err)
	assert.Equal(t, first, rec.Pid)
	assert.Len(t, tm.List(), 1)
}

func TestTunnelConcurrentStartSameId(t *testing.T) {
	bin := writeScript(t, "frpc", "exec sleep 30\n")
	tm := newTestManager(nil)
	defer tm.StopAll()

	const n = 8
	var wg sync.WaitGroup
	var ok, busy atomic.Int32
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := tm.Start(21, bin, "tok")
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, models.ErrAlreadyRunning):
				busy.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(n-1), busy.Load())
	assert.Len(t, tm.List(), 1)
}

func TestTunnelStartInvalidBinary(t *testing.T) {
	notExec := filepath.Join(t.TempDir(), "frpc")
	require.NoError(t, os.WriteFile(notExec, []byte("#!/bin/sh\n"), 0644))

	tm := newTestManager(nil)
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing"), notExec, t.TempDir()} {
		_, err := tm.Start(3, path, "tok")
		require.Error(t, err, path)
		assert.True(t, errors.Is(err, models.ErrInvalidBinaryPath), path)
		assert.False(t, tm.IsRunning(3))
	}
}

func TestTunnelStartFailure(t *testing.T) {
	// executable bit set but not a runnable image
	bin := filepath.Join(t.TempDir(), "frpc")
	require.NoError(t, os.WriteFile(bin, []byte{0x00, 0x01, 0x02}, 0755))

	tm := newTestManager(nil)
	_, err := tm.Start(4, bin, "tok")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrProcessStartFailed))
	assert.False(t, tm.IsRunning(4))
}

func TestTunnelStopUnknown(t *testing.T) {
	tm := newTestManager(nil)
	assert.False(t, tm.Stop(999))
	assert.Equal(t, 0, tm.StopAll())
}

func TestTunnelStopAll(t *testing.T) {
	bin := writeScript(t, "frpc", "exec sleep 30\n")
	tm := newTestManager(nil)

	var exits atomic.Int32
	tm.OnExit(func(int) { exits.Add(1) })

	for id := 1; id <= 3; id++ {
		_, err := tm.Start(id, bin, "tok")
		require.NoError(t, err)
	}
	assert.Len(t, tm.List(), 3)

	assert.Equal(t, 3, tm.StopAll())
	assert.Empty(t, tm.List())
	assert.Equal(t, int32(3), exits.Load())
}

func TestTunnelForceKill(t *testing.T) {
	bin := writeScript(t, "frpc", "trap '' TERM\nwhile true; do sleep 0.1; done\n")
	tm := NewTunnelManager(TunnelManagerOptions{StopTimeout: 200 * time.Millisecond})

	pid, err := tm.Start(5, bin, "tok")
	require.NoError(t, err)
	// let the shell install its trap
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	assert.True(t, tm.Stop(5))
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)

	running, _ := utils.IsProcessRunning(pid)
	assert.False(t, running)
}

func TestTunnelExitNotification(t *testing.T) {
	bin := writeScript(t, "frpc", "sleep 0.1\nexit 3\n")
	tm := newTestManager(nil)

	exited := make(chan int, 1)
	var reason models.StopReason
	tm.OnEvent(func(ev models.TunnelEvent) {
		if ev.Kind == models.TunnelStopped {
			reason = ev.Reason
		}
	})
	tm.OnExit(func(id int) { exited <- id })

	_, err := tm.Start(9, bin, "tok")
	require.NoError(t, err)

	select {
	case id := <-exited:
		assert.Equal(t, 9, id)
	case <-time.After(5 * time.Second):
		t.Fatal("no exit notification")
	}
	assert.Equal(t, models.ReasonExited, reason)
	assert.False(t, tm.IsRunning(9))
}

func TestTunnelExitRacingStop(t *testing.T) {
	bin := writeScript(t, "frpc", "sleep 0.05\n")
	tm := newTestManager(nil)

	var mu sync.Mutex
	counts := map[int]int{}
	tm.OnExit(func(id int) {
		mu.Lock()
		counts[id]++
		mu.Unlock()
	})

	const rounds = 15
	for i := 1; i <= rounds; i++ {
		_, err := tm.Start(i, bin, "tok")
		require.NoError(t, err)
		time.Sleep(time.Duration(i*5) * time.Millisecond)
		tm.Stop(i)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(counts) == rounds
	}, 5*time.Second, 20*time.Millisecond)

	// late watcher callbacks must not produce a second notification
	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	for id := 1; id <= rounds; id++ {
		assert.Equal(t, 1, counts[id], "tunnel %d", id)
	}
}

func TestTunnelArgsAndLogs(t *testing.T) {
	bin := writeScript(t, "frpc", "echo \"args: $*\"\necho 'line two'\necho 'bad things' 1>&2\nprintf 'no newline'\n")
	sink := NewTunnelLogBuffer(10)
	tm := newTestManager(sink)

	exited := make(chan struct{})
	tm.OnExit(func(int) { close(exited) })

	_, err := tm.Start(12, bin, "tok")
	require.NoError(t, err)
	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("client did not exit")
	}

	lines := sink.Lines(12)
	var info, errs []string
	for _, l := range lines {
		if l.Stream == models.StreamError {
			errs = append(errs, l.Text)
		} else {
			info = append(info, l.Text)
		}
	}
	assert.Equal(t, []string{"args: -u tok -p 12", "line two", "no newline"}, info)
	assert.Equal(t, []string{"bad things"}, errs)
}

func TestTunnelIdFlag(t *testing.T) {
	out := filepath.Join(t.TempDir(), "args")
	bin := writeScript(t, "frpc", "echo \"$*\" > "+out+"\n")
	tm := NewTunnelManager(TunnelManagerOptions{IdFlag: "-t"})

	exited := make(chan struct{})
	tm.OnExit(func(int) { close(exited) })
	_, err := tm.Start(8, bin, "tok")
	require.NoError(t, err)
	<-exited

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "-u tok -t 8", strings.TrimSpace(string(data)))
}

func TestTunnelStopFailureReported(t *testing.T) {
	bin := writeScript(t, "frpc", "exec sleep 30\n")
	tm := newTestManager(nil)

	stopped := make(chan models.TunnelEvent, 1)
	tm.OnEvent(func(ev models.TunnelEvent) {
		if ev.Kind == models.TunnelStopped {
			stopped <- ev
		}
	})

	pid, err := tm.Start(31, bin, "tok")
	require.NoError(t, err)

	tm.mu.Lock()
	proc := tm.tunnels[31].proc
	tm.mu.Unlock()
	proc.mutex.Lock()
	proc.terminate = func(int, <-chan struct{}, time.Duration) error {
		return errors.New("operation not permitted")
	}
	proc.mutex.Unlock()

	assert.True(t, tm.Stop(31))
	ev := <-stopped
	assert.Equal(t, models.ReasonStopped, ev.Reason)
	assert.Contains(t, ev.Error, "operation not permitted")

	require.NoError(t, utils.TerminateTree(pid, proc.Done(), time.Second))
}

func TestTunnelStartDifferentIdsConcurrently(t *testing.T) {
	bin := writeScript(t, "frpc", "exec sleep 30\n")
	tm := newTestManager(nil)
	defer tm.StopAll()

	_, err := tm.Start(41, bin, "tok")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for id := 42; id < 46; id++ {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tm.Start(id, bin, "tok")
			assert.NoError(t, err)
		}()
	}
	for i := 0; i < 50; i++ {
		assert.True(t, tm.IsRunning(41))
	}
	wg.Wait()
	assert.Len(t, tm.List(), 5)
}
