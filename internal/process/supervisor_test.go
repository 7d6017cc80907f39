package process

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neopult/neopult/internal/logging"
	"github.com/neopult/neopult/internal/metrics"
)

var testMetricsOnce sync.Once
var testMetrics *metrics.Metrics

func sharedMetrics() *metrics.Metrics {
	testMetricsOnce.Do(func() { testMetrics = metrics.New() })
	return testMetrics
}

// syncDispatcher runs posted tasks synchronously on whatever goroutine calls
// Post, which is fine for tests since nothing here contends on host state.
type syncDispatcher struct{}

func (d *syncDispatcher) Post(f func()) { f() }

func newSupervisor(t *testing.T, dispatcher Dispatcher) *Supervisor {
	t.Helper()
	return New(dispatcher, logging.NewDefault(), sharedMetrics(), t.TempDir())
}

func TestSpawnDeliversOutputLines(t *testing.T) {
	sup := newSupervisor(t, &syncDispatcher{})

	var mu sync.Mutex
	var lines []string
	h, err := sup.Spawn("sh", SpawnOptions{
		Args: []string{"-c", "echo one; echo two"},
		OnOutput: func(line string) {
			mu.Lock()
			lines = append(lines, line)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	require.NotNil(t, h)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(lines) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"one", "two"}, lines)
	mu.Unlock()
}

func TestWriteToDeadProcessIsBenign(t *testing.T) {
	sup := newSupervisor(t, &syncDispatcher{})
	h, err := sup.Spawn("sh", SpawnOptions{Args: []string{"-c", "exit 0"}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(sup.table.Values()) == 0
	}, time.Second, 10*time.Millisecond, "process should exit and be removed from the table")

	assert.NoError(t, h.Write([]byte("hello")))
}

func TestKillOnAlreadyDeadIsNoOp(t *testing.T) {
	sup := newSupervisor(t, &syncDispatcher{})
	h, err := sup.Spawn("sh", SpawnOptions{Args: []string{"-c", "exit 0"}})
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.NotPanics(t, func() { h.Kill() })
}

func TestSpawnWritesPidFile(t *testing.T) {
	pidDir := t.TempDir()
	sup := New(&syncDispatcher{}, logging.NewDefault(), sharedMetrics(), pidDir)

	_, err := sup.Spawn("sh", SpawnOptions{Args: []string{"-c", "sleep 0.3"}})
	require.NoError(t, err)

	entries, err := os.ReadDir(pidDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCleanStaleKillsLeftoverProcess(t *testing.T) {
	pidDir := t.TempDir()

	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	defer cmd.Process.Kill()
	go cmd.Wait() // reap on exit so the zombie doesn't linger and confuse the liveness check below

	pidFile := filepath.Join(pidDir, "sleep-abcd1234.pid")
	require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(pid)), 0o644))

	CleanStale(pidDir, logging.NewDefault())

	_, err := os.Stat(pidFile)
	assert.True(t, os.IsNotExist(err), "stale pid file should be removed")

	require.Eventually(t, func() bool {
		return cmd.Process.Signal(syscall.Signal(0)) != nil
	}, time.Second, 10*time.Millisecond, "process should no longer be running")
}

func TestCleanStaleIgnoresMissingDir(t *testing.T) {
	assert.NotPanics(t, func() {
		CleanStale(filepath.Join(t.TempDir(), "does-not-exist"), logging.NewDefault())
	})
}

func TestKillAllTerminatesLiveProcesses(t *testing.T) {
	sup := newSupervisor(t, &syncDispatcher{})
	h, err := sup.Spawn("sh", SpawnOptions{Args: []string{"-c", "sleep 30"}})
	require.NoError(t, err)
	require.NotNil(t, h)

	sup.KillAll()

	require.Eventually(t, func() bool {
		return len(sup.table.Values()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
