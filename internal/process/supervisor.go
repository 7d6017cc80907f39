// Package process implements the process supervisor (C2): it spawns child
// commands, reads their stdout/stderr in line mode on background goroutines,
// and delivers each line back onto the event loop in per-process emission
// order (spec §4.2, §5, testable property 7).
package process

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/neopult/neopult/internal/handle"
	"github.com/neopult/neopult/internal/logging"
	"github.com/neopult/neopult/internal/metrics"
)

// Dispatcher posts a closure to run on the event-loop thread. The process
// supervisor's reader goroutines are the only place it crosses threads
// (spec §5 "Each worker posts decoded events via an MPSC channel to the
// loop; it never mutates host state").
type Dispatcher interface {
	Post(func())
}

type proc struct {
	name    string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	pidFile string
	alive   bool
	mu      sync.Mutex
}

// Supervisor owns every live child process for the daemon.
type Supervisor struct {
	dispatcher Dispatcher
	logger     *logging.Logger
	metrics    *metrics.Metrics
	pidDir     string

	table *handle.Table[*proc]
}

// New creates a process supervisor rooted at pidDir, the directory used for
// the supplemented stale-process crash recovery (SPEC_FULL "Supplemented
// features" §1).
func New(dispatcher Dispatcher, logger *logging.Logger, m *metrics.Metrics, pidDir string) *Supervisor {
	return &Supervisor{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    m,
		pidDir:     pidDir,
		table:      handle.NewTable[*proc](),
	}
}

// SpawnOptions mirrors spec §4.2 / §6.4 spawn_process(cmd, {args?, envs?, on_output?}),
// plus a pty option (this port's addition) for plugins driving a program that
// only emits its full output when attached to a terminal.
type SpawnOptions struct {
	Args     []string
	Envs     map[string]string
	OnOutput func(line string)
	PTY      bool
}

// Handle is the capability object returned to a plugin instance. It carries
// a generational Ref so that operations on an already-killed process fail
// gracefully instead of panicking (spec §9 "Handles with stale identity").
type Handle struct {
	ref handle.Ref
	sup *Supervisor
}

// Spawn starts cmd with the given options. The current working directory is
// inherited from the host process, not resolved relative to any script file
// (spec §4.2). Failure returns ErrSpawnFailed and nothing is registered.
func (s *Supervisor) Spawn(cmd string, opts SpawnOptions) (*Handle, error) {
	c := exec.Command(cmd, opts.Args...)
	if len(opts.Envs) > 0 {
		env := os.Environ()
		for k, v := range opts.Envs {
			env = append(env, k+"="+v)
		}
		c.Env = env
	}

	var stdin io.WriteCloser
	var readers []io.Reader

	if opts.PTY {
		// A pty gives the child a controlling terminal, so line-buffering
		// programs that only flush on isatty() still stream output live
		// (grounded in the teacher's terminal session manager, which starts
		// its shell the same way for the same reason).
		ptmx, err := pty.Start(c)
		if err != nil {
			s.metrics.ProcessSpawnFail.Inc()
			return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
		}
		stdin = ptmx
		readers = []io.Reader{ptmx}
	} else {
		var err error
		stdin, err = c.StdinPipe()
		if err != nil {
			s.metrics.ProcessSpawnFail.Inc()
			return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
		}
		stdout, err := c.StdoutPipe()
		if err != nil {
			s.metrics.ProcessSpawnFail.Inc()
			return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
		}
		stderr, err := c.StderrPipe()
		if err != nil {
			s.metrics.ProcessSpawnFail.Inc()
			return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
		}
		readers = []io.Reader{stdout, stderr}

		if err := c.Start(); err != nil {
			s.metrics.ProcessSpawnFail.Inc()
			s.logger.Error("failed to spawn process", zap.String("cmd", cmd), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
		}
	}

	// ULIDs sort lexically by creation time, so pid files in the directory
	// CleanStale scans naturally list in spawn order.
	name := filepath.Base(cmd) + "-" + strings.ToLower(ulid.Make().String())
	pidFile := filepath.Join(s.pidDir, name+".pid")
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(c.Process.Pid)), 0o644); err != nil {
		s.logger.Warn("could not write pid file", zap.String("path", pidFile), zap.Error(err))
	}

	p := &proc{name: name, cmd: c, stdin: stdin, pidFile: pidFile, alive: true}
	ref := s.table.Insert(p)
	h := &Handle{ref: ref, sup: s}

	s.metrics.ProcessesSpawned.Inc()
	s.metrics.ProcessesAlive.Inc()

	for _, r := range readers {
		go s.readLines(r, opts.OnOutput)
	}
	go s.awaitExit(p, ref)

	return h, nil
}

// readLines delivers lines in `\n`-delimited mode, trailing CR stripped, to
// the loop thread via the dispatcher (spec §4.2, testable property 7).
func (s *Supervisor) readLines(r io.Reader, onOutput func(string)) {
	if onOutput == nil {
		io.Copy(io.Discard, r)
		return
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		s.dispatcher.Post(func() { onOutput(line) })
	}
}

func (s *Supervisor) awaitExit(p *proc, ref handle.Ref) {
	_ = p.cmd.Wait()
	p.mu.Lock()
	p.alive = false
	p.mu.Unlock()
	s.metrics.ProcessesAlive.Dec()
	_ = os.Remove(p.pidFile)
	_ = s.table.Remove(ref)
}

// Write writes the exact bytes given (spec §6.4 write).
func (h *Handle) Write(data []byte) error {
	p, err := h.sup.table.Get(h.ref)
	if err != nil {
		return nil // stale handle: benign no-op, per spec §9
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.alive {
		return nil
	}
	_, err = p.stdin.Write(data)
	return err
}

// WriteLn appends "\n" (spec §6.4 writeln).
func (h *Handle) WriteLn(line string) error {
	return h.Write([]byte(line + "\n"))
}

// Kill sends SIGKILL; safe on an already-dead or stale-handle process
// (spec §4.2 "kill on a dead process is a no-op").
func (h *Handle) Kill() {
	p, err := h.sup.table.Get(h.ref)
	if err != nil {
		return
	}
	p.mu.Lock()
	alive := p.alive
	p.mu.Unlock()
	if !alive {
		return
	}
	_ = p.cmd.Process.Kill()
}

// KillAll sends SIGKILL to every live process the supervisor owns — used at
// shutdown, after every plugin's on_cleanup has run (spec §4.1).
func (s *Supervisor) KillAll() {
	for _, p := range s.table.Values() {
		p.mu.Lock()
		alive := p.alive
		p.mu.Unlock()
		if alive {
			_ = p.cmd.Process.Kill()
		}
	}
}

// CleanStale scans pidDir for pid files left over from a previous run (e.g.
// after a crash), asks each such process to exit, and force-kills it if it
// has not exited within a grace period, then removes the file (SPEC_FULL
// supplemented feature #1, grounded in original_source's
// clean_old_processes/kill_old_process).
func CleanStale(pidDir string, logger *logging.Logger) {
	entries, err := os.ReadDir(pidDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".pid") {
			continue
		}
		path := filepath.Join(pidDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil {
			_ = os.Remove(path)
			continue
		}
		killOldProcess(pid, logger)
		_ = os.Remove(path)
	}
}

const (
	staleKillPollInterval = 50 * time.Millisecond
	staleKillGracePeriod  = 2500 * time.Millisecond
)

func killOldProcess(pid int, logger *logging.Logger) {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	if err := proc.Signal(syscall.SIGINT); err != nil {
		// already gone
		return
	}
	deadline := time.Now().Add(staleKillGracePeriod)
	for time.Now().Before(deadline) {
		if proc.Signal(syscall.Signal(0)) != nil {
			return
		}
		time.Sleep(staleKillPollInterval)
	}
	logger.Warn("stale process did not exit in time, sending SIGKILL", zap.Int("pid", pid))
	_ = proc.Kill()
}
