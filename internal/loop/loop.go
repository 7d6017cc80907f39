// Package loop implements the single-threaded cooperative event loop (C1):
// every mutation of host state (window manager, process supervisor,
// registry, scripts) happens on one goroutine, serialized by this package.
// Background goroutines (the X event reader, process stdout/stderr readers,
// the admin websocket server) never touch host state directly — they post
// closures here instead.
package loop

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/neopult/neopult/internal/logging"
)

// Task is a unit of work run on the loop thread.
type Task = func()

// Loop drains an external-event channel one item at a time, fully draining
// its deferred (run_later) queue after each one before accepting the next
// external event — the ordering contract spec §4.1 calls "strict
// FIFO-drain-before-next-external-event."
type Loop struct {
	logger *logging.Logger

	external chan Task
	deferred []Task
	mu       sync.Mutex // guards deferred; external tasks append from any goroutine

	sigCh    chan os.Signal
	done     chan struct{}
	stopOnce sync.Once

	onShutdown []func()
}

// New creates a Loop. Its channel is unbuffered by design: Post blocks the
// caller until the loop thread accepts the task, which is what gives
// background goroutines back-pressure instead of an unbounded queue.
func New(logger *logging.Logger) *Loop {
	l := &Loop{
		logger:   logger,
		external: make(chan Task),
		sigCh:    make(chan os.Signal, 1),
		done:     make(chan struct{}),
	}
	signal.Notify(l.sigCh, syscall.SIGINT, syscall.SIGTERM)
	return l
}

// Post schedules a task to run on the loop thread as an external event. Safe
// to call from any goroutine, including the loop thread itself (spec §4.1
// external events include, e.g., a completed process-output read).
func (l *Loop) Post(task Task) {
	select {
	case l.external <- task:
	case <-l.done:
	}
}

// RunLater enqueues a task to run on the loop thread only after the
// currently-executing task (and everything already deferred before it)
// finishes — spec §4.1's run_later, used by the window manager and script
// bridge to break out of a callback without reentering host state
// synchronously (spec §4.3.5).
func (l *Loop) RunLater(task Task) {
	l.mu.Lock()
	l.deferred = append(l.deferred, task)
	l.mu.Unlock()
}

// OnShutdown registers a cleanup step run, in registration order, once
// during a clean shutdown, before Run returns.
func (l *Loop) OnShutdown(f func()) {
	l.onShutdown = append(l.onShutdown, f)
}

// Run is the loop's main body. It returns when a shutdown signal or fatal
// error is delivered via Stop.
func (l *Loop) Run() {
	l.logger.Info("event loop started")
	for {
		select {
		case task := <-l.external:
			l.runOne(task)
			l.drainDeferred()
		case sig := <-l.sigCh:
			l.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
			l.Stop()
			l.shutdown()
			return
		case <-l.done:
			l.shutdown()
			return
		}
	}
}

// Stop requests a clean shutdown from any goroutine, e.g. after a fatal X
// error (spec §7 XFatal). Idempotent.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

func (l *Loop) drainDeferred() {
	for {
		l.mu.Lock()
		if len(l.deferred) == 0 {
			l.mu.Unlock()
			return
		}
		task := l.deferred[0]
		l.deferred = l.deferred[1:]
		l.mu.Unlock()
		l.runOne(task)
	}
}

// runOne recovers from a panicking task so one bad script callback or
// process-output handler can't take the whole daemon down; matches spec §7
// treating script errors as loggable, non-fatal ScriptError conditions.
func (l *Loop) runOne(task Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop task panicked", zap.Any("recovered", r))
		}
	}()
	task()
}

func (l *Loop) shutdown() {
	l.logger.Info("event loop shutting down")
	for _, f := range l.onShutdown {
		func() {
			defer func() {
				if r := recover(); r != nil {
					l.logger.Error("shutdown hook panicked", zap.Any("recovered", r))
				}
			}()
			f()
		}()
	}
}
