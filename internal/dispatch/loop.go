// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/jeranaias/rigrun-tasks/internal/config"
)

// =============================================================================
// LOOP
// =============================================================================

// Loop is a serial executor: one goroutine drains an unbounded FIFO of
// functions. It never blocks Dispatch; if producers outrun it the queue grows.
type Loop struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}

	logger      *slog.Logger
	backlogWarn int
	warned      bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used for dropped work and recovered panics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithBacklogWarn logs one warning each time the queue grows to n entries
// (0 disables the warning).
func WithBacklogWarn(n int) Option {
	return func(l *Loop) {
		l.backlogWarn = n
	}
}

// WithConfig applies a dispatch config section.
func WithConfig(cfg config.DispatchConfig) Option {
	return WithBacklogWarn(cfg.BacklogWarn)
}

// NewLoop creates a loop and starts its goroutine.
func NewLoop(opts ...Option) *Loop {
	l := &Loop{
		done:   make(chan struct{}),
		logger: slog.Default(),
	}
	l.cond = sync.NewCond(&l.mu)
	for _, opt := range opts {
		opt(l)
	}

	go l.run()
	return l
}

// Dispatch queues fn. After Close, fn is dropped with a warning.
func (l *Loop) Dispatch(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.logger.Warn("dispatch after close, dropping work")
		return
	}

	l.queue = append(l.queue, fn)
	backlog := len(l.queue)
	warn := l.backlogWarn > 0 && backlog >= l.backlogWarn && !l.warned
	if warn {
		l.warned = true
	}
	l.mu.Unlock()

	l.cond.Signal()

	if warn {
		l.logger.Warn("dispatch backlog is growing", "backlog", backlog)
	}
}

// Backlog returns the number of queued functions not yet started.
func (l *Loop) Backlog() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Flush blocks until everything queued before the call has run.
// Must not be called from inside the loop.
func (l *Loop) Flush() {
	ran := make(chan struct{})

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.queue = append(l.queue, func() { close(ran) })
	l.mu.Unlock()
	l.cond.Signal()

	<-ran
}

// Close stops accepting work, runs what is already queued and waits for
// the loop goroutine to exit. Must not be called from inside the loop.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.cond.Broadcast()

	<-l.done
}

// Closed reports whether Close has been called.
func (l *Loop) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Done returns a channel closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// run drains the queue in FIFO order.
func (l *Loop) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		batch := l.queue
		l.queue = nil
		if l.backlogWarn > 0 {
			l.warned = false
		}
		l.mu.Unlock()

		for _, fn := range batch {
			l.invoke(fn)
		}
	}
}

// invoke runs fn, keeping the loop alive if it panics.
func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("dispatched function panicked",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}
