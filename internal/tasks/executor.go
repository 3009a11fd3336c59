// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jeranaias/rigrun-tasks/internal/config"
	"github.com/jeranaias/rigrun-tasks/internal/dispatch"
)

// =============================================================================
// EXECUTOR
// =============================================================================

// Executor starts tasks on their own goroutines and delivers their callbacks
// on a single Dispatcher. It also keeps a registry of active and finished
// tasks for inspection.
type Executor struct {
	dispatcher Dispatcher
	// ownedLoop is set when the executor created its own dispatcher
	ownedLoop *dispatch.Loop
	logger    *slog.Logger

	// mu guards the settings below and the stopped flag
	mu               sync.Mutex
	sem              *semaphore.Weighted
	maxConcurrent    int
	progressInterval time.Duration
	history          int
	notifyBuffer     int
	shutdownTimeout  time.Duration
	stopped          bool

	// ctx is the parent of every task context; canceled on Shutdown
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	registry *registry
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMaxConcurrent caps the number of running work functions. Tasks over
// the cap wait in Pending. n <= 0 means unlimited.
func WithMaxConcurrent(n int) Option {
	return func(e *Executor) {
		e.maxConcurrent = n
	}
}

// WithProgressInterval spaces progress deliveries of one task at least d
// apart. 0 disables throttling.
func WithProgressInterval(d time.Duration) Option {
	return func(e *Executor) {
		e.progressInterval = d
	}
}

// WithHistory sets how many finished tasks the registry keeps (0 = unlimited).
func WithHistory(n int) Option {
	return func(e *Executor) {
		e.history = n
	}
}

// WithNotificationBuffer sets the capacity of the Notifications channel.
func WithNotificationBuffer(n int) Option {
	return func(e *Executor) {
		e.notifyBuffer = n
	}
}

// WithConfig applies an executor config section.
func WithConfig(cfg config.ExecutorConfig) Option {
	return func(e *Executor) {
		e.maxConcurrent = cfg.MaxConcurrent
		e.progressInterval = cfg.ProgressInterval()
		e.history = cfg.History
		e.notifyBuffer = cfg.NotificationBuffer
		if cfg.ShutdownTimeoutSecs > 0 {
			e.shutdownTimeout = cfg.ShutdownTimeout()
		}
	}
}

// NewExecutor creates an executor delivering callbacks on d. If d is nil the
// executor runs its own dispatch.Loop and closes it on Shutdown.
func NewExecutor(d Dispatcher, opts ...Option) *Executor {
	defaults := config.Default().Executor

	e := &Executor{
		dispatcher:      d,
		logger:          slog.Default(),
		history:         defaults.History,
		notifyBuffer:    defaults.NotificationBuffer,
		shutdownTimeout: defaults.ShutdownTimeout(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.dispatcher == nil {
		e.ownedLoop = dispatch.NewLoop(
			dispatch.WithLogger(e.logger),
			dispatch.WithConfig(config.Default().Dispatch),
		)
		e.dispatcher = e.ownedLoop
	}
	if e.maxConcurrent > 0 {
		e.sem = semaphore.NewWeighted(int64(e.maxConcurrent))
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.registry = newRegistry(e.history, e.notifyBuffer, e.logger)
	return e
}

// Reconfigure applies new settings. Concurrency and throttling changes only
// affect tasks submitted afterwards; the history limit is applied at once.
// The notification buffer is fixed at construction.
func (e *Executor) Reconfigure(cfg config.ExecutorConfig) {
	e.mu.Lock()
	if cfg.MaxConcurrent != e.maxConcurrent {
		e.maxConcurrent = cfg.MaxConcurrent
		e.sem = nil
		if cfg.MaxConcurrent > 0 {
			e.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
		}
	}
	e.progressInterval = cfg.ProgressInterval()
	e.history = cfg.History
	if cfg.ShutdownTimeoutSecs > 0 {
		e.shutdownTimeout = cfg.ShutdownTimeout()
	}
	e.mu.Unlock()

	e.registry.setMaxHistory(cfg.History)

	e.logger.Info("executor reconfigured",
		"max_concurrent", cfg.MaxConcurrent,
		"progress_interval", cfg.ProgressInterval(),
		"history", cfg.History)
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit creates a Pending task for work, starts its worker goroutine and
// returns immediately. cb may be the zero value; callbacks can also be set
// later on the handle.
//
// After Shutdown the task is created already Canceled and work never runs.
func Submit[T, R any](e *Executor, description string, work WorkFunc[T, R], cb Callbacks[T, R]) *Handle[T, R] {
	task := newTask(description)
	ctx, interrupt := context.WithCancel(e.ctx)

	h := &Handle[T, R]{
		task:       task,
		ctx:        ctx,
		interrupt:  interrupt,
		logger:     e.logger,
		onFinish:   e.finished,
		onProgress: cb.OnProgress,
		onDone:     cb.OnDone,
		done:       make(chan struct{}),
	}
	task.canceler = h.Cancel

	e.mu.Lock()
	sem := e.sem
	h.progress = newProgressChannel[T](e.dispatcher, e.progressInterval, h.deliverProgress)
	e.registry.add(task)

	if e.stopped {
		e.mu.Unlock()
		e.logger.Warn("task submitted after shutdown, canceling",
			"task_id", task.ID,
			"description", description)
		if e.ownedLoop != nil && e.ownedLoop.Closed() {
			// No consumer context is left to deliver on
			h.reject()
		} else {
			h.Cancel(true)
		}
		return h
	}
	e.wg.Add(1)
	e.mu.Unlock()

	e.logger.Debug("task submitted",
		"task_id", task.ID,
		"description", description)

	go func() {
		defer e.wg.Done()
		h.run(sem, work)
	}()
	return h
}

// finished is called once per task, right after its terminal transition.
func (e *Executor) finished(task *Task) {
	e.registry.finished(task)

	e.logger.Info("task finished",
		"task_id", task.ID,
		"description", task.Description,
		"status", task.Status(),
		"duration", task.Duration())
}

// =============================================================================
// CONTROL AND QUERIES
// =============================================================================

// Cancel cancels the task with the given ID. Returns false if the task is
// unknown, already finished, or was already asked to cancel.
func (e *Executor) Cancel(id string, mayInterrupt bool) bool {
	task, ok := e.registry.get(id)
	if !ok || task.canceler == nil {
		return false
	}
	return task.canceler(mayInterrupt)
}

// Get returns a snapshot of the task with the given ID.
func (e *Executor) Get(id string) (Snapshot, bool) {
	task, ok := e.registry.get(id)
	if !ok {
		return Snapshot{}, false
	}
	return task.Snapshot(), true
}

// Active returns snapshots of pending and running tasks in submission order.
func (e *Executor) Active() []Snapshot {
	return e.registry.snapshots(func(s TaskStatus) bool { return !s.IsTerminal() })
}

// Completed returns snapshots of finished tasks still in the history.
func (e *Executor) Completed() []Snapshot {
	return e.registry.snapshots(TaskStatus.IsTerminal)
}

// Len returns the number of tracked tasks and how many of them are active.
func (e *Executor) Len() (total, active int) {
	return e.registry.count()
}

// Summary returns a one-line count of tasks per status.
func (e *Executor) Summary() string {
	return e.registry.summary()
}

// Notifications returns the channel receiving one notification per finished
// task. Notifications are dropped when nobody drains it.
func (e *Executor) Notifications() <-chan TaskNotification {
	return e.registry.notifyChan
}

// ClearHistory forgets all finished tasks.
func (e *Executor) ClearHistory() {
	e.registry.clear()
}

// =============================================================================
// SHUTDOWN
// =============================================================================

// Shutdown stops accepting tasks, interrupts every active task and waits for
// the worker goroutines to return or ctx to be done. An executor-owned
// dispatch loop is drained and closed once all workers returned.
//
// Must not be called from a callback running on the executor's dispatcher.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()

	active := e.registry.activeTasks()
	for _, task := range active {
		if task.canceler != nil {
			task.canceler(true)
		}
	}
	e.cancel()

	e.logger.Info("executor shutting down", "active", len(active))

	workersDone := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(workersDone)
	}()

	select {
	case <-workersDone:
	case <-ctx.Done():
		e.logger.Warn("shutdown timed out waiting for workers", "error", ctx.Err())
		return fmt.Errorf("executor shutdown: %w", ctx.Err())
	}

	if e.ownedLoop != nil {
		e.ownedLoop.Close()
	}
	return nil
}

// Close shuts down with the configured shutdown timeout.
func (e *Executor) Close() error {
	e.mu.Lock()
	timeout := e.shutdownTimeout
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return e.Shutdown(ctx)
}
