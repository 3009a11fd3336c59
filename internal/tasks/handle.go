// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Callbacks are the consumer's reactions to a task. Both run on the
// executor's Dispatcher, never concurrently with each other.
type Callbacks[T, R any] struct {
	// OnProgress receives each coalesced batch, in publish order. Never
	// called with an empty batch, never called after OnDone.
	OnProgress func(batch []T)

	// OnDone receives the terminal outcome exactly once.
	OnDone func(out Outcome[R])
}

// =============================================================================
// TASK HANDLE
// =============================================================================

// Handle is the submitter's view of a task.
type Handle[T, R any] struct {
	task      *Task
	ctx       context.Context
	interrupt context.CancelFunc
	progress  *progressChannel[T]
	logger    *slog.Logger

	// onFinish is called once from the finalizing goroutine
	onFinish func(*Task)

	mu         sync.Mutex
	onProgress func([]T)
	onDone     func(Outcome[R])
	outcome    Outcome[R]

	// delivered flips when the completion request runs on the dispatcher
	delivered atomic.Bool
	done      chan struct{}
}

// ID returns the task's unique identifier.
func (h *Handle[T, R]) ID() string {
	return h.task.ID
}

// State returns the current task status.
func (h *Handle[T, R]) State() TaskStatus {
	return h.task.Status()
}

// Snapshot returns a copy of the task's observable state.
func (h *Handle[T, R]) Snapshot() Snapshot {
	return h.task.Snapshot()
}

// Cancel requests cancellation. A pending task is canceled on the spot and
// its work function never runs. A running task only sees the flag through
// Progress.IsCanceled, unless mayInterrupt is set, in which case its context
// is canceled too so blocking calls bound to it return promptly.
//
// Cancel on a finished task does nothing. Returns true only for the first
// request that was recorded.
func (h *Handle[T, R]) Cancel(mayInterrupt bool) bool {
	ok, first, pending := h.task.requestCancel()
	if !ok {
		return false
	}

	if pending {
		// Nothing is running; also releases a worker still waiting for a slot
		h.interrupt()
		h.logger.Debug("pending task canceled", "task_id", h.task.ID)
		h.complete(Canceled[R]())
		return first
	}

	if mayInterrupt {
		h.interrupt()
	}
	if first {
		h.logger.Debug("cancellation requested",
			"task_id", h.task.ID,
			"interrupt", mayInterrupt)
	}
	return first
}

// OnProgress sets the progress callback. Batches delivered before the call
// are not replayed.
func (h *Handle[T, R]) OnProgress(fn func(batch []T)) *Handle[T, R] {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onProgress = fn
	return h
}

// OnDone sets the completion callback. If the completion was already
// delivered the callback is not invoked; use Done or Wait instead.
func (h *Handle[T, R]) OnDone(fn func(out Outcome[R])) *Handle[T, R] {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDone = fn
	return h
}

// Done returns a channel closed right after the completion callback ran.
func (h *Handle[T, R]) Done() <-chan struct{} {
	return h.done
}

// Outcome returns the terminal outcome once it has been delivered.
func (h *Handle[T, R]) Outcome() (Outcome[R], bool) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.outcome, true
	default:
		return Outcome[R]{}, false
	}
}

// Wait blocks until the outcome has been delivered or ctx is done.
func (h *Handle[T, R]) Wait(ctx context.Context) (Outcome[R], error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.outcome, nil
	case <-ctx.Done():
		return Outcome[R]{}, ctx.Err()
	}
}

// =============================================================================
// DELIVERY (RUNS ON THE DISPATCHER)
// =============================================================================

// deliverProgress hands one batch to the progress callback.
func (h *Handle[T, R]) deliverProgress(batch []T) {
	if h.delivered.Load() {
		h.logger.Debug("late progress batch suppressed",
			"task_id", h.task.ID,
			"items", len(batch))
		return
	}

	h.mu.Lock()
	cb := h.onProgress
	h.mu.Unlock()

	if cb != nil {
		cb(batch)
	}
}

// deliverDone hands the outcome to the completion callback, once.
func (h *Handle[T, R]) deliverDone(out Outcome[R]) {
	if !h.delivered.CompareAndSwap(false, true) {
		return
	}

	h.mu.Lock()
	h.outcome = out
	cb := h.onDone
	h.mu.Unlock()

	defer close(h.done)
	if cb != nil {
		cb(out)
	}
}

// =============================================================================
// FINALIZATION
// =============================================================================

// finish performs the Running -> terminal transition. Only the first caller
// wins; later calls are no-ops.
func (h *Handle[T, R]) finish(out Outcome[R]) {
	if !h.task.transition(out.Status, out.Err) {
		return
	}
	h.complete(out)
}

// complete closes the progress channel, queues the completion behind any
// outstanding batch and releases the task's context. Callers must have won
// the terminal transition.
func (h *Handle[T, R]) complete(out Outcome[R]) {
	h.progress.close(func() { h.deliverDone(out) })
	h.interrupt()

	if h.onFinish != nil {
		h.onFinish(h.task)
	}
}

// reject cancels a task that never reached a dispatcher and delivers the
// Canceled outcome on the calling goroutine.
func (h *Handle[T, R]) reject() {
	if _, _, pending := h.task.requestCancel(); !pending {
		return
	}
	h.progress.close(func() {})
	h.interrupt()
	if h.onFinish != nil {
		h.onFinish(h.task)
	}
	h.deliverDone(Canceled[R]())
}
