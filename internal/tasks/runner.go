// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"runtime/debug"

	"golang.org/x/sync/semaphore"
)

// WorkFunc is the unit of work run on the task's own goroutine.
//
// ctx is canceled when the task is interrupted (Cancel(true) or executor
// shutdown). p publishes progress and exposes the cooperative cancellation
// flag. Returning ErrCanceled (or context.Canceled) marks the task Canceled;
// any other error marks it Failed.
type WorkFunc[T, R any] func(ctx context.Context, p *Progress[T]) (R, error)

var errNilWork = errors.New("nil work function")

// =============================================================================
// WORKER EXECUTION
// =============================================================================

// run is the task's worker goroutine.
func (h *Handle[T, R]) run(sem *semaphore.Weighted, work WorkFunc[T, R]) {
	if sem != nil {
		// Waits in Pending; canceling a pending task cancels ctx and frees us
		if err := sem.Acquire(h.ctx, 1); err != nil {
			h.finish(Canceled[R]())
			return
		}
		defer sem.Release(1)
	}

	// Lost the race with a pending cancel: the work function never runs
	if !h.task.transition(TaskStatusRunning, nil) {
		return
	}
	h.logger.Debug("task started",
		"task_id", h.task.ID,
		"description", h.task.Description)

	value, err := h.invoke(work)
	h.finish(h.classify(value, err))
}

// invoke calls the work function, turning a panic into a *PanicError.
func (h *Handle[T, R]) invoke(work WorkFunc[T, R]) (value R, err error) {
	if work == nil {
		return value, errNilWork
	}

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	return work(h.ctx, &Progress[T]{task: h.task, channel: h.progress})
}

// classify maps the work function's return onto a terminal outcome.
func (h *Handle[T, R]) classify(value R, err error) Outcome[R] {
	if err == nil {
		return Success(value)
	}

	var panicErr *PanicError
	switch {
	case errors.As(err, &panicErr):
		// a panic is a bug, even when a cancel raced it
	case IsCancellation(err):
		return Canceled[R]()
	case h.task.CancelRequested() && h.ctx.Err() != nil:
		// The interrupt made the blocked call fail
		return Canceled[R]()
	}

	return Failure[R](&WorkError{TaskID: h.task.ID, Cause: err})
}
