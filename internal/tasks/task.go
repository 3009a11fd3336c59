// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// TASK STRUCTURE
// =============================================================================

// Task is the engine-owned state holder for one submitted unit of work.
// Collaborators never mutate it directly; they go through a Handle.
type Task struct {
	// ID is a unique identifier for this task
	ID string

	// Description is a human-readable description of what this task does
	Description string

	status    TaskStatus
	startTime time.Time
	endTime   time.Time
	err       error

	// cancelRequested only ever goes false -> true
	cancelRequested atomic.Bool

	// canceler is installed by the owning handle so the executor can cancel
	// without knowing the task's progress and result types
	canceler func(mayInterrupt bool) bool

	// mu protects status, timestamps and err
	mu sync.RWMutex
}

// newTask creates a task in the Pending state.
func newTask(description string) *Task {
	return &Task{
		ID:          uuid.New().String(),
		Description: description,
		status:      TaskStatusPending,
	}
}

// =============================================================================
// TASK METHODS
// =============================================================================

// transition moves the task to status if the state machine allows it.
// Returns false when the transition was rejected, which is how concurrent
// finalizers and cancelers learn they lost the race.
func (t *Task) transition(status TaskStatus, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !isValidTransition(t.status, status) {
		return false
	}

	now := time.Now()
	switch {
	case status == TaskStatusRunning:
		t.startTime = now
	case status.IsTerminal():
		t.endTime = now
		t.err = err
	}
	t.status = status
	return true
}

// Status returns the current task status (thread-safe).
func (t *Task) Status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Err returns the failure cause, or nil unless the task Failed.
func (t *Task) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// requestCancel records a cancellation request.
// ok is false when the task is already terminal and nothing was recorded.
// first is true only for the first request. pending is true when the task
// had not started yet: it is now Canceled and its worker will never run.
func (t *Task) requestCancel() (ok, first, pending bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.IsTerminal() {
		return false, false, false
	}

	first = t.cancelRequested.CompareAndSwap(false, true)
	if t.status == TaskStatusPending {
		t.status = TaskStatusCanceled
		t.endTime = time.Now()
		return true, first, true
	}
	return true, first, false
}

// CancelRequested reports whether cancellation has been requested.
func (t *Task) CancelRequested() bool {
	return t.cancelRequested.Load()
}

// Duration returns how long the task has been running or took to complete.
func (t *Task) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.startTime.IsZero() {
		return 0
	}

	if t.endTime.IsZero() {
		return time.Since(t.startTime)
	}

	return t.endTime.Sub(t.startTime)
}

// IsRunning returns true if the task is currently running.
func (t *Task) IsRunning() bool {
	return t.Status() == TaskStatusRunning
}

// IsDone returns true if the task reached a terminal state.
func (t *Task) IsDone() bool {
	return t.Status().IsTerminal()
}

// Summary returns a one-line summary of the task.
func (t *Task) Summary() string {
	return t.Snapshot().Summary()
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// Snapshot is an immutable copy of a task's observable state.
type Snapshot struct {
	ID              string
	Description     string
	Status          TaskStatus
	CancelRequested bool
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
	Error           string
}

// Snapshot creates a consistent copy of the task for reading.
func (t *Task) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Snapshot{
		ID:              t.ID,
		Description:     t.Description,
		Status:          t.status,
		CancelRequested: t.cancelRequested.Load(),
		StartTime:       t.startTime,
		EndTime:         t.endTime,
	}
	if t.err != nil {
		s.Error = t.err.Error()
	}
	switch {
	case t.startTime.IsZero():
	case t.endTime.IsZero():
		s.Duration = time.Since(t.startTime)
	default:
		s.Duration = t.endTime.Sub(t.startTime)
	}
	return s
}

// Summary returns a one-line summary of the snapshot.
func (s Snapshot) Summary() string {
	id := s.ID
	if len(id) > 8 {
		id = id[:8]
	}

	summary := fmt.Sprintf("[%s] %s - %s", id, s.Description, s.Status)

	if s.Duration > 0 {
		summary += fmt.Sprintf(" (%.1fs)", s.Duration.Seconds())
	}
	if s.Error != "" {
		summary += ": " + s.Error
	}

	return summary
}
