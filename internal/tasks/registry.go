// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// TASK REGISTRY
// =============================================================================

// registry tracks every task an executor has accepted: active ones until
// they finish, finished ones up to maxHistory.
type registry struct {
	// tasks is the list of all tracked tasks in submission order
	tasks []*Task

	// active tracks pending and running tasks by ID
	active map[string]*Task

	// maxHistory is the maximum number of finished tasks to keep (0 = unlimited)
	maxHistory int

	// mu protects concurrent access to the registry
	mu sync.RWMutex

	// notifyChan sends notifications when tasks finish
	notifyChan chan TaskNotification

	logger *slog.Logger
}

// TaskNotification reports a task reaching a terminal state.
type TaskNotification struct {
	TaskID      string
	Description string
	Status      TaskStatus
	Error       string
	Duration    time.Duration
}

// newRegistry creates an empty registry.
func newRegistry(maxHistory, notifyBuffer int, logger *slog.Logger) *registry {
	if notifyBuffer < 0 {
		notifyBuffer = 0
	}
	return &registry{
		tasks:      make([]*Task, 0),
		active:     make(map[string]*Task),
		maxHistory: maxHistory,
		notifyChan: make(chan TaskNotification, notifyBuffer),
		logger:     logger,
	}
}

// =============================================================================
// TASK TRACKING
// =============================================================================

// add starts tracking a newly submitted task.
func (r *registry) add(task *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks = append(r.tasks, task)
	r.active[task.ID] = task
}

// finished moves a task from active to history and notifies listeners.
func (r *registry) finished(task *Task) {
	snap := task.Snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.active, task.ID)

	r.notify(TaskNotification{
		TaskID:      snap.ID,
		Description: snap.Description,
		Status:      snap.Status,
		Error:       snap.Error,
		Duration:    snap.Duration,
	})

	r.cleanupLocked()
}

// setMaxHistory changes the history limit and trims immediately.
func (r *registry) setMaxHistory(maxHistory int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxHistory = maxHistory
	r.cleanupLocked()
}

// =============================================================================
// REGISTRY QUERIES
// =============================================================================

// get retrieves a task by ID.
func (r *registry) get(id string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if task, ok := r.active[id]; ok {
		return task, true
	}
	for _, task := range r.tasks {
		if task.ID == id {
			return task, true
		}
	}
	return nil, false
}

// activeTasks returns the original pointers of pending and running tasks.
func (r *registry) activeTasks() []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Task, 0, len(r.active))
	for _, task := range r.tasks {
		if _, ok := r.active[task.ID]; ok {
			result = append(result, task)
		}
	}
	return result
}

// snapshots returns snapshots of tracked tasks accepted by keep, in
// submission order.
func (r *registry) snapshots(keep func(TaskStatus) bool) []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Snapshot, 0)
	for _, task := range r.tasks {
		snap := task.Snapshot()
		if keep(snap.Status) {
			result = append(result, snap)
		}
	}
	return result
}

// count returns the number of tracked tasks and how many are active.
func (r *registry) count() (total, active int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks), len(r.active)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// notify sends a notification (must be called with lock held).
func (r *registry) notify(notification TaskNotification) {
	select {
	case r.notifyChan <- notification:
	default:
		// Channel full, drop notification and log warning
		r.logger.Warn("notification channel full, dropped notification",
			"task_id", notification.TaskID,
			"status", notification.Status)
	}
}

// =============================================================================
// CLEANUP
// =============================================================================

// cleanupLocked removes the oldest finished tasks beyond maxHistory.
// Must be called with lock held.
// Removal follows submission order, not completion time.
func (r *registry) cleanupLocked() {
	if r.maxHistory <= 0 {
		return
	}

	finishedCount := len(r.tasks) - len(r.active)
	if finishedCount <= r.maxHistory {
		return
	}

	toRemove := finishedCount - r.maxHistory
	kept := make([]*Task, 0, len(r.tasks)-toRemove)
	for _, task := range r.tasks {
		if _, ok := r.active[task.ID]; !ok && toRemove > 0 {
			toRemove--
			continue
		}
		kept = append(kept, task)
	}
	r.tasks = kept
}

// clear removes all finished tasks from the history.
func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]*Task, 0, len(r.active))
	for _, task := range r.tasks {
		if _, ok := r.active[task.ID]; ok {
			kept = append(kept, task)
		}
	}
	r.tasks = kept
}

// =============================================================================
// FORMATTING
// =============================================================================

// summary returns a formatted summary of the registry.
func (r *registry) summary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pending, running, completed, canceled, failed int
	for _, task := range r.tasks {
		switch task.Status() {
		case TaskStatusPending:
			pending++
		case TaskStatusRunning:
			running++
		case TaskStatusCompleted:
			completed++
		case TaskStatusCanceled:
			canceled++
		case TaskStatusFailed:
			failed++
		}
	}

	return fmt.Sprintf("Running: %d | Pending: %d | Completed: %d | Canceled: %d | Failed: %d",
		running, pending, completed, canceled, failed)
}
