// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

// =============================================================================
// TASK STATUS
// =============================================================================

// TaskStatus represents the lifecycle state of a background task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task was submitted but its worker has not started
	TaskStatusPending TaskStatus = "Pending"

	// TaskStatusRunning indicates the work function is executing
	TaskStatusRunning TaskStatus = "Running"

	// TaskStatusCompleted indicates the work function returned a value
	TaskStatusCompleted TaskStatus = "Completed"

	// TaskStatusCanceled indicates the task stopped because cancellation was honored
	TaskStatusCanceled TaskStatus = "Canceled"

	// TaskStatusFailed indicates the work function returned an error
	TaskStatusFailed TaskStatus = "Failed"
)

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is possible from s.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusCanceled, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// isValidTransition checks whether the state machine allows from -> to.
// Unlike a plain setter, re-entering the same state is rejected: every
// transition happens exactly once.
func isValidTransition(from, to TaskStatus) bool {
	switch from {
	case TaskStatusPending:
		// A pending task is either started or canceled before it ever runs
		return to == TaskStatusRunning || to == TaskStatusCanceled
	case TaskStatusRunning:
		return to == TaskStatusCompleted || to == TaskStatusFailed || to == TaskStatusCanceled
	default:
		// Terminal states - no transitions allowed
		return false
	}
}
