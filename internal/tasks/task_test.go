// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewTask(t *testing.T) {
	task := newTask("Test task")

	if task.ID == "" {
		t.Error("Task ID should not be empty")
	}

	if task.Description != "Test task" {
		t.Errorf("Expected description 'Test task', got '%s'", task.Description)
	}

	if task.Status() != TaskStatusPending {
		t.Errorf("Expected status Pending, got %s", task.Status())
	}

	if task.CancelRequested() {
		t.Error("New task should not have cancellation requested")
	}

	if other := newTask("Test task"); other.ID == task.ID {
		t.Error("Task IDs should be unique")
	}
}

func TestTaskTransitions(t *testing.T) {
	tests := []struct {
		from TaskStatus
		to   TaskStatus
		want bool
	}{
		{TaskStatusPending, TaskStatusRunning, true},
		{TaskStatusPending, TaskStatusCanceled, true},
		{TaskStatusPending, TaskStatusCompleted, false},
		{TaskStatusPending, TaskStatusFailed, false},
		{TaskStatusRunning, TaskStatusCompleted, true},
		{TaskStatusRunning, TaskStatusFailed, true},
		{TaskStatusRunning, TaskStatusCanceled, true},
		{TaskStatusRunning, TaskStatusPending, false},
		{TaskStatusRunning, TaskStatusRunning, false},
		{TaskStatusCompleted, TaskStatusFailed, false},
		{TaskStatusCanceled, TaskStatusRunning, false},
		{TaskStatusFailed, TaskStatusCompleted, false},
	}

	for _, tt := range tests {
		if got := isValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("isValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTaskStatusIsTerminal(t *testing.T) {
	terminal := map[TaskStatus]bool{
		TaskStatusPending:   false,
		TaskStatusRunning:   false,
		TaskStatusCompleted: true,
		TaskStatusCanceled:  true,
		TaskStatusFailed:    true,
	}

	for status, want := range terminal {
		if status.IsTerminal() != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, !want, want)
		}
	}
}

func TestTaskLifecycle(t *testing.T) {
	task := newTask("Test")

	if !task.transition(TaskStatusRunning, nil) {
		t.Fatal("Pending -> Running should be allowed")
	}
	if !task.IsRunning() {
		t.Error("Task should be running")
	}

	time.Sleep(5 * time.Millisecond)

	if !task.transition(TaskStatusCompleted, nil) {
		t.Fatal("Running -> Completed should be allowed")
	}
	if !task.IsDone() {
		t.Error("Task should be done")
	}

	// Finalize is idempotent: a second terminal transition loses
	if task.transition(TaskStatusFailed, errors.New("late")) {
		t.Error("Second terminal transition should be rejected")
	}
	if task.Status() != TaskStatusCompleted {
		t.Errorf("Expected status Completed, got %s", task.Status())
	}
	if task.Err() != nil {
		t.Errorf("Expected no error, got %v", task.Err())
	}

	if task.Duration() < 5*time.Millisecond {
		t.Errorf("Expected duration >= 5ms, got %v", task.Duration())
	}
}

func TestTaskFailureRecordsError(t *testing.T) {
	task := newTask("Test")
	task.transition(TaskStatusRunning, nil)

	cause := errors.New("disk full")
	task.transition(TaskStatusFailed, cause)

	if !errors.Is(task.Err(), cause) {
		t.Errorf("Expected error %v, got %v", cause, task.Err())
	}

	snap := task.Snapshot()
	if snap.Error != "disk full" {
		t.Errorf("Expected snapshot error 'disk full', got '%s'", snap.Error)
	}
}

func TestTaskRequestCancel(t *testing.T) {
	t.Run("pending task is canceled on the spot", func(t *testing.T) {
		task := newTask("Test")

		ok, first, pending := task.requestCancel()
		if !ok || !first || !pending {
			t.Errorf("Expected (true, true, true), got (%v, %v, %v)", ok, first, pending)
		}
		if task.Status() != TaskStatusCanceled {
			t.Errorf("Expected status Canceled, got %s", task.Status())
		}
		if task.transition(TaskStatusRunning, nil) {
			t.Error("Canceled task must never start running")
		}
	})

	t.Run("running task only records the request", func(t *testing.T) {
		task := newTask("Test")
		task.transition(TaskStatusRunning, nil)

		ok, first, pending := task.requestCancel()
		if !ok || !first || pending {
			t.Errorf("Expected (true, true, false), got (%v, %v, %v)", ok, first, pending)
		}
		if task.Status() != TaskStatusRunning {
			t.Errorf("Cancel request alone must not end a running task, got %s", task.Status())
		}
		if !task.CancelRequested() {
			t.Error("Cancel flag should be set")
		}

		ok, first, _ = task.requestCancel()
		if !ok || first {
			t.Errorf("Second request should be recorded but not first, got (%v, %v)", ok, first)
		}
	})

	t.Run("terminal task ignores the request", func(t *testing.T) {
		task := newTask("Test")
		task.transition(TaskStatusRunning, nil)
		task.transition(TaskStatusCompleted, nil)

		ok, _, _ := task.requestCancel()
		if ok {
			t.Error("Cancel on a finished task should do nothing")
		}
		if task.CancelRequested() {
			t.Error("Cancel flag should stay clear on a finished task")
		}
	})
}

func TestTaskSummary(t *testing.T) {
	task := newTask("Index files")
	summary := task.Summary()

	if !strings.Contains(summary, "Index files") {
		t.Errorf("Summary should contain description: %s", summary)
	}
	if !strings.Contains(summary, task.ID[:8]) {
		t.Errorf("Summary should contain short ID: %s", summary)
	}
	if !strings.Contains(summary, string(TaskStatusPending)) {
		t.Errorf("Summary should contain status: %s", summary)
	}

	task.transition(TaskStatusRunning, nil)
	task.transition(TaskStatusFailed, errors.New("boom"))
	if !strings.HasSuffix(task.Summary(), ": boom") {
		t.Errorf("Summary should end with the error: %s", task.Summary())
	}
}

func TestOutcomeString(t *testing.T) {
	tests := []struct {
		name string
		out  Outcome[string]
		want string
	}{
		{"success", Success("done"), "Success(done)"},
		{"canceled", Canceled[string](), "Canceled"},
		{"failed", Failure[string](errors.New("disk full")), "Failed(disk full)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.out.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsCancellation(t *testing.T) {
	if !IsCancellation(ErrCanceled) {
		t.Error("ErrCanceled should be a cancellation")
	}
	if !IsCancellation(errors.Join(errors.New("stopping"), ErrCanceled)) {
		t.Error("Wrapped ErrCanceled should be a cancellation")
	}
	if IsCancellation(errors.New("disk full")) {
		t.Error("Plain error should not be a cancellation")
	}

	werr := &WorkError{TaskID: "abc", Cause: errors.New("disk full")}
	if errors.Unwrap(werr).Error() != "disk full" {
		t.Errorf("WorkError should unwrap to its cause, got %v", errors.Unwrap(werr))
	}
}
