// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import "fmt"

// Outcome is the terminal result of a task, delivered exactly once to the
// completion callback. Status is one of Completed, Canceled or Failed.
type Outcome[R any] struct {
	Status TaskStatus
	// Value is only meaningful when Status is Completed
	Value R
	// Err is a *WorkError when Status is Failed, nil otherwise
	Err error
}

// Success builds a Completed outcome.
func Success[R any](value R) Outcome[R] {
	return Outcome[R]{Status: TaskStatusCompleted, Value: value}
}

// Canceled builds a Canceled outcome.
func Canceled[R any]() Outcome[R] {
	return Outcome[R]{Status: TaskStatusCanceled}
}

// Failure builds a Failed outcome.
func Failure[R any](err error) Outcome[R] {
	return Outcome[R]{Status: TaskStatusFailed, Err: err}
}

// Succeeded reports whether the work function returned normally.
func (o Outcome[R]) Succeeded() bool { return o.Status == TaskStatusCompleted }

// Canceled reports whether the task ended because cancellation was honored.
func (o Outcome[R]) Canceled() bool { return o.Status == TaskStatusCanceled }

// Failed reports whether the work function returned an error.
func (o Outcome[R]) Failed() bool { return o.Status == TaskStatusFailed }

func (o Outcome[R]) String() string {
	switch o.Status {
	case TaskStatusCompleted:
		return fmt.Sprintf("Success(%v)", o.Value)
	case TaskStatusFailed:
		return fmt.Sprintf("Failed(%v)", o.Err)
	default:
		return o.Status.String()
	}
}
