// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"fmt"
)

// ErrCanceled is the cancellation signal. A work function that notices
// IsCanceled() returns it (or an error wrapping it) to stop early; the task
// then ends Canceled instead of Failed.
var ErrCanceled = errors.New("task canceled")

// IsCancellation reports whether err is a cancellation signal rather than a
// real failure.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// WorkError is the failure delivered in a Failed outcome.
type WorkError struct {
	TaskID string
	Cause  error
}

func (e *WorkError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.TaskID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *WorkError) Unwrap() error {
	return e.Cause
}

// PanicError is the cause recorded when a work function panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
