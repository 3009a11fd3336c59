// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

// Dispatcher is the consumer's serial execution context, typically an event
// loop or a goroutine draining a queue. Every progress and completion
// callback runs inside it.
//
// Dispatch queues fn to run later, one at a time and in FIFO order. It must
// not run fn inline on the calling goroutine or wait for the consumer: the
// engine calls it while holding a lock.
type Dispatcher interface {
	Dispatch(fn func())
}
