// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// PROGRESS CHANNEL
// =============================================================================

// progressChannel coalesces items published by a worker into batches that
// are delivered on the dispatcher.
//
// Items accumulate in pending. The first publish after a swap hands one
// delivery request to the dispatcher; every publish until that request runs
// just appends. So a bursty publisher never has more than one delivery
// request outstanding.
//
// Dispatch is always called with mu held. Dispatchers queue and never run
// inline, so this cannot deadlock, and it pins the relative order of
// delivery requests and the final completion request.
type progressChannel[T any] struct {
	mu         sync.Mutex
	pending    []T
	scheduled  bool
	closed     bool
	dispatcher Dispatcher
	deliver    func(batch []T)

	// throttling: a request the limiter held back sits in timer until it fires
	limiter *rate.Limiter
	timer   *time.Timer
	delayed bool
}

// newProgressChannel creates a channel delivering batches to deliver via d.
// interval > 0 spaces delivery requests at least interval apart.
func newProgressChannel[T any](d Dispatcher, interval time.Duration, deliver func([]T)) *progressChannel[T] {
	p := &progressChannel[T]{
		dispatcher: d,
		deliver:    deliver,
	}
	if interval > 0 {
		p.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return p
}

// publish appends item to the pending batch.
// Returns false when the channel is already closed and the item was dropped.
func (p *progressChannel[T]) publish(item T) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}

	p.pending = append(p.pending, item)
	if !p.scheduled {
		p.scheduled = true
		p.scheduleLocked()
	}
	return true
}

// scheduleLocked hands a delivery request to the dispatcher, now or once
// the limiter allows it. Must be called with mu held.
func (p *progressChannel[T]) scheduleLocked() {
	if p.limiter != nil {
		if delay := p.limiter.Reserve().Delay(); delay > 0 {
			p.delayed = true
			p.timer = time.AfterFunc(delay, p.fire)
			return
		}
	}
	p.dispatcher.Dispatch(p.flush)
}

// fire releases a delivery request held back by the limiter.
func (p *progressChannel[T]) fire() {
	p.mu.Lock()
	defer p.mu.Unlock()

	// close() already released it
	if !p.delayed {
		return
	}
	p.delayed = false
	p.timer = nil
	p.dispatcher.Dispatch(p.flush)
}

// flush runs on the dispatcher: it swaps out the pending batch and delivers it.
func (p *progressChannel[T]) flush() {
	p.mu.Lock()
	batch := p.pending
	p.pending = nil
	p.scheduled = false
	p.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	p.deliver(batch)
}

// close stops accepting items and hands done to the dispatcher. A delivery
// request still held back by the limiter is released first, so done always
// runs after every batch published before close.
func (p *progressChannel[T]) close(done func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.delayed {
		p.timer.Stop()
		p.timer = nil
		p.delayed = false
		p.dispatcher.Dispatch(p.flush)
	}
	p.dispatcher.Dispatch(done)
}

// =============================================================================
// PROGRESS (WORKER SIDE)
// =============================================================================

// Progress is handed to a work function. It is the worker's only view of
// the engine: Publish streams items to the consumer and IsCanceled exposes
// the cooperative cancellation flag.
type Progress[T any] struct {
	task    *Task
	channel *progressChannel[T]
}

// Publish queues item for delivery to the progress callback. It never waits
// on the consumer. Returns false if the task is already finalized, in which
// case the item is dropped.
func (p *Progress[T]) Publish(item T) bool {
	return p.channel.publish(item)
}

// IsCanceled reports whether cancellation was requested. Work functions
// should check it at least once per published item and return ErrCanceled
// when it is true.
func (p *Progress[T]) IsCanceled() bool {
	return p.task.CancelRequested()
}

// TaskID returns the ID of the task this work function runs for.
func (p *Progress[T]) TaskID() string {
	return p.task.ID
}
