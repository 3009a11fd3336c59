// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tasks runs cancellable background work and reports its progress
// and result back on a single consumer context.
//
// Each submitted task runs its work function on its own goroutine. Items the
// work function publishes are coalesced into batches and, together with the
// final Outcome, delivered through a Dispatcher that runs callbacks one at a
// time. A task's completion callback fires exactly once, and never before or
// alongside one of its progress batches.
//
// # Key Types
//
//   - Executor: Starts tasks, tracks them and owns the shutdown path
//   - Handle: Submitter's view of a task (cancel, state, callbacks, wait)
//   - Progress: Worker's view of a task (publish, cancellation flag)
//   - Outcome: Completed value, Canceled, or Failed error
//   - Dispatcher: Serial execution context for callbacks
//
// # Usage
//
// Submit work and react on the consumer:
//
//	loop := dispatch.NewLoop()
//	exec := tasks.NewExecutor(loop, tasks.WithMaxConcurrent(4))
//	defer exec.Close()
//
//	h := tasks.Submit(exec, "Count lines", func(ctx context.Context, p *tasks.Progress[string]) (int, error) {
//	    n := 0
//	    for scanner.Scan() {
//	        if p.IsCanceled() {
//	            return n, tasks.ErrCanceled
//	        }
//	        p.Publish(scanner.Text())
//	        n++
//	    }
//	    return n, scanner.Err()
//	}, tasks.Callbacks[string, int]{
//	    OnProgress: func(lines []string) { view.Append(lines...) },
//	    OnDone:     func(out tasks.Outcome[int]) { view.Finish(out) },
//	})
//
// Cancel it:
//
//	h.Cancel(true) // also cancels ctx so blocking calls return
package tasks
