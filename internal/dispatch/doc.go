// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dispatch provides serial execution contexts for task callbacks.
//
// Every implementation runs queued functions one at a time, in the order
// they were queued, on a context other than the caller's. Queuing never
// blocks, so a worker publishing progress is never held up by a slow
// consumer.
//
// # Key Types
//
//   - Loop: A dedicated goroutine draining an unbounded FIFO
//   - Tea: Forwards work into a Bubble Tea program's update loop
//   - Model: Wraps a tea.Model so it executes RunMsg
//
// # Usage
//
// Standalone loop:
//
//	loop := dispatch.NewLoop(dispatch.WithLogger(logger))
//	defer loop.Close()
//	executor := tasks.NewExecutor(loop)
//
// Inside a Bubble Tea program:
//
//	p := tea.NewProgram(dispatch.Wrap(model))
//	d := dispatch.NewTea(p)
//	defer d.Close()
//	executor := tasks.NewExecutor(d)
package dispatch
