// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"log/slog"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// BUBBLE TEA ADAPTER
// =============================================================================

// Sender is the subset of *tea.Program used by Tea.
type Sender interface {
	Send(msg tea.Msg)
}

// RunMsg carries a dispatched function into a Bubble Tea update loop.
// Models that do not embed Model must call Run when they receive it.
type RunMsg struct {
	fn     func()
	logger *slog.Logger
}

// Run executes the carried function, recovering a panic so the program
// survives a faulty callback.
func (m RunMsg) Run() {
	if m.fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("dispatched function panicked",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	m.fn()
}

// Tea dispatches work onto a Bubble Tea program's update goroutine.
//
// Program.Send blocks until the update loop accepts the message, so a pump
// Loop sits in between: Dispatch returns immediately and the pump feeds
// messages to the program one at a time in FIFO order.
type Tea struct {
	pump   *Loop
	sender Sender
	logger *slog.Logger
}

// NewTea creates a dispatcher feeding sender. Options configure the pump.
func NewTea(sender Sender, opts ...Option) *Tea {
	pump := NewLoop(opts...)
	return &Tea{
		pump:   pump,
		sender: sender,
		logger: pump.logger,
	}
}

// Dispatch queues fn for the program's update loop.
func (t *Tea) Dispatch(fn func()) {
	msg := RunMsg{fn: fn, logger: t.logger}
	t.pump.Dispatch(func() {
		t.sender.Send(msg)
	})
}

// Close stops the pump after it has handed off everything queued. If the
// program has already exited, Send returns without delivering.
func (t *Tea) Close() {
	t.pump.Close()
}

// =============================================================================
// MODEL WRAPPER
// =============================================================================

// Model wraps a tea.Model so RunMsg is executed before reaching it.
type Model struct {
	tea.Model
}

// Wrap returns m wrapped so it understands RunMsg.
func Wrap(m tea.Model) Model {
	return Model{Model: m}
}

// Update runs RunMsg and delegates everything else.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if run, ok := msg.(RunMsg); ok {
		run.Run()
		return m, nil
	}

	next, cmd := m.Model.Update(msg)
	m.Model = next
	return m, cmd
}
