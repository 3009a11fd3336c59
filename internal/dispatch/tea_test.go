// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterModel counts the messages it sees.
type counterModel struct {
	seen int
}

func (m counterModel) Init() tea.Cmd { return nil }

func (m counterModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, ok := msg.(tickMsg); ok {
		m.seen++
	}
	return m, nil
}

func (m counterModel) View() string { return "" }

type tickMsg struct{}

// recordingSender captures messages instead of running a program.
type recordingSender struct {
	msgs chan tea.Msg
}

func (s *recordingSender) Send(msg tea.Msg) { s.msgs <- msg }

func TestTea_DispatchWrapsInRunMsg(t *testing.T) {
	sender := &recordingSender{msgs: make(chan tea.Msg, 4)}
	d := NewTea(sender)
	defer d.Close()

	ran := false
	d.Dispatch(func() { ran = true })

	select {
	case msg := <-sender.msgs:
		run, ok := msg.(RunMsg)
		require.True(t, ok)
		assert.False(t, ran, "work runs only when the model handles the message")
		run.Run()
		assert.True(t, ran)
	case <-time.After(5 * time.Second):
		t.Fatal("message was not sent")
	}
}

func TestModel_DelegatesOtherMessages(t *testing.T) {
	m := Wrap(counterModel{})

	next, _ := m.Update(tickMsg{})
	next, _ = next.Update(RunMsg{fn: func() {}})
	next, _ = next.Update(tickMsg{})

	wrapped, ok := next.(Model)
	require.True(t, ok)
	assert.Equal(t, 2, wrapped.Model.(counterModel).seen)
}

func TestRunMsg_RecoversPanic(t *testing.T) {
	logs := &syncBuffer{}
	msg := RunMsg{fn: func() { panic("bad callback") }, logger: testLogger(logs)}

	assert.NotPanics(t, msg.Run)
	assert.Contains(t, logs.String(), "bad callback")
}

func TestTea_RunsOnProgramInOrder(t *testing.T) {
	p := tea.NewProgram(Wrap(counterModel{}),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
		tea.WithoutRenderer(),
		tea.WithoutSignalHandler(),
	)

	exited := make(chan error, 1)
	go func() {
		_, err := p.Run()
		exited <- err
	}()

	d := NewTea(p)
	defer d.Close()

	// got is only touched from the program's update goroutine until
	// finished is closed.
	var got []int
	finished := make(chan struct{})
	for i := 0; i < 50; i++ {
		i := i
		d.Dispatch(func() { got = append(got, i) })
	}
	d.Dispatch(func() { close(finished) })

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatched work did not reach the program")
	}

	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}

	p.Quit()
	select {
	case err := <-exited:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("program did not exit")
	}
}
