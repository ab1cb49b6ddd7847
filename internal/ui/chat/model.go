// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/relay-tui/internal/session"
)

// =============================================================================
// MODEL
// =============================================================================

// eventBufferSize bounds the session-to-UI channel. Snapshots are complete
// state, so dropping stale ones under pressure is safe (latest wins).
const eventBufferSize = 64

// Model is the Bubble Tea model for the chat view.
type Model struct {
	sess *session.Session

	// events carries session notifications into the Bubble Tea loop.
	events chan tea.Msg

	// snapshot is the last observed session state; the view renders only
	// from this.
	snapshot session.Snapshot

	// UI components
	viewport viewport.Model
	input    textarea.Model
	spin     spinner.Model

	// renderer renders assistant markdown; rebuilt on resize.
	renderer *glamour.TermRenderer
	theme    string

	width  int
	height int
	ready  bool

	// errText is the last send failure shown in the status line.
	errText string
}

// New creates the chat view bound to a session. The model registers itself
// as the session's observer.
func New(sess *session.Session, theme string) *Model {
	input := textarea.New()
	input.Placeholder = "Send a message..."
	input.CharLimit = session.MaxMessageLen
	input.SetHeight(3)
	input.ShowLineNumbers = false
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := &Model{
		sess:     sess,
		events:   make(chan tea.Msg, eventBufferSize),
		snapshot: sess.Snapshot(),
		input:    input,
		spin:     spin,
		theme:    theme,
	}

	sess.SetNotify(func(snap session.Snapshot) {
		m.push(SnapshotMsg{Snapshot: snap})
	})
	sess.SetConversationCreated(func(id string) {
		m.push(ConversationCreatedMsg{ConversationID: id})
	})

	return m
}

// push delivers a message to the Bubble Tea loop, dropping the oldest queued
// message rather than blocking the session goroutine.
func (m *Model) push(msg tea.Msg) {
	for {
		select {
		case m.events <- msg:
			return
		default:
			select {
			case <-m.events:
			default:
			}
		}
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), m.spin.Tick, textarea.Blink)
}

// waitForEvent returns a command that delivers the next session event.
func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}

// busy reports whether a send is in flight.
func (m *Model) busy() bool {
	return m.snapshot.Status != session.StatusIdle
}
