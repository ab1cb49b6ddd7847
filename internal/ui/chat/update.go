// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "ctrl+n":
			// New chat. Clear never fails and works in any state the UI
			// allows it from; the session guards the rest.
			if !m.busy() {
				m.sess.Clear()
				m.errText = ""
			}
			return m, m.waitForEvent()

		case "enter":
			if cmd := m.submit(); cmd != nil {
				cmds = append(cmds, cmd)
			}
			return m, tea.Batch(cmds...)
		}

	case SnapshotMsg:
		m.snapshot = msg.Snapshot
		m.refreshViewport()
		return m, m.waitForEvent()

	case ConversationCreatedMsg:
		// The id shows up in the status bar via the next snapshot; nothing
		// else to do here.
		return m, m.waitForEvent()

	case SendResultMsg:
		if msg.Err != nil {
			// Restore the typed input so nothing the user wrote is lost.
			m.input.SetValue(msg.Text)
			m.errText = msg.Err.Error()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	// Route remaining messages to the focused components.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit validates the input and launches a send command.
func (m *Model) submit() tea.Cmd {
	if m.busy() {
		return nil
	}

	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}

	m.input.Reset()
	m.errText = ""
	return m.sendCmd(text)
}

// sendCmd runs the blocking send off the UI loop. The session publishes
// snapshots as it mutates; the final result arrives as SendResultMsg.
func (m *Model) sendCmd(text string) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		err := sess.Send(context.Background(), text)
		return SendResultMsg{Text: text, Err: err}
	}
}

// resize lays out the components for a new terminal size.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	inputHeight := m.input.Height() + 1 // input + status line
	viewportHeight := height - inputHeight - 1
	if viewportHeight < 1 {
		viewportHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(width, viewportHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = viewportHeight
	}
	m.input.SetWidth(width)

	// Glamour wraps at render time, so the renderer follows the width.
	renderer, err := newRenderer(m.theme, width)
	if err == nil {
		m.renderer = renderer
	}

	m.refreshViewport()
}

// newRenderer builds a glamour renderer for the theme and width.
func newRenderer(theme string, width int) (*glamour.TermRenderer, error) {
	wrap := glamour.WithWordWrap(width - 2)
	switch theme {
	case "dark":
		return glamour.NewTermRenderer(glamour.WithStandardStyle("dark"), wrap)
	case "light":
		return glamour.NewTermRenderer(glamour.WithStandardStyle("light"), wrap)
	case "notty":
		return glamour.NewTermRenderer(glamour.WithStandardStyle("notty"), wrap)
	default:
		return glamour.NewTermRenderer(glamour.WithAutoStyle(), wrap)
	}
}

// refreshViewport re-renders the transcript into the viewport and keeps the
// view pinned to the bottom while output streams in.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if atBottom || m.busy() {
		m.viewport.GotoBottom()
	}
}
