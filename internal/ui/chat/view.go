// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/relay-tui/internal/session"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	userLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	assistantLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205"))

	userTextStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "Starting relay..."
	}

	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	return b.String()
}

// renderTranscript renders finalized messages plus the live streaming buffer.
func (m *Model) renderTranscript() string {
	var b strings.Builder

	for _, msg := range m.snapshot.Transcript {
		switch msg.Role {
		case session.RoleUser:
			b.WriteString(userLabelStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(userTextStyle.Render(msg.Content))
			b.WriteString("\n\n")
		case session.RoleAssistant:
			b.WriteString(assistantLabelStyle.Render("Assistant"))
			b.WriteString("\n")
			b.WriteString(m.renderMarkdown(msg.Content))
			b.WriteString("\n")
		}
	}

	// The in-flight reply renders raw: partial markdown looks worse than
	// plain text, and the finalized message gets the full treatment.
	if m.snapshot.Status == session.StatusStreaming {
		b.WriteString(assistantLabelStyle.Render("Assistant"))
		b.WriteString("\n")
		b.WriteString(m.snapshot.Buffer)
		b.WriteString("\n")
	}

	return b.String()
}

// renderMarkdown renders assistant markdown, falling back to plain text.
func (m *Model) renderMarkdown(content string) string {
	if m.renderer == nil {
		return content + "\n"
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content + "\n"
	}
	return out
}

// statusLine renders the one-line status bar between viewport and input.
func (m *Model) statusLine() string {
	if m.errText != "" {
		return errorStyle.Render(truncate("error: "+m.errText, m.width))
	}

	var parts []string
	switch m.snapshot.Status {
	case session.StatusSending:
		parts = append(parts, m.spin.View()+" sending")
	case session.StatusStreaming:
		parts = append(parts, m.spin.View()+" streaming")
	default:
		parts = append(parts, "ready")
	}

	if id := m.snapshot.ConversationID; id != "" {
		parts = append(parts, "conversation "+id)
	} else {
		parts = append(parts, "new chat")
	}
	parts = append(parts, "ctrl+n new · ctrl+c quit")

	return statusStyle.Render(truncate(strings.Join(parts, "  │  "), m.width))
}

// truncate trims a line to the given display width, ellipsis included.
// Width-aware so double-width runes do not overflow the status bar.
func truncate(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 1 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "…")
}
