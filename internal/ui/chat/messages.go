// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/relay-tui/internal/session"
)

// =============================================================================
// SESSION MESSAGES
// =============================================================================

// SnapshotMsg delivers a fresh session snapshot after a mutation.
type SnapshotMsg struct {
	Snapshot session.Snapshot
}

// SendResultMsg signals that a send finished, successfully or not.
type SendResultMsg struct {
	// Text is the submitted message, echoed back so the input can be
	// restored when Err is set.
	Text string
	Err  error
}

// ConversationCreatedMsg signals that a brand-new conversation received its
// server-assigned id. Sent exactly once per conversation.
type ConversationCreatedMsg struct {
	ConversationID string
}
