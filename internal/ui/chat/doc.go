// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the relay TUI.
//
// The model is a pure observer of the session: it subscribes to snapshots
// through a channel, renders transcript + streaming buffer + status, and
// forwards user submissions to the session via commands. It never mutates
// session state directly.
package chat
