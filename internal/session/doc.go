// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the client-side chat conversation state.
//
// A Session holds the transcript (append-only finalized messages), the
// streaming buffer (in-progress assistant output not yet finalized), the
// status flag, and the conversation id. It is the only mutator of that
// state; the UI observes snapshots and never writes.
//
// State transitions:
//
//	Idle -> Sending -> Streaming -> Idle   (normal send)
//	Sending -> Idle                        (failure before any byte arrives)
//	Streaming -> Idle                      (complete, done, or error)
//
// At most one send is in flight per session; Send rejects callers while
// busy. The streaming buffer is non-empty only while streaming and is
// cleared exactly at the transition back to Idle.
package session
