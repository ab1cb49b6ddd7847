// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the Relay assistant backend.
//
// The package has two halves:
//
//   - Client: authenticated requests to the backend (conversation creation,
//     transcript fetch, and opening the streaming reply for a sent message).
//     Failures are reported as typed errors: ErrNoToken when no credential
//     is available, *RequestError for non-success HTTP responses.
//
//   - StreamReader: a line-oriented parser for the streamed reply body.
//     Meaningful lines carry the "data: " prefix followed by a JSON event;
//     everything else (keep-alives, comments, fragments truncated by chunk
//     boundaries) is skipped. Events are consumed one at a time via Next.
//
// The Client never touches session state; ownership of a stream body passes
// to the caller, who is responsible for closing it on every exit path.
package api
