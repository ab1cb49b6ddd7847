// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jeranaias/relay-tui/internal/api"
)

// =============================================================================
// TYPES
// =============================================================================

// MaxMessageLen is the maximum message length in runes accepted by Send.
const MaxMessageLen = 1000

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a finalized transcript entry. Messages are immutable once
// appended; transcript order is append order.
type Message struct {
	ID        string
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Status is the session state flag.
type Status int

const (
	// StatusIdle means no send is in flight.
	StatusIdle Status = iota

	// StatusSending means a send has started but no reply byte has arrived.
	StatusSending

	// StatusStreaming means the assistant reply is being received.
	StatusStreaming
)

// String returns the status name for logs and the status bar.
func (s Status) String() string {
	switch s {
	case StatusSending:
		return "sending"
	case StatusStreaming:
		return "streaming"
	default:
		return "idle"
	}
}

// Snapshot is an immutable view of the session handed to observers after
// every mutation.
type Snapshot struct {
	ConversationID string
	Transcript     []Message
	Buffer         string
	Status         Status
}

// Backend is the narrow transport surface the session depends on.
// *api.Client satisfies it.
type Backend interface {
	CreateConversation(ctx context.Context, firstMessage string) (string, error)
	FetchConversation(ctx context.Context, id string) (*api.Conversation, error)
	OpenStream(ctx context.Context, conversationID, text string) (io.ReadCloser, error)
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyMessage is returned when the message trims to nothing.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong is returned when the message exceeds MaxMessageLen.
	ErrMessageTooLong = errors.New("message exceeds maximum length")

	// ErrBusy is returned when a send is already in flight. Two concurrent
	// streams must never fold into the same buffer.
	ErrBusy = errors.New("a send is already in progress")
)

// =============================================================================
// SESSION
// =============================================================================

// Session is the chat state machine. All state is guarded by mu; callbacks
// run outside the lock so observers may read the session re-entrantly.
type Session struct {
	mu sync.Mutex

	backend        Backend
	conversationID string
	transcript     []Message
	buffer         strings.Builder
	status         Status

	// Observers
	notify    func(Snapshot)
	onCreated func(conversationID string)
}

// New creates a session with an empty transcript and no conversation id.
func New(backend Backend) *Session {
	return &Session{backend: backend}
}

// SetNotify registers the observer invoked with a fresh snapshot after every
// mutation. Pass nil to detach.
func (s *Session) SetNotify(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = fn
}

// SetConversationCreated registers the callback invoked exactly once when a
// brand-new conversation gets its server-assigned id during Send.
func (s *Session) SetConversationCreated(fn func(conversationID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCreated = fn
}

// Snapshot returns the current session state. The transcript slice is a copy;
// observers cannot mutate session state through it.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// snapshotLocked builds a snapshot; caller must hold mu.
func (s *Session) snapshotLocked() Snapshot {
	transcript := make([]Message, len(s.transcript))
	copy(transcript, s.transcript)
	return Snapshot{
		ConversationID: s.conversationID,
		Transcript:     transcript,
		Buffer:         s.buffer.String(),
		Status:         s.status,
	}
}

// publish invokes the observer outside the lock.
func (s *Session) publish() {
	s.mu.Lock()
	fn := s.notify
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

// =============================================================================
// SEND
// =============================================================================

// Send submits a user message and folds the streamed assistant reply into
// the session.
//
// The message must trim to non-empty and be at most MaxMessageLen runes.
// If no conversation exists yet, one is created first (seeded with this
// message) and the created callback fires with the new id. The user message
// is appended optimistically before any reply byte arrives.
//
// On completion exactly one assistant message is appended and the session
// returns to Idle. On a stream error the partial buffer is discarded — never
// persisted — and the failure is returned so the caller can restore the
// typed input. Send blocks until the stream terminates; run it off the UI
// loop.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageLen {
		return ErrMessageTooLong
	}

	// Claim the session. Rejecting here keeps the machine correct even if
	// the UI fails to disable the send affordance.
	s.mu.Lock()
	if s.status != StatusIdle {
		s.mu.Unlock()
		return ErrBusy
	}
	s.status = StatusSending
	convID := s.conversationID
	s.mu.Unlock()
	s.publish()

	// Precursor call: a brand-new conversation obtains its id from the
	// backend before anything is appended locally.
	if convID == "" {
		id, err := s.backend.CreateConversation(ctx, text)
		if err != nil {
			s.resetToIdle()
			return err
		}
		s.mu.Lock()
		s.conversationID = id
		onCreated := s.onCreated
		s.mu.Unlock()
		convID = id
		if onCreated != nil {
			onCreated(convID)
		}
	}

	// Optimistic append: the user message lands in the transcript before
	// any confirmation of the assistant's reply.
	userMsg := Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   text,
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.transcript = append(s.transcript, userMsg)
	s.mu.Unlock()
	s.publish()

	body, err := s.backend.OpenStream(ctx, convID, text)
	if err != nil {
		// Roll back the optimistic append so the caller can restore the
		// typed input.
		s.mu.Lock()
		s.transcript = s.transcript[:len(s.transcript)-1]
		s.status = StatusIdle
		s.mu.Unlock()
		s.publish()
		return err
	}
	defer body.Close()

	s.mu.Lock()
	s.status = StatusStreaming
	s.buffer.Reset()
	s.mu.Unlock()
	s.publish()

	return s.consume(api.NewStreamReader(body))
}

// consume folds stream events into the session until the stream terminates.
func (s *Session) consume(reader *api.StreamReader) error {
	for {
		ev, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				// Stream closed without complete: no assistant message is
				// appended and the buffer is discarded.
				s.resetToIdle()
				return nil
			}
			// Transport failure mid-stream: same policy as an error event.
			s.resetToIdle()
			return err
		}

		switch ev.Type {
		case api.EventChunk:
			s.mu.Lock()
			s.buffer.WriteString(ev.Content)
			s.mu.Unlock()
			s.publish()

		case api.EventComplete:
			s.finalizeAssistant()
			// Anything after complete is protocol-terminal; stop consuming.
			return nil

		case api.EventDone:
			// Done without a prior complete: idempotent no-op completion.
			s.resetToIdle()
			return nil

		case api.EventError:
			s.resetToIdle()
			return &api.StreamError{Message: ev.Message}
		}
	}
}

// finalizeAssistant appends exactly one assistant message built from the
// accumulated buffer and returns the session to Idle.
func (s *Session) finalizeAssistant() {
	s.mu.Lock()
	msg := Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   s.buffer.String(),
		CreatedAt: time.Now(),
	}
	s.transcript = append(s.transcript, msg)
	s.buffer.Reset()
	s.status = StatusIdle
	s.mu.Unlock()
	s.publish()
}

// resetToIdle clears the buffer and returns to Idle without appending.
func (s *Session) resetToIdle() {
	s.mu.Lock()
	s.buffer.Reset()
	s.status = StatusIdle
	s.mu.Unlock()
	s.publish()
}

// =============================================================================
// LOAD / CLEAR
// =============================================================================

// LoadConversation replaces the transcript wholesale with the fetched one,
// discarding any local optimistic state. Fetched messages get fresh ids;
// ordering is preserved from the fetch.
//
// Failures are soft: they are logged, the session returns to Idle, and the
// transcript and conversation id are left unchanged. No error surfaces to
// the UI layer.
func (s *Session) LoadConversation(ctx context.Context, conversationID string) {
	conv, err := s.backend.FetchConversation(ctx, conversationID)
	if err != nil {
		log.Printf("failed to load conversation %s: %v", conversationID, err)
		s.resetToIdle()
		return
	}

	transcript := make([]Message, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		transcript = append(transcript, Message{
			ID:        uuid.NewString(),
			Role:      Role(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}

	s.mu.Lock()
	s.conversationID = conversationID
	s.transcript = transcript
	s.buffer.Reset()
	s.status = StatusIdle
	s.mu.Unlock()
	s.publish()
}

// Clear discards the transcript, buffer, and conversation id and returns to
// Idle. Unconditional; never fails.
func (s *Session) Clear() {
	s.mu.Lock()
	s.conversationID = ""
	s.transcript = nil
	s.buffer.Reset()
	s.status = StatusIdle
	s.mu.Unlock()
	s.publish()
}

// ConversationID returns the current conversation id, or "" for a new chat.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Status returns the current status flag.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}
