// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
)

// =============================================================================
// STREAM EVENTS
// =============================================================================

// EventType discriminates the events carried on a reply stream.
type EventType int

const (
	// EventChunk carries an increment of assistant output.
	EventChunk EventType = iota

	// EventComplete marks the assistant reply as final. Accumulation of the
	// full text is the consumer's responsibility; the parser keeps no copy.
	EventComplete

	// EventDone marks the end of the stream. No further events follow.
	EventDone

	// EventError carries a server-reported failure. The stream is terminated
	// and the failure propagates to the consumer.
	EventError
)

// Event is a single decoded stream event. Events are transient: they are
// consumed immediately by the session and never persisted.
type Event struct {
	Type    EventType
	Content string // chunk text, set for EventChunk
	Message string // failure detail, set for EventError
}

// wireEvent is the JSON shape carried on "data: " lines.
type wireEvent struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Wire protocol discriminator values.
const (
	wireChunk    = "assistant_chunk"
	wireComplete = "assistant_complete"
	wireDone     = "done"
	wireError    = "error"
)

// dataPrefix marks meaningful lines; everything else is keep-alive noise.
var dataPrefix = []byte("data: ")

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader decodes a reply stream into an ordered, single-pass sequence
// of events.
//
// The stream is UTF-8 text with one event per "data: "-prefixed line. Framing
// is byte-level on '\n', so multi-byte runes split across network reads stay
// intact in the bufio buffer; the reader is stateful across reads and must
// not be re-created per chunk.
//
// Malformed JSON on a data line (typically a fragment truncated by a chunk
// boundary) is skipped as noise rather than aborting the stream; decoding
// continues with the next line. This is an explicit branch, not exception
// suppression: readLine reports noise as a nil event.
type StreamReader struct {
	reader   *bufio.Reader
	finished bool
}

// NewStreamReader creates a stream reader over a reply body. Closing the
// body remains the caller's responsibility.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{reader: bufio.NewReader(r)}
}

// Next returns the next event on the stream.
//
// The sequence is finite: after a done event, an error event, or the end of
// the underlying stream, Next returns io.EOF. Noise lines (missing prefix,
// malformed JSON, empty chunks) are skipped internally and never surface.
func (s *StreamReader) Next() (*Event, error) {
	if s.finished {
		return nil, io.EOF
	}

	for {
		ev, err := s.readLine()
		if err != nil {
			s.finished = true
			return nil, err
		}
		if ev == nil {
			continue // noise
		}

		switch ev.Type {
		case EventDone, EventError:
			// Terminal either way; error propagates as a failure, done as
			// normal completion. Nothing after this line is consumed.
			s.finished = true
		}
		return ev, nil
	}
}

// readLine reads a single line and decodes it. A nil event with a nil error
// means the line was noise and should be skipped.
func (s *StreamReader) readLine() (*Event, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			// Final line without a trailing newline: decode it before EOF.
			return s.decodeLine(line), nil
		}
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, err
	}
	return s.decodeLine(line), nil
}

// decodeLine turns one raw line into an event, or nil for noise.
func (s *StreamReader) decodeLine(line []byte) *Event {
	line = bytes.TrimRight(line, "\r\n")

	if !bytes.HasPrefix(line, dataPrefix) {
		return nil
	}
	payload := line[len(dataPrefix):]

	var wire wireEvent
	if err := json.Unmarshal(payload, &wire); err != nil {
		// Fragment truncated by a chunk boundary. Skip it; decoding
		// continues with the next complete line.
		return nil
	}

	switch wire.Type {
	case wireChunk:
		if wire.Content == "" {
			return nil
		}
		return &Event{Type: EventChunk, Content: wire.Content}
	case wireComplete:
		return &Event{Type: EventComplete}
	case wireDone:
		return &Event{Type: EventDone}
	case wireError:
		return &Event{Type: EventError, Message: wire.Error}
	default:
		return nil
	}
}
