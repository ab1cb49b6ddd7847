// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeTokens is an in-memory TokenProvider.
type fakeTokens struct {
	token       string
	invalidated atomic.Bool
}

func (f *fakeTokens) Token() (string, bool) {
	if f.token == "" {
		return "", false
	}
	return f.token, true
}

func (f *fakeTokens) Invalidate() error {
	f.invalidated.Store(true)
	f.token = ""
	return nil
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func TestCreateConversation(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.Method != http.MethodPost || r.URL.Path != "/api/conversations" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"conv_42"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, &fakeTokens{token: "tok123"})

	id, err := client.CreateConversation(context.Background(), "hello")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if id != "conv_42" {
		t.Errorf("Expected conv_42, got %q", id)
	}
	if gotAuth != "Bearer tok123" {
		t.Errorf("Expected bearer credential, got %q", gotAuth)
	}
}

func TestNoTokenShortCircuits(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := NewClient(server.URL, &fakeTokens{})

	if _, err := client.CreateConversation(context.Background(), "hi"); !errors.Is(err, ErrNoToken) {
		t.Errorf("Expected ErrNoToken, got %v", err)
	}
	if _, err := client.FetchConversation(context.Background(), "c1"); !errors.Is(err, ErrNoToken) {
		t.Errorf("Expected ErrNoToken, got %v", err)
	}
	if _, err := client.OpenStream(context.Background(), "c1", "hi"); !errors.Is(err, ErrNoToken) {
		t.Errorf("Expected ErrNoToken, got %v", err)
	}

	if calls.Load() != 0 {
		t.Errorf("Expected no network calls without a token, got %d", calls.Load())
	}
}

func TestRequestErrorDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, &fakeTokens{token: "tok"})

	_, err := client.CreateConversation(context.Background(), "hi")
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Expected *RequestError, got %v", err)
	}
	if reqErr.Status != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", reqErr.Status)
	}
	if reqErr.Detail != "slow down" {
		t.Errorf("Expected server detail, got %q", reqErr.Detail)
	}
}

func TestRequestErrorGenericDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("<html>oops</html>"))
	}))
	defer server.Close()

	client := NewClient(server.URL, &fakeTokens{token: "tok"})

	_, err := client.FetchConversation(context.Background(), "c1")
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Expected *RequestError, got %v", err)
	}
	if reqErr.Detail != "" {
		t.Errorf("Expected empty detail for unparseable body, got %q", reqErr.Detail)
	}
}

func TestUnauthorizedInvalidatesToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"token expired"}`))
	}))
	defer server.Close()

	tokens := &fakeTokens{token: "stale"}
	client := NewClient(server.URL, tokens)

	_, err := client.CreateConversation(context.Background(), "hi")
	if !IsAuthError(err) {
		t.Fatalf("Expected auth error, got %v", err)
	}
	if !tokens.invalidated.Load() {
		t.Error("Expected 401 to invalidate the stored token")
	}
}

func TestFetchConversation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversations/conv_7" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"id":"conv_7","messages":[` +
			`{"role":"user","content":"hi","created_at":"2025-01-02T03:04:05Z"},` +
			`{"role":"assistant","content":"hello","created_at":"2025-01-02T03:04:06Z"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, &fakeTokens{token: "tok"})

	conv, err := client.FetchConversation(context.Background(), "conv_7")
	if err != nil {
		t.Fatalf("FetchConversation failed: %v", err)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(conv.Messages))
	}
	if conv.Messages[0].Role != "user" || conv.Messages[1].Content != "hello" {
		t.Errorf("Fetched transcript lost ordering or content: %+v", conv.Messages)
	}
}

func TestOpenStreamReturnsRawBody(t *testing.T) {
	const stream = "data: {\"type\":\"assistant_chunk\",\"content\":\"A\"}\n" +
		"data: {\"type\":\"done\"}\n"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversations/conv_1/stream" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if accept := r.Header.Get("Accept"); accept != "text/event-stream" {
			t.Errorf("Expected event-stream accept header, got %q", accept)
		}
		w.Write([]byte(stream))
	}))
	defer server.Close()

	client := NewClient(server.URL, &fakeTokens{token: "tok"})

	body, err := client.OpenStream(context.Background(), "conv_1", "hi")
	if err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}
	defer body.Close()

	// The body must arrive unconsumed; reading it is the caller's job.
	raw, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("Reading stream body failed: %v", err)
	}
	if string(raw) != stream {
		t.Errorf("Stream body consumed or altered: %q", string(raw))
	}
}

func TestOpenStreamErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"no such conversation"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, &fakeTokens{token: "tok"})

	_, err := client.OpenStream(context.Background(), "missing", "hi")
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Expected *RequestError, got %v", err)
	}
	if reqErr.Status != http.StatusNotFound || reqErr.Detail != "no such conversation" {
		t.Errorf("Unexpected error contents: %+v", reqErr)
	}
}
