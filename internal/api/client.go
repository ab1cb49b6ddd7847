// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout is the timeout for non-streaming requests.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize caps non-streaming response bodies.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 4 * 1024 * 1024 // 4MB

	// userAgent identifies the client to the backend.
	userAgent = "relay/0.1.0"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrNoToken indicates no access token is available. Callers must treat this
// as an authentication precondition failure and redirect to sign-in rather
// than retrying the request.
var ErrNoToken = errors.New("no access token available")

// RequestError represents a non-success HTTP response from the backend.
type RequestError struct {
	Status int
	Detail string
}

// Error implements the error interface. The message favors the
// server-provided detail when one was present in the response body.
func (e *RequestError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("backend error (HTTP %d)", e.Status)
}

// StreamError represents an explicit error event received on a reply stream.
type StreamError struct {
	Message string
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Message != "" {
		return "stream error: " + e.Message
	}
	return "stream error"
}

// apiErrorResponse is the error body shape returned by the backend.
type apiErrorResponse struct {
	Error string `json:"error"`
}

// =============================================================================
// TOKEN PROVIDER
// =============================================================================

// TokenProvider supplies the bearer credential for authenticated calls.
// Invalidate is called when the backend rejects the credential (HTTP 401)
// so the owner can discard it and trigger re-authentication.
type TokenProvider interface {
	Token() (string, bool)
	Invalidate() error
}

// =============================================================================
// DATA TYPES
// =============================================================================

// ConversationMessage is a single message in a fetched transcript.
type ConversationMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is a full transcript fetched from the backend.
type Conversation struct {
	ID       string                `json:"id"`
	Messages []ConversationMessage `json:"messages"`
}

// createRequest is the body for conversation creation and stream opening.
type createRequest struct {
	Message string `json:"message"`
}

// createResponse is the body returned by conversation creation.
type createResponse struct {
	ID string `json:"id"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Relay backend.
//
// Requests attach the bearer credential from the TokenProvider; when no
// credential is available the call fails with ErrNoToken before any network
// I/O. The Client is safe for concurrent use.
type Client struct {
	baseURL    string
	tokens     TokenProvider
	httpClient *http.Client

	// streamClient has no timeout; streaming lifetime is context-controlled.
	streamClient *http.Client

	// limiter paces authenticated calls so a misbehaving caller cannot
	// hammer the backend.
	limiter *rate.Limiter
}

// NewClient creates a new backend client.
func NewClient(baseURL string, tokens TokenProvider) *Client {
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		tokens:       tokens,
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		streamClient: &http.Client{},
		limiter:      rate.NewLimiter(rate.Every(200*time.Millisecond), 3),
	}
}

// WithTimeout sets the timeout for non-streaming requests.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// CONVERSATION OPERATIONS
// =============================================================================

// CreateConversation creates a new conversation seeded with the first message
// and returns the server-assigned conversation id.
func (c *Client) CreateConversation(ctx context.Context, firstMessage string) (string, error) {
	body, err := c.doJSON(ctx, http.MethodPost, "/api/conversations", createRequest{Message: firstMessage})
	if err != nil {
		return "", err
	}

	var created createResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("failed to parse create response: %w", err)
	}
	if created.ID == "" {
		return "", errors.New("create response missing conversation id")
	}

	return created.ID, nil
}

// FetchConversation retrieves the full transcript for a conversation id.
// Message ordering is preserved as returned by the backend.
func (c *Client) FetchConversation(ctx context.Context, id string) (*Conversation, error) {
	body, err := c.doJSON(ctx, http.MethodGet, "/api/conversations/"+id, nil)
	if err != nil {
		return nil, err
	}

	var conv Conversation
	if err := json.Unmarshal(body, &conv); err != nil {
		return nil, fmt.Errorf("failed to parse conversation: %w", err)
	}

	return &conv, nil
}

// =============================================================================
// STREAMING
// =============================================================================

// OpenStream sends a message on an existing conversation and returns the raw
// reply stream unconsumed. Ownership of reading and closing the body passes
// to the caller. Use NewStreamReader to decode it.
func (c *Client) OpenStream(ctx context.Context, conversationID, text string) (io.ReadCloser, error) {
	token, ok := c.tokens.Token()
	if !ok {
		return nil, ErrNoToken
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(createRequest{Message: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/api/conversations/" + conversationID + "/stream"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, token)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
		resp.Body.Close()
		return nil, c.handleErrorResponse(resp.StatusCode, body)
	}

	return resp.Body, nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// doJSON performs an authenticated request with an optional JSON payload and
// returns the response body.
func (c *Client) doJSON(ctx context.Context, method, path string, payload any) ([]byte, error) {
	token, ok := c.tokens.Token()
	if !ok {
		return nil, ErrNoToken
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.handleErrorResponse(resp.StatusCode, body)
	}

	return body, nil
}

// setHeaders sets the required headers for backend requests.
func (c *Client) setHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse converts a non-success response into a *RequestError,
// extracting the server-provided detail when the body carries one. A 401
// additionally invalidates the stored credential so the owner can redirect
// to re-authentication.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	if statusCode == http.StatusUnauthorized {
		if err := c.tokens.Invalidate(); err != nil {
			// The request error below is the one the caller must see.
			log.Printf("failed to invalidate token: %v", err)
		}
	}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return &RequestError{Status: statusCode, Detail: apiErr.Error}
	}

	return &RequestError{Status: statusCode, Detail: ""}
}

// IsAuthError reports whether an error means the caller must re-authenticate.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrNoToken) {
		return true
	}
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Status == http.StatusUnauthorized
}
