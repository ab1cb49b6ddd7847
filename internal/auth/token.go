// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth provides the bearer credential store for the Relay backend.
//
// The token lives in a single file under the relay home directory, readable
// only by the owner. The RELAY_TOKEN environment variable overrides the file
// when set, which is convenient for scripts and tests. Absence of a token
// short-circuits authenticated calls before any network I/O; it is never an
// error here, only a boolean.
package auth

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// EnvToken is the environment variable that overrides the token file.
const EnvToken = "RELAY_TOKEN"

// tokenFileMode keeps the stored credential owner-readable only.
const tokenFileMode = 0600

// TokenStore reads and writes the bearer credential.
//
// TokenStore is safe for concurrent use. The file is read once and cached;
// Set and Invalidate keep the cache coherent with the file.
type TokenStore struct {
	mu     sync.Mutex
	path   string
	cached string
	loaded bool
}

// NewTokenStore creates a store backed by ~/.relay/token.
func NewTokenStore() (*TokenStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(homeDir, ".relay")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &TokenStore{path: filepath.Join(dir, "token")}, nil
}

// NewTokenStoreWithPath creates a store backed by a custom file path.
func NewTokenStoreWithPath(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Token returns the credential and whether one is available. The environment
// override wins over the file.
func (t *TokenStore) Token() (string, bool) {
	if env := strings.TrimSpace(os.Getenv(EnvToken)); env != "" {
		return env, true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.loaded {
		data, err := os.ReadFile(t.path)
		if err == nil {
			t.cached = strings.TrimSpace(string(data))
		}
		t.loaded = true
	}

	if t.cached == "" {
		return "", false
	}
	return t.cached, true
}

// Set stores a new credential.
func (t *TokenStore) Set(token string) error {
	token = strings.TrimSpace(token)

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.WriteFile(t.path, []byte(token+"\n"), tokenFileMode); err != nil {
		return err
	}
	t.cached = token
	t.loaded = true
	return nil
}

// Invalidate discards the stored credential. Called when the backend rejects
// it so the next authenticated call short-circuits to re-authentication.
func (t *TokenStore) Invalidate() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cached = ""
	t.loaded = true

	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Path returns the backing file path.
func (t *TokenStore) Path() string {
	return t.path
}
