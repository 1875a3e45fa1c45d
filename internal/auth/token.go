// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth stores the API bearer token encrypted at rest.
//
// The token and a randomly generated key live in separate files under
// ~/.raise/. This keeps a casual `cat` of the config directory from
// exposing the credential; it is not a defense against an attacker who
// can read both files.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/jeranaias/raise-tui/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	tokenFileName = "token"
	keyFileName   = "token.key"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoToken indicates no token has been saved yet.
	ErrNoToken = errors.New("no API token saved: run 'raise login'")

	// ErrTokenCorrupt indicates the token file failed authentication,
	// usually because the key file was replaced or the file was edited.
	ErrTokenCorrupt = errors.New("saved token is corrupt: run 'raise login' again")
)

// =============================================================================
// TOKEN STORE
// =============================================================================

// TokenStore loads and saves the bearer token and satisfies the client's
// token source. Invalidate drops the in-memory token so the next request
// fails fast with a reauthentication hint instead of retrying a dead
// credential.
type TokenStore struct {
	dir string

	mu    sync.RWMutex
	token string
}

// NewTokenStore creates a token store under the default config directory.
func NewTokenStore() (*TokenStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewTokenStoreWithDir(filepath.Join(homeDir, ".raise"))
}

// NewTokenStoreWithDir creates a token store rooted at dir.
func NewTokenStoreWithDir(dir string) (*TokenStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	ts := &TokenStore{dir: dir}
	if err := ts.load(); err != nil && !errors.Is(err, ErrNoToken) {
		return nil, err
	}
	return ts, nil
}

// Token returns the current bearer token, or "" when none is available.
func (ts *TokenStore) Token() string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.token
}

// Invalidate drops the in-memory token after the server rejected it. The
// on-disk copy is kept so the user can inspect it; Save overwrites it.
func (ts *TokenStore) Invalidate() {
	ts.mu.Lock()
	ts.token = ""
	ts.mu.Unlock()
}

// HasToken reports whether a token is currently loaded.
func (ts *TokenStore) HasToken() bool {
	return ts.Token() != ""
}

// Save encrypts and persists a new token, replacing any previous one.
func (ts *TokenStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is empty")
	}

	key, err := ts.loadOrCreateKey()
	if err != nil {
		return err
	}
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("failed to initialize cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(token), nil)
	if err := util.AtomicWriteFile(ts.tokenPath(), sealed, 0600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}

	ts.mu.Lock()
	ts.token = token
	ts.mu.Unlock()
	return nil
}

// Clear removes the saved token from disk and memory.
func (ts *TokenStore) Clear() error {
	ts.Invalidate()
	if err := os.Remove(ts.tokenPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// load reads and decrypts the token file into memory.
func (ts *TokenStore) load() error {
	sealed, err := os.ReadFile(ts.tokenPath())
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNoToken
		}
		return err
	}

	key, err := os.ReadFile(ts.keyPath())
	if err != nil {
		if os.IsNotExist(err) {
			return ErrTokenCorrupt
		}
		return err
	}
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return ErrTokenCorrupt
	}
	if len(sealed) < aead.NonceSize() {
		return ErrTokenCorrupt
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return ErrTokenCorrupt
	}

	ts.mu.Lock()
	ts.token = string(plaintext)
	ts.mu.Unlock()
	zeroBytes(plaintext)
	return nil
}

// loadOrCreateKey returns the encryption key, generating one on first use.
func (ts *TokenStore) loadOrCreateKey() ([]byte, error) {
	key, err := os.ReadFile(ts.keyPath())
	if err == nil {
		if len(key) != chacha20poly1305.KeySize {
			return nil, ErrTokenCorrupt
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	key = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := util.AtomicWriteFile(ts.keyPath(), key, 0600); err != nil {
		return nil, fmt.Errorf("failed to write key: %w", err)
	}
	return key, nil
}

func (ts *TokenStore) tokenPath() string {
	return filepath.Join(ts.dir, tokenFileName)
}

func (ts *TokenStore) keyPath() string {
	return filepath.Join(ts.dir, keyFileName)
}

// zeroBytes zeros key material so it does not linger in memory.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
