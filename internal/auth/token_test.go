// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestTokenRoundTrip(t *testing.T) {
	dir := t.TempDir()

	ts, err := NewTokenStoreWithDir(dir)
	if err != nil {
		t.Fatalf("NewTokenStoreWithDir() error = %v", err)
	}
	if ts.HasToken() {
		t.Error("fresh store should have no token")
	}

	if err := ts.Save("  secret-token-123  "); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if got := ts.Token(); got != "secret-token-123" {
		t.Errorf("Token() = %q, want trimmed %q", got, "secret-token-123")
	}

	// A second store over the same directory decrypts the saved token.
	ts2, err := NewTokenStoreWithDir(dir)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if got := ts2.Token(); got != "secret-token-123" {
		t.Errorf("reloaded Token() = %q, want %q", got, "secret-token-123")
	}
}

func TestTokenNotStoredInPlaintext(t *testing.T) {
	dir := t.TempDir()
	ts, err := NewTokenStoreWithDir(dir)
	if err != nil {
		t.Fatalf("NewTokenStoreWithDir() error = %v", err)
	}
	if err := ts.Save("super-secret-value"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "token"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if bytes.Contains(data, []byte("super-secret-value")) {
		t.Error("token file contains the plaintext token")
	}
}

func TestInvalidateDropsInMemoryToken(t *testing.T) {
	dir := t.TempDir()
	ts, _ := NewTokenStoreWithDir(dir)
	if err := ts.Save("tok"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	ts.Invalidate()

	if ts.HasToken() {
		t.Error("HasToken() = true after Invalidate()")
	}
	if got := ts.Token(); got != "" {
		t.Errorf("Token() = %q after Invalidate(), want empty", got)
	}
}

func TestSaveEmptyTokenRejected(t *testing.T) {
	ts, _ := NewTokenStoreWithDir(t.TempDir())
	if err := ts.Save("   "); err == nil {
		t.Error("Save() of blank token should fail")
	}
}

func TestClearRemovesToken(t *testing.T) {
	dir := t.TempDir()
	ts, _ := NewTokenStoreWithDir(dir)
	if err := ts.Save("tok"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := ts.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "token")); !os.IsNotExist(err) {
		t.Error("token file still exists after Clear()")
	}

	// Reopen: no token, but not an error.
	ts2, err := NewTokenStoreWithDir(dir)
	if err != nil {
		t.Fatalf("reopen after Clear() error = %v", err)
	}
	if ts2.HasToken() {
		t.Error("token survived Clear()")
	}
}

func TestCorruptTokenFile(t *testing.T) {
	dir := t.TempDir()
	ts, _ := NewTokenStoreWithDir(dir)
	if err := ts.Save("tok"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Flip a ciphertext byte: authentication must fail on reload.
	path := filepath.Join(dir, "token")
	data, _ := os.ReadFile(path)
	data[len(data)-1] ^= 0xFF
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := NewTokenStoreWithDir(dir); err == nil {
		t.Error("reopen with tampered token file should fail")
	}
}
