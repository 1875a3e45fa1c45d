// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/raise-tui/internal/util"
)

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore persists each key as one JSON file under a base directory.
// Writes are atomic (temp file + fsync + rename), so a crash never leaves a
// partially written entry.
type FileStore struct {
	// BaseDir is the cache directory, default ~/.raise/cache/.
	BaseDir string
}

// NewFileStore creates a file store rooted at the default cache directory.
func NewFileStore() (*FileStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewFileStoreWithDir(filepath.Join(homeDir, ".raise", "cache"))
}

// NewFileStoreWithDir creates a file store rooted at baseDir.
func NewFileStoreWithDir(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileStore{BaseDir: baseDir}, nil
}

// Get returns the value for key.
func (s *FileStore) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Set stores value under key atomically.
func (s *FileStore) Set(key string, value []byte) error {
	return util.AtomicWriteFile(s.path(key), value, 0600)
}

// Delete removes key.
func (s *FileStore) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// path maps a key to a file path. Keys contain "/" separators which are
// flattened so every entry lives directly in BaseDir.
func (s *FileStore) path(key string) string {
	return filepath.Join(s.BaseDir, encodeKey(key)+".json")
}

// encodeKey makes a key safe for use as a file name.
func encodeKey(key string) string {
	replacer := strings.NewReplacer("/", "__", "\\", "__", ":", "_", "..", "_")
	return replacer.Replace(key)
}
