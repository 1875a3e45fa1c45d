// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/raise-tui/internal/logging"
)

// =============================================================================
// CACHE WATCHER
// =============================================================================

// Watcher observes a file-backed cache directory and reports keys written
// by another process. With last-write-wins semantics a second client on the
// same machine can clobber the active scope entry; watching lets the UI
// pick up the foreign write instead of silently diverging.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(key string)

	mu      sync.Mutex
	pending map[string]time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWatcher creates a watcher over a FileStore's base directory. onChange
// is called with the decoded cache key after writes settle for the
// debounce interval.
func NewWatcher(dir string, debounce time.Duration, onChange func(key string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		dir:      dir,
		watcher:  fsw,
		debounce: debounce,
		onChange: onChange,
		pending:  make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Watch starts observing the cache directory.
func (w *Watcher) Watch() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	go w.processEvents()
	go w.processPending()

	return nil
}

// processEvents collects raw filesystem events into the pending set.
func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Atomic writes land as a rename; direct writes as Write.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			key, ok := keyFromPath(event.Name)
			if !ok {
				continue
			}

			w.mu.Lock()
			w.pending[key] = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Logger.Warn().Err(err).Msg("cache watcher error")
		}
	}
}

// processPending fires onChange for keys whose writes have settled.
func (w *Watcher) processPending() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()

			w.mu.Lock()
			var settled []string
			for key, changed := range w.pending {
				if now.Sub(changed) >= w.debounce {
					settled = append(settled, key)
					delete(w.pending, key)
				}
			}
			w.mu.Unlock()

			for _, key := range settled {
				w.onChange(key)
			}
		}
	}
}

// keyFromPath reverses the FileStore key encoding for a cache file path.
func keyFromPath(path string) (string, bool) {
	name, ok := strings.CutSuffix(filepath.Base(path), ".json")
	if !ok {
		return "", false
	}
	return strings.ReplaceAll(name, "__", "/"), true
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}
