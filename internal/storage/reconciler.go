// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jeranaias/raise-tui/internal/model"
	"github.com/jeranaias/raise-tui/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultHistoryLimit bounds the recent-session list per document scope.
	DefaultHistoryLimit = 10

	// DefaultPreviewWidth is the display width of history previews.
	DefaultPreviewWidth = 80

	// GeneralScope is the cache scope for sessions not bound to a document.
	GeneralScope = "general"
)

// =============================================================================
// CACHE ENTRY
// =============================================================================

// Entry is the per-scope cache record: the active session id plus the
// recent-session history list. Message logs are stored separately per
// session id so switching back to an archived session needs no network call.
type Entry struct {
	SessionID string               `json:"session_id"`
	History   []model.HistoryEntry `json:"history,omitempty"`
}

// =============================================================================
// RECONCILER
// =============================================================================

// Reconciler merges locally cached session state with server-fetched
// history. All writes are last-write-wins per scope key; two processes
// writing the same scope race, and the last write is what persists.
type Reconciler struct {
	store        Store
	historyLimit int
	previewWidth int
}

// NewReconciler creates a reconciler over the given store.
func NewReconciler(store Store) *Reconciler {
	return &Reconciler{
		store:        store,
		historyLimit: DefaultHistoryLimit,
		previewWidth: DefaultPreviewWidth,
	}
}

// WithHistoryLimit overrides the recent-session list bound.
func (r *Reconciler) WithHistoryLimit(n int) *Reconciler {
	if n > 0 {
		r.historyLimit = n
	}
	return r
}

// scopeKey maps a document id to its cache key. An empty id is the
// general (no-document) scope.
func scopeKey(documentID string) string {
	if documentID == "" {
		return "scope/" + GeneralScope
	}
	return "scope/" + documentID
}

// sessionKey maps a session id to its message-log cache key.
func sessionKey(sessionID string) string {
	return "session/" + sessionID
}

// =============================================================================
// SCOPE OPERATIONS
// =============================================================================

// LoadScope reads the cache entry for a document scope. A missing entry
// yields an empty Entry, not an error.
func (r *Reconciler) LoadScope(documentID string) (*Entry, error) {
	data, ok, err := r.store.Get(scopeKey(documentID))
	if err != nil {
		return nil, fmt.Errorf("failed to load cache scope: %w", err)
	}
	if !ok {
		return &Entry{}, nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// A corrupt entry is treated as absent rather than blocking the
		// feature; the next persist rewrites it.
		return &Entry{}, nil
	}
	return &entry, nil
}

// SaveScope writes the cache entry for a document scope.
func (r *Reconciler) SaveScope(documentID string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache scope: %w", err)
	}
	return r.store.Set(scopeKey(documentID), data)
}

// =============================================================================
// MESSAGE LOG OPERATIONS
// =============================================================================

// LoadMessages reads the cached message log for a session id. ok is false
// when the session has no cached log.
func (r *Reconciler) LoadMessages(sessionID string) ([]*model.Message, bool, error) {
	data, ok, err := r.store.Get(sessionKey(sessionID))
	if err != nil {
		return nil, false, fmt.Errorf("failed to load cached messages: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	var msgs []*model.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, false, nil
	}
	return msgs, true, nil
}

// SaveMessages writes the message log for a session id. Streaming messages
// are flattened to snapshots so the in-progress content is what persists.
func (r *Reconciler) SaveMessages(sessionID string, msgs []*model.Message) error {
	snaps := make([]*model.Message, 0, len(msgs))
	for _, m := range msgs {
		snaps = append(snaps, m.Snapshot())
	}

	data, err := json.Marshal(snaps)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}
	return r.store.Set(sessionKey(sessionID), data)
}

// Persist writes the current state of a scope in one step: active session
// id, its message log, and the history list. Called after every state
// change that should survive a reload.
func (r *Reconciler) Persist(documentID, sessionID string, msgs []*model.Message, history []model.HistoryEntry) error {
	if err := r.SaveMessages(sessionID, msgs); err != nil {
		return err
	}
	return r.SaveScope(documentID, &Entry{SessionID: sessionID, History: history})
}

// DeleteMessages removes a session's cached message log.
func (r *Reconciler) DeleteMessages(sessionID string) error {
	return r.store.Delete(sessionKey(sessionID))
}

// =============================================================================
// HISTORY LIST
// =============================================================================

// Archive records a session in the scope's history list: a new entry with
// a preview of the last message is prepended, any earlier entry for the
// same session id is removed (a session reappearing replaces its old entry
// rather than duplicating), and the list is capped at the history limit.
func (r *Reconciler) Archive(entry *Entry, sessionID string, msgs []*model.Message) {
	if sessionID == "" || len(msgs) == 0 {
		return
	}

	preview := util.Preview(msgs[len(msgs)-1].DisplayContent(), r.previewWidth)
	he := model.HistoryEntry{
		SessionID: sessionID,
		Preview:   preview,
		Timestamp: time.Now(),
	}

	history := make([]model.HistoryEntry, 0, len(entry.History)+1)
	history = append(history, he)
	for _, old := range entry.History {
		if old.SessionID == sessionID {
			continue
		}
		history = append(history, old)
	}
	if len(history) > r.historyLimit {
		history = history[:r.historyLimit]
	}
	entry.History = history
}

// RemoveFromHistory drops a session from the scope's history list, used
// after an explicit delete.
func (r *Reconciler) RemoveFromHistory(entry *Entry, sessionID string) {
	kept := entry.History[:0]
	for _, he := range entry.History {
		if he.SessionID != sessionID {
			kept = append(kept, he)
		}
	}
	entry.History = kept
}

// InHistory reports whether a session id is present in the history list.
func (e *Entry) InHistory(sessionID string) bool {
	for _, he := range e.History {
		if he.SessionID == sessionID {
			return true
		}
	}
	return false
}
