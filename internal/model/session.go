// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"
)

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session is a server-tracked conversation identity, optionally scoped to
// one document. An empty DocumentID means a general (no-document) session.
type Session struct {
	ID         string     `json:"session_id"`
	DocumentID string     `json:"document_id,omitempty"`
	Messages   []*Message `json:"messages,omitempty"`
}

// IsGeneral returns true for a session not bound to a document.
func (s *Session) IsGeneral() bool {
	return s.DocumentID == ""
}

// =============================================================================
// HISTORY ENTRY TYPE
// =============================================================================

// HistoryEntry is a lightweight summary of a prior session, kept per
// document scope so the user can re-enter a recent conversation quickly.
type HistoryEntry struct {
	SessionID string    `json:"session_id"`
	Preview   string    `json:"last_message_preview"`
	Timestamp time.Time `json:"timestamp"`
}

// =============================================================================
// DOCUMENT TYPE
// =============================================================================

// Document describes an uploaded compliance document. The document service
// itself is an external collaborator; this client only lists documents to
// scope chat sessions to them.
type Document struct {
	ID       string `json:"document_id"`
	FileName string `json:"file_name"`
	Title    string `json:"title"`
	BlobURL  string `json:"blob_url,omitempty"`
}

// =============================================================================
// WIRE HISTORY CONVERSION
// =============================================================================

// HistoryItem is one transcript entry as returned by the history endpoint.
type HistoryItem struct {
	Role       string      `json:"role"`
	Content    string      `json:"content"`
	Timestamp  *time.Time  `json:"timestamp,omitempty"`
	References []Reference `json:"references,omitempty"`
}

// MessagesFromHistory converts a server transcript into the local message
// log, preserving order. Entries with unknown roles are mapped to the bot
// role rather than dropped so the transcript stays complete.
func MessagesFromHistory(items []HistoryItem) []*Message {
	msgs := make([]*Message, 0, len(items))
	for _, it := range items {
		role := RoleBot
		if it.Role == string(RoleUser) {
			role = RoleUser
		}

		msg := &Message{
			ID:         generateMessageID(),
			Role:       role,
			Content:    it.Content,
			References: it.References,
		}
		if it.Timestamp != nil {
			msg.Timestamp = *it.Timestamp
		} else {
			msg.Timestamp = time.Now()
		}
		msgs = append(msgs, msg)
	}
	return msgs
}
