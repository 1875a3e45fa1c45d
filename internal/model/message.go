// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleBot:
		return "Raise"
	default:
		return string(r)
	}
}

// =============================================================================
// REFERENCE TYPE
// =============================================================================

// Reference is a citation to a source document attached to a bot answer.
// It is a pure value owned by the message that cites it.
type Reference struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name"`
	Title      string `json:"title"`
	BlobURL    string `json:"blob_url,omitempty"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a chat session.
//
// While a send is in flight the bot message under construction accumulates
// content in an internal builder; Content is only set when the stream ends.
// Use DisplayContent to read the current text in either state.
type Message struct {
	// Identity. IDs are locally unique within a session, not server-stable.
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content is markdown-formatted UTF-8 text.
	Content string `json:"content"`

	// References is the citation list for a bot answer. A references
	// protocol event replaces this wholesale; it is never merged.
	References []Reference `json:"references,omitempty"`

	// IsError marks a synthetic bot message injected after a transport
	// failure. Error messages are kept in the log like any other message.
	IsError bool `json:"is_error,omitempty"`

	// Streaming state (not persisted).
	// PERFORMANCE: strings.Builder avoids quadratic allocations while
	// chunks arrive.
	IsStreaming   bool            `json:"-"`
	streamContent strings.Builder `json:"-"`
}

// NewUserMessage creates a user message with a generated ID.
func NewUserMessage(content string) *Message {
	return &Message{
		ID:        generateMessageID(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewBotMessage creates an empty bot message in streaming state. It is the
// placeholder appended when a send opens, before any chunk arrives.
func NewBotMessage() *Message {
	return &Message{
		ID:          generateMessageID(),
		Role:        RoleBot,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// NewErrorMessage creates a synthetic bot message describing a failure.
func NewErrorMessage(text string) *Message {
	return &Message{
		ID:        generateMessageID(),
		Role:      RoleBot,
		Content:   text,
		Timestamp: time.Now(),
		IsError:   true,
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendChunk appends an incremental text fragment to a streaming message.
// Content is append-only while the send is in flight; chunks are applied in
// strict arrival order.
func (m *Message) AppendChunk(fragment string) {
	if m.IsStreaming {
		m.streamContent.WriteString(fragment)
	}
}

// SetReferences replaces the reference list wholesale. A later references
// event always supersedes an earlier one (last-write-wins).
func (m *Message) SetReferences(refs []Reference) {
	m.References = refs
}

// Finalize freezes a streaming message: accumulated content becomes Content
// and no further chunks or reference updates are accepted.
func (m *Message) Finalize() {
	if !m.IsStreaming {
		return
	}
	m.Content = m.streamContent.String()
	m.streamContent.Reset()
	m.IsStreaming = false
}

// DisplayContent returns the message text in either state.
func (m *Message) DisplayContent() string {
	if m.IsStreaming {
		return m.streamContent.String()
	}
	return m.Content
}

// IsEmpty returns true if the message has no content yet.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0 && m.streamContent.Len() == 0
}

// Snapshot returns a persistable copy of the message with the current
// streamed content flattened into Content. The original is not finalized.
func (m *Message) Snapshot() *Message {
	cp := &Message{
		ID:         m.ID,
		Role:       m.Role,
		Timestamp:  m.Timestamp,
		Content:    m.DisplayContent(),
		IsError:    m.IsError,
		References: append([]Reference(nil), m.References...),
	}
	if len(cp.References) == 0 {
		cp.References = nil
	}
	return cp
}

// generateMessageID creates a locally unique message ID.
func generateMessageID() string {
	return "msg_" + uuid.NewString()
}
