// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session wraps the chat session endpoints of the Raise service.
//
// The server owns session identity; this package only translates between
// the wire protocol and local model types. Conversation flow lives in the
// conversation package, local persistence in storage.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jeranaias/raise-tui/internal/api"
	"github.com/jeranaias/raise-tui/internal/logging"
	"github.com/jeranaias/raise-tui/internal/model"
)

// =============================================================================
// MANAGER
// =============================================================================

// Manager performs session lifecycle operations against the server.
type Manager struct {
	client *api.Client
}

// NewManager creates a session manager over the given API client.
func NewManager(client *api.Client) *Manager {
	return &Manager{client: client}
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type createRequest struct {
	DocumentID string `json:"document_id,omitempty"`
}

type createResponse struct {
	SessionID  string `json:"session_id"`
	DocumentID string `json:"document_id,omitempty"`
}

type historyResponse struct {
	ChatHistory []model.HistoryItem `json:"chat_history"`
}

type messageRequest struct {
	Query string `json:"query"`
}

// =============================================================================
// OPERATIONS
// =============================================================================

// List returns the sessions not bound to any document.
func (m *Manager) List(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session
	if err := m.client.DoJSON(ctx, http.MethodGet, "/api/chat/no-document", nil, &sessions); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Create asks the server for a new session, optionally scoped to a
// document. The returned session has no messages yet.
func (m *Manager) Create(ctx context.Context, documentID string) (*model.Session, error) {
	var body any
	if documentID != "" {
		body = createRequest{DocumentID: documentID}
	}

	var resp createResponse
	if err := m.client.DoJSON(ctx, http.MethodPost, "/api/chat/new", body, &resp); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if resp.SessionID == "" {
		return nil, errors.New("server returned an empty session id")
	}

	logging.Logger.Info().
		Str("session_id", resp.SessionID).
		Str("document_id", resp.DocumentID).
		Msg("session created")

	return &model.Session{ID: resp.SessionID, DocumentID: resp.DocumentID}, nil
}

// Delete removes a session on the server. Deleting a session that no
// longer exists succeeds; the end state is the same either way.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	err := m.client.DoJSON(ctx, http.MethodDelete, "/api/chat/"+url.PathEscape(sessionID), nil, nil)
	if err != nil && !errors.Is(err, api.ErrNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// LoadHistory fetches the server-side transcript for a session and
// converts it into the local message log.
func (m *Manager) LoadHistory(ctx context.Context, sessionID string) ([]*model.Message, error) {
	var resp historyResponse
	path := "/api/chat/" + url.PathEscape(sessionID) + "/history"
	if err := m.client.DoJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return model.MessagesFromHistory(resp.ChatHistory), nil
}

// SendMessage submits a query to a session and returns the response body
// as a pull-based stream. The caller owns the stream and must close it.
func (m *Manager) SendMessage(ctx context.Context, sessionID, query string) (*api.BodyStream, error) {
	path := "/api/chat/" + url.PathEscape(sessionID) + "/message"
	stream, err := m.client.OpenStream(ctx, http.MethodPost, path, messageRequest{Query: query})
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// ListDocuments returns the documents available for scoped sessions.
func (m *Manager) ListDocuments(ctx context.Context) ([]model.Document, error) {
	var docs []model.Document
	if err := m.client.DoJSON(ctx, http.MethodGet, "/api/documents", nil, &docs); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}
