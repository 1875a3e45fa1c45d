// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation drives a chat conversation with the Raise service.
//
// The Engine owns the message log and its lifecycle: submitting a query,
// consuming the streamed response, recovering from failures, and keeping
// the local cache current. It is transport-agnostic; the server side is
// reached through the Backend interface and streamed bytes through
// MessageStream, so tests can drive the whole state machine without a
// network.
package conversation

import (
	"context"
	"errors"

	"github.com/jeranaias/raise-tui/internal/model"
)

// =============================================================================
// STATE
// =============================================================================

// State is the conversation send state. A conversation accepts exactly one
// in-flight send; further submissions are rejected until the current one
// resolves.
type State int

const (
	// StateIdle accepts a new submission.
	StateIdle State = iota

	// StateSending has a response stream in flight.
	StateSending
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	default:
		return "unknown"
	}
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBusy indicates a send is already in flight.
	ErrBusy = errors.New("a response is already in progress")

	// ErrNoSession indicates the engine has no active session yet.
	ErrNoSession = errors.New("no active session")

	// ErrEmptyQuery indicates a blank submission.
	ErrEmptyQuery = errors.New("message is empty")
)

// =============================================================================
// BACKEND INTERFACES
// =============================================================================

// MessageStream is a pull-based response byte stream: finite, not
// restartable, owned by the consumer.
type MessageStream interface {
	// Read returns the next chunk of bytes. done is true on the read that
	// exhausts the stream; err aborts it.
	Read() (chunk []byte, done bool, err error)

	// Close releases the underlying connection.
	Close() error
}

// Backend is the server surface the engine needs. session.Manager
// satisfies it via a thin adapter.
type Backend interface {
	// Create opens a new session, optionally scoped to a document.
	Create(ctx context.Context, documentID string) (*model.Session, error)

	// Delete removes a session. Deleting an expired session succeeds.
	Delete(ctx context.Context, sessionID string) error

	// LoadHistory fetches the server-side transcript for a session.
	LoadHistory(ctx context.Context, sessionID string) ([]*model.Message, error)

	// SendMessage submits a query and returns the response stream.
	SendMessage(ctx context.Context, sessionID, query string) (MessageStream, error)
}

// =============================================================================
// UPDATES
// =============================================================================

// UpdateKind discriminates engine notifications.
type UpdateKind int

const (
	// UpdateStream reports new streamed content or references on the
	// in-progress message.
	UpdateStream UpdateKind = iota

	// UpdateDone reports a completed response; the engine is idle again.
	UpdateDone

	// UpdateFailed reports a failed or stalled send; partial content has
	// been kept and a synthetic error message appended. Err is set.
	UpdateFailed

	// UpdateCanceled reports a user-initiated cancellation; partial
	// content has been kept without an error message.
	UpdateCanceled

	// UpdateSession reports a session change (new, switched, or restored).
	UpdateSession
)

// Update is one engine notification. Notifications are delivered from the
// consuming goroutine; receivers must not call back into the engine
// synchronously from the callback.
type Update struct {
	Kind UpdateKind
	Err  error
}
