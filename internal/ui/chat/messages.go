// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file defines the Bubble Tea message types used by the chat
// interface. Engine notifications arrive on a channel and are bridged
// into the update loop as EngineUpdateMsg values.
package chat

import (
	"github.com/jeranaias/raise-tui/internal/conversation"
)

// =============================================================================
// ENGINE MESSAGES
// =============================================================================

// EngineUpdateMsg delivers one engine notification to the update loop.
type EngineUpdateMsg struct {
	Update conversation.Update
}

// SubmitResultMsg reports the synchronous outcome of a Submit call.
type SubmitResultMsg struct {
	Err error
}

// SessionOpMsg reports the outcome of a session operation (new, switch,
// delete, refresh).
type SessionOpMsg struct {
	Err error
}

// CacheChangedMsg reports that another process wrote the cache scope the
// UI is displaying.
type CacheChangedMsg struct {
	Key string
}

// ConfigReloadedMsg carries settings picked up from a config file edit
// while the TUI is running.
type ConfigReloadedMsg struct {
	Markdown bool
}

// =============================================================================
// UI MESSAGES
// =============================================================================

// SpinnerTickMsg drives the thinking spinner.
type SpinnerTickMsg struct{}
