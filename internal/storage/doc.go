// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the local cache for chat sessions.
//
// A small key-value Store interface decouples the cache layout from the
// persistence backend; in-memory, atomic-file, and SQLite backends are
// provided. On top of it the Reconciler keeps, per document scope, the
// current session id, the message log, and a bounded list of recent
// sessions, so a conversation is resumable without re-querying the server.
package storage
