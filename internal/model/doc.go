// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions, messages,
// and document references used throughout the raise client.
//
// The types here are transport-agnostic: the api package maps them onto the
// wire protocol and the storage package persists them as JSON.
package model
