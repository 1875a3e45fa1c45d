// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the HTTP transport adapter for the Raise service.
//
// The client attaches bearer-token auth from an injected TokenSource,
// surfaces non-2xx responses as typed errors, and exposes streamed response
// bodies as a pull-based byte stream so the caller controls pacing. It never
// retries on behalf of the chat path; retry and surface policy belong to
// the caller.
package api
