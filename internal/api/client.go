// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/raise-tui/internal/logging"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout is the timeout for non-streamed API requests.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize limits non-streamed response bodies (10MB).
	MaxResponseSize = 10 * 1024 * 1024

	// userAgent identifies this client to the Raise service.
	userAgent = "raise-tui/0.1.0"
)

// PERFORMANCE: Shared HTTP clients with connection pooling for all requests.
var (
	sharedHTTPClient = &http.Client{
		Transport: poolingTransport(),
		Timeout:   DefaultTimeout,
	}

	// sharedStreamingClient has no client timeout; streamed sends are
	// bounded by the request context instead.
	sharedStreamingClient = &http.Client{
		Transport: poolingTransport(),
	}
)

func poolingTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotConfigured indicates no bearer token is available.
	ErrNotConfigured = errors.New("not logged in")

	// ErrAuthFailed indicates the server rejected the bearer token (401/403).
	// The token source has already been invalidated when this is returned;
	// the caller must stop processing the current stream.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrNotFound indicates the requested resource does not exist (404),
	// e.g. an expired session id.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")
)

// APIError represents a non-2xx response from the Raise service.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("raise API error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("raise API error (HTTP %d)", e.Status)
}

// =============================================================================
// TOKEN SOURCE
// =============================================================================

// TokenSource supplies the bearer token and accepts invalidation when the
// server rejects it. The login flow behind it is an external collaborator.
type TokenSource interface {
	// Token returns the current bearer token, or "" when logged out.
	Token() string

	// Invalidate purges the stored token after a 401/403 response.
	Invalidate()
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is the HTTP transport adapter for the Raise service.
type Client struct {
	baseURL string
	tokens  TokenSource
	limiter *rate.Limiter

	httpClient   *http.Client
	streamClient *http.Client
}

// NewClient creates a client for the given base URL. The base URL and token
// source are explicit constructor parameters, never ambient globals.
func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		tokens:       tokens,
		limiter:      rate.NewLimiter(rate.Inf, 1),
		httpClient:   sharedHTTPClient,
		streamClient: sharedStreamingClient,
	}
}

// WithRateLimit caps outbound requests at n per minute. Zero disables the cap.
func (c *Client) WithRateLimit(perMinute int) *Client {
	if perMinute <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
		return c
	}
	c.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
	return c
}

// WithHTTPClient overrides both HTTP clients. Used in tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	c.streamClient = hc
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// IsConfigured returns true if a bearer token is available.
func (c *Client) IsConfigured() bool {
	return c.tokens != nil && c.tokens.Token() != ""
}

// setHeaders sets auth and content headers on an outgoing request.
func (c *Client) setHeaders(req *http.Request) {
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
}

// newRequest builds a request with an optional JSON body.
func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	return req, nil
}

// =============================================================================
// JSON HELPERS
// =============================================================================

// DoJSON issues a request and decodes a JSON response into out. Pass a nil
// out to discard the body (delete-style calls).
func (c *Client) DoJSON(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	logging.Logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("api request")

	data, err := readBody(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.errorFromResponse(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// readBody reads a non-streamed response body with a size limit.
func readBody(resp *http.Response) ([]byte, error) {
	limited := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// errorFromResponse converts a non-2xx response into a typed error.
//
// 401/403 are the distinguished auth failure: the token source is purged
// here so callers only need to stop and surface the outcome.
func (c *Client) errorFromResponse(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		if c.tokens != nil {
			c.tokens.Invalidate()
		}
		logging.Logger.Warn().Int("status", status).Msg("auth rejected, token invalidated")
		if msg != "" {
			return fmt.Errorf("%w: %s", ErrAuthFailed, msg)
		}
		return ErrAuthFailed
	case http.StatusNotFound:
		if msg != "" {
			return fmt.Errorf("%w: %s", ErrNotFound, msg)
		}
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return &APIError{Status: status, Message: msg}
	}
}
