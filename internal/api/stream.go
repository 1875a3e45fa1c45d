// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"io"
)

// =============================================================================
// BODY STREAM
// =============================================================================

// streamReadSize is the buffer size for each pull from the response body.
const streamReadSize = 4 * 1024

// BodyStream exposes a streamed response body as a pull-based byte stream.
// The caller controls pacing: the next network read only happens on the next
// Read call. A stream is finite and not restartable.
type BodyStream struct {
	body io.ReadCloser
	buf  []byte
	done bool
}

// Read returns the next chunk of bytes. done is true once the stream is
// exhausted; after that Read keeps returning (nil, true, nil). Chunk
// boundaries are arbitrary and carry no protocol meaning.
func (s *BodyStream) Read() ([]byte, bool, error) {
	if s.done {
		return nil, true, nil
	}

	n, err := s.body.Read(s.buf)
	if n > 0 {
		chunk := make([]byte, n)
		copy(chunk, s.buf[:n])
		if err == io.EOF {
			s.done = true
		}
		return chunk, false, nil
	}

	if err == io.EOF {
		s.done = true
		return nil, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("stream read failed: %w", err)
	}
	return nil, false, nil
}

// Close releases the underlying response body. Safe to call more than once.
func (s *BodyStream) Close() error {
	s.done = true
	return s.body.Close()
}

// =============================================================================
// STREAM OPEN
// =============================================================================

// OpenStream issues a request whose response body is consumed incrementally.
// Non-2xx responses are drained and returned as the same typed errors as
// DoJSON; on success the caller owns the stream and must Close it.
func (c *Client) OpenStream(ctx context.Context, method, path string, body any) (*BodyStream, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := readBody(resp)
		resp.Body.Close()
		return nil, c.errorFromResponse(resp.StatusCode, data)
	}

	return &BodyStream{
		body: resp.Body,
		buf:  make([]byte, streamReadSize),
	}, nil
}
