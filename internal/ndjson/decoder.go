// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ndjson decodes the newline-delimited JSON protocol used by the
// Raise chat endpoint into typed events.
//
// The wire format interleaves incremental answer fragments with a final
// reference list; each line is an independently parseable JSON value:
//
//	{"type":"chunk","content":"..."}
//	{"type":"references","data":[{"document_id":"...","file_name":"...","title":"..."}]}
//
// Chunks arriving from the transport may split or merge lines arbitrarily;
// the decoder carries partial lines across reads so the decoded event
// sequence is invariant under re-chunking.
package ndjson

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/jeranaias/raise-tui/internal/logging"
	"github.com/jeranaias/raise-tui/internal/model"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// EventType discriminates protocol events.
type EventType string

const (
	// EventChunk carries an incremental text fragment to append.
	EventChunk EventType = "chunk"

	// EventReferences carries a full replacement of the in-progress
	// message's reference list. It is not an append.
	EventReferences EventType = "references"
)

// Event is one decoded protocol event.
type Event struct {
	Type       EventType
	Content    string            // set for EventChunk
	References []model.Reference // set for EventReferences
}

// =============================================================================
// SOURCE
// =============================================================================

// Source is a pull-based byte stream: finite, not restartable. The decoder
// calls Read only when the caller asks for the next event, so backpressure
// propagates naturally. api.BodyStream satisfies this interface.
type Source interface {
	Read() (chunk []byte, done bool, err error)
}

// =============================================================================
// DECODER
// =============================================================================

// Decoder turns a byte stream into a sequence of protocol events.
type Decoder struct {
	src     Source
	carry   []byte  // trailing incomplete line from the previous read
	pending []Event // decoded events not yet returned
	done    bool
}

// NewDecoder creates a decoder reading from src.
func NewDecoder(src Source) *Decoder {
	return &Decoder{src: src}
}

// Next returns the next protocol event in strict arrival order. It returns
// io.EOF once the stream is exhausted. Malformed lines are skipped, never
// fatal: a garbled line must not sacrifice the rest of the answer.
func (d *Decoder) Next() (Event, error) {
	for {
		if len(d.pending) > 0 {
			ev := d.pending[0]
			d.pending = d.pending[1:]
			return ev, nil
		}

		if d.done {
			return Event{}, io.EOF
		}

		chunk, done, err := d.src.Read()
		if err != nil {
			return Event{}, err
		}

		if len(chunk) > 0 {
			d.carry = append(d.carry, chunk...)
			d.splitCarry()
		}

		if done {
			d.done = true
			// One final parse attempt for a non-empty trailing fragment
			// (a last line without a newline terminator).
			if ev, ok := parseLine(d.carry); ok {
				d.pending = append(d.pending, ev)
			}
			d.carry = nil
		}
	}
}

// splitCarry extracts complete lines from the carry buffer, decoding each
// into an event. The trailing incomplete fragment stays buffered for the
// next read.
func (d *Decoder) splitCarry() {
	for {
		idx := bytes.IndexByte(d.carry, '\n')
		if idx < 0 {
			return
		}
		line := d.carry[:idx]
		d.carry = d.carry[idx+1:]

		if ev, ok := parseLine(line); ok {
			d.pending = append(d.pending, ev)
		}
	}
}

// =============================================================================
// LINE PARSING
// =============================================================================

// wireEvent is the raw JSON shape of one protocol line.
type wireEvent struct {
	Type    string            `json:"type"`
	Content string            `json:"content"`
	Data    []model.Reference `json:"data"`
}

// parseLine decodes a single protocol line. ok is false for lines to skip:
// blank lines and unknown event types silently (forward compatibility),
// unparseable lines with a logged warning.
func parseLine(line []byte) (Event, bool) {
	line = bytes.TrimRight(line, "\r")
	if len(bytes.TrimSpace(line)) == 0 {
		return Event{}, false
	}

	var raw wireEvent
	if err := json.Unmarshal(line, &raw); err != nil {
		logging.Logger.Warn().
			Err(err).
			Int("line_bytes", len(line)).
			Msg("skipping malformed stream line")
		return Event{}, false
	}

	switch raw.Type {
	case string(EventChunk):
		return Event{Type: EventChunk, Content: raw.Content}, true
	case string(EventReferences):
		refs := raw.Data
		if refs == nil {
			refs = []model.Reference{}
		}
		return Event{Type: EventReferences, References: refs}, true
	default:
		// Unknown event types are skipped silently so the protocol can
		// grow without breaking older clients.
		return Event{}, false
	}
}
