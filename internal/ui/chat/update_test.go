// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/raise-tui/internal/conversation"
	"github.com/jeranaias/raise-tui/internal/model"
)

func pickerModel(n int) Model {
	m := Model{
		keyMap: DefaultKeyMap(),
		view:   ViewSessions,
	}
	for i := 0; i < n; i++ {
		m.sessions = append(m.sessions, model.HistoryEntry{
			SessionID: "sess_" + strings.Repeat("x", i+1),
			Timestamp: time.Now(),
		})
	}
	return m
}

func TestSessionPickerCursorStaysInBounds(t *testing.T) {
	m := pickerModel(2)

	up := tea.KeyMsg{Type: tea.KeyUp}
	down := tea.KeyMsg{Type: tea.KeyDown}

	next, _ := m.updateSessionPicker(up)
	m = next.(Model)
	if m.sessionCursor != 0 {
		t.Errorf("cursor moved above first entry: %d", m.sessionCursor)
	}

	for i := 0; i < 5; i++ {
		next, _ = m.updateSessionPicker(down)
		m = next.(Model)
	}
	if m.sessionCursor != 1 {
		t.Errorf("cursor = %d, want clamped to 1", m.sessionCursor)
	}
}

func TestSessionPickerEscapeReturnsToChat(t *testing.T) {
	m := pickerModel(1)

	next, _ := m.updateSessionPicker(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	if m.view != ViewChat {
		t.Errorf("view = %v, want ViewChat", m.view)
	}
}

func TestSessionPickerEnterPicksSession(t *testing.T) {
	m := pickerModel(2)
	m.sessionCursor = 1

	next, cmd := m.updateSessionPicker(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if m.view != ViewChat {
		t.Errorf("view = %v, want ViewChat", m.view)
	}
	if cmd == nil {
		t.Fatal("expected a switch command")
	}
}

func TestSessionPickerEnterOnEmptyListJustCloses(t *testing.T) {
	m := pickerModel(0)

	next, cmd := m.updateSessionPicker(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if m.view != ViewChat {
		t.Errorf("view = %v, want ViewChat", m.view)
	}
	if cmd != nil {
		t.Error("expected no command for an empty list")
	}
}

func TestSubmitErrorText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"busy", conversation.ErrBusy, "a response is already in progress"},
		{"empty query silent", conversation.ErrEmptyQuery, ""},
		{"other", errors.New("connection refused"), "send failed: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := submitErrorText(tt.err); got != tt.want {
				t.Errorf("submitErrorText(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
