// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/raise-tui/internal/conversation"
)

// =============================================================================
// COMMANDS
// =============================================================================

// waitForUpdateCmd blocks on the engine update channel and bridges the
// next notification into the update loop. It is re-armed after each
// EngineUpdateMsg.
func waitForUpdateCmd(updates <-chan conversation.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return nil
		}
		return EngineUpdateMsg{Update: u}
	}
}

func submitCmd(engine *conversation.Engine, query string) tea.Cmd {
	return func() tea.Msg {
		return SubmitResultMsg{Err: engine.Submit(context.Background(), query)}
	}
}

func newSessionCmd(engine *conversation.Engine) tea.Cmd {
	return func() tea.Msg {
		return SessionOpMsg{Err: engine.NewSession(context.Background())}
	}
}

func switchSessionCmd(engine *conversation.Engine, sessionID string) tea.Cmd {
	return func() tea.Msg {
		return SessionOpMsg{Err: engine.SwitchSession(context.Background(), sessionID)}
	}
}

func refreshCmd(engine *conversation.Engine) tea.Cmd {
	return func() tea.Msg {
		return SessionOpMsg{Err: engine.Refresh(context.Background())}
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - inputAreaHeight - headerHeight
		m.input.Width = msg.Width - 4
		m.initRenderer()
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		if m.view == ViewSessions {
			return m.updateSessionPicker(msg)
		}
		return m.updateChat(msg)

	case EngineUpdateMsg:
		return m.handleEngineUpdate(msg.Update)

	case SubmitResultMsg:
		if msg.Err != nil {
			m.statusMsg = submitErrorText(msg.Err)
		}
		return m, nil

	case SessionOpMsg:
		if msg.Err != nil {
			m.statusMsg = fmt.Sprintf("session operation failed: %v", msg.Err)
		}
		return m, nil

	case CacheChangedMsg:
		// Another process wrote this scope: re-read the cache so both
		// views converge on the last write.
		m.refreshTranscript()
		return m, nil

	case ConfigReloadedMsg:
		if msg.Markdown != m.markdown {
			m.markdown = msg.Markdown
			m.initRenderer()
			m.refreshTranscript()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// updateChat handles keys on the transcript screen.
func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Submit):
		query := m.input.Value()
		if query == "" {
			return m, nil
		}
		if m.engine.State() == conversation.StateSending {
			m.statusMsg = "a response is already in progress"
			return m, nil
		}
		m.input.Reset()
		m.statusMsg = ""
		return m, submitCmd(m.engine, query)

	case key.Matches(msg, m.keyMap.Cancel):
		m.engine.Cancel()
		return m, nil

	case key.Matches(msg, m.keyMap.NewSession):
		return m, newSessionCmd(m.engine)

	case key.Matches(msg, m.keyMap.Sessions):
		m.sessions = m.engine.History()
		m.sessionCursor = 0
		m.view = ViewSessions
		return m, nil

	case key.Matches(msg, m.keyMap.Refresh):
		return m, refreshCmd(m.engine)

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keyMap.Up):
		m.viewport.LineUp(1)
		return m, nil

	case key.Matches(msg, m.keyMap.Down):
		m.viewport.LineDown(1)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// updateSessionPicker handles keys on the recent-session screen.
func (m Model) updateSessionPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Cancel), key.Matches(msg, m.keyMap.Sessions):
		m.view = ViewChat
		return m, nil

	case key.Matches(msg, m.keyMap.Up):
		if m.sessionCursor > 0 {
			m.sessionCursor--
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Down):
		if m.sessionCursor < len(m.sessions)-1 {
			m.sessionCursor++
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Submit):
		if len(m.sessions) == 0 {
			m.view = ViewChat
			return m, nil
		}
		picked := m.sessions[m.sessionCursor].SessionID
		m.view = ViewChat
		return m, switchSessionCmd(m.engine, picked)
	}
	return m, nil
}

// handleEngineUpdate applies one engine notification and re-arms the
// bridge command.
func (m Model) handleEngineUpdate(u conversation.Update) (tea.Model, tea.Cmd) {
	switch u.Kind {
	case conversation.UpdateStream:
		m.refreshTranscript()
		m.viewport.GotoBottom()
	case conversation.UpdateDone:
		m.statusMsg = ""
		m.refreshTranscript()
		m.viewport.GotoBottom()
	case conversation.UpdateCanceled:
		m.statusMsg = "response canceled"
		m.refreshTranscript()
	case conversation.UpdateFailed:
		m.refreshTranscript()
		m.viewport.GotoBottom()
	case conversation.UpdateSession:
		m.statusMsg = ""
		m.refreshTranscript()
		m.viewport.GotoBottom()
	}
	return m, waitForUpdateCmd(m.updates)
}

// submitErrorText maps a synchronous submit error to a status line.
func submitErrorText(err error) string {
	switch {
	case errors.Is(err, conversation.ErrBusy):
		return "a response is already in progress"
	case errors.Is(err, conversation.ErrEmptyQuery):
		return ""
	default:
		return fmt.Sprintf("send failed: %v", err)
	}
}
