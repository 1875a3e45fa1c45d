// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/raise-tui/internal/conversation"
	"github.com/jeranaias/raise-tui/internal/model"
	"github.com/jeranaias/raise-tui/internal/util"
)

const (
	headerHeight    = 2
	inputAreaHeight = 4
)

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m Model) View() string {
	if m.view == ViewSessions {
		return m.viewSessions()
	}

	var b strings.Builder
	b.WriteString(m.viewHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.viewInput())
	b.WriteString("\n")
	b.WriteString(m.viewStatusBar())
	return b.String()
}

// viewHeader renders the title line with the document scope.
func (m Model) viewHeader() string {
	title := m.theme.HeaderTitle.Render("Raise")
	scope := "general chat"
	if m.docTitle != "" {
		scope = m.docTitle
	} else if id := m.engine.DocumentID(); id != "" {
		scope = id
	}
	return m.theme.Header.Width(m.width).Render(
		title + "  " + m.theme.HeaderScope.Render(scope),
	)
}

// viewInput renders the input area, replaced by a spinner while sending.
func (m Model) viewInput() string {
	if m.engine.State() == conversation.StateSending {
		thinking := m.spinner.View() + " " + m.theme.ThinkingText.Render("answering... (Esc to cancel)")
		return m.theme.InputContainer.Width(m.width).Render(thinking)
	}
	return m.theme.InputContainer.Width(m.width).Render(m.input.View())
}

// viewStatusBar renders the bottom status line.
func (m Model) viewStatusBar() string {
	var state string
	if m.engine.State() == conversation.StateSending {
		state = m.theme.StatusBusy.Render("busy")
	} else {
		state = m.theme.StatusIdle.Render("ready")
	}

	session := m.theme.SessionMeta.Render("session " + util.TruncateString(m.engine.SessionID(), 16))

	shortcuts := strings.Join([]string{
		m.theme.ShortcutKey.Render("C-n") + m.theme.ShortcutDesc.Render(" new"),
		m.theme.ShortcutKey.Render("C-s") + m.theme.ShortcutDesc.Render(" sessions"),
		m.theme.ShortcutKey.Render("C-r") + m.theme.ShortcutDesc.Render(" reload"),
		m.theme.ShortcutKey.Render("C-q") + m.theme.ShortcutDesc.Render(" quit"),
	}, "  ")

	left := state + "  " + session
	if m.statusMsg != "" {
		left += "  " + m.theme.ErrorText.Render(m.statusMsg)
	}
	return m.theme.StatusBar.Width(m.width).Render(left + "  " + shortcuts)
}

// viewSessions renders the recent-session picker.
func (m Model) viewSessions() string {
	var b strings.Builder
	b.WriteString(m.theme.Header.Width(m.width).Render(
		m.theme.HeaderTitle.Render("Recent sessions"),
	))
	b.WriteString("\n\n")

	if len(m.sessions) == 0 {
		b.WriteString(m.theme.SessionMeta.Render("  No recent sessions in this scope."))
	}

	for i, he := range m.sessions {
		line := fmt.Sprintf("%s  %s",
			he.Timestamp.Format("Jan 02 15:04"),
			he.Preview,
		)
		if i == m.sessionCursor {
			b.WriteString(m.theme.SessionItemSelected.Render("> " + line))
		} else {
			b.WriteString(m.theme.SessionItem.Render("  " + line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.theme.ShortcutDesc.Render("  Enter resume   Esc back"))
	return b.String()
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// refreshTranscript re-renders the message log into the viewport.
func (m *Model) refreshTranscript() {
	msgs := m.engine.Messages()

	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}

	if m.engine.State() == conversation.StateSending && len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		if last.Role == model.RoleBot && last.Content == "" {
			b.WriteString(m.theme.ThinkingText.Render("waiting for the first chunk..."))
			b.WriteString("\n")
		}
	}

	m.viewport.SetContent(b.String())
}

// renderMessage renders one message with its role label and references.
func (m *Model) renderMessage(msg *model.Message) string {
	label := m.theme.RoleLabel.Render(msg.Role.DisplayName()) +
		" " + m.theme.Timestamp.Render(msg.Timestamp.Format("15:04"))

	bubbleWidth := m.width - 8
	if bubbleWidth < 20 {
		bubbleWidth = 20
	}

	var bubble string
	switch {
	case msg.IsError:
		bubble = m.theme.ErrorBubble.Width(bubbleWidth).Render(msg.Content)
	case msg.Role == model.RoleUser:
		bubble = m.theme.UserBubble.MaxWidth(bubbleWidth).Render(msg.Content)
	default:
		bubble = m.theme.BotBubble.MaxWidth(bubbleWidth).Render(m.renderBotContent(msg.Content))
	}

	parts := []string{label, bubble}
	if len(msg.References) > 0 {
		parts = append(parts, m.renderReferences(msg.References))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderBotContent applies markdown rendering to a bot answer.
func (m *Model) renderBotContent(content string) string {
	if m.renderer == nil || content == "" {
		return content
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

// renderReferences renders the citation list attached to an answer.
func (m *Model) renderReferences(refs []model.Reference) string {
	var b strings.Builder
	b.WriteString(m.theme.ReferenceTitle.Render("Sources"))
	for _, ref := range refs {
		b.WriteString("\n")
		name := ref.Title
		if name == "" {
			name = ref.FileName
		}
		b.WriteString(m.theme.ReferenceItem.Render("- " + name))
	}
	return m.theme.ReferenceBox.Render(b.String())
}
