// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/raise-tui/internal/conversation"
	"github.com/jeranaias/raise-tui/internal/model"
	"github.com/jeranaias/raise-tui/internal/ui/styles"
)

// =============================================================================
// VIEW STATE
// =============================================================================

// ViewState selects which screen the chat model renders.
type ViewState int

const (
	// ViewChat is the conversation transcript and input.
	ViewChat ViewState = iota

	// ViewSessions is the recent-session picker.
	ViewSessions
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view. All conversation state
// lives in the engine; the model only holds presentation state and reads
// engine snapshots when rendering.
type Model struct {
	theme  *styles.Theme
	keyMap KeyMap

	engine  *conversation.Engine
	updates <-chan conversation.Update

	// Dimensions
	width  int
	height int

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// Screen state
	view          ViewState
	sessionCursor int
	sessions      []model.HistoryEntry

	// Markdown rendering
	markdown bool
	renderer *glamour.TermRenderer

	// Scope shown in the header
	docTitle string

	statusMsg string
}

// New creates a new chat model over an opened engine. updates is the
// channel the engine's OnUpdate callback feeds.
func New(theme *styles.Theme, engine *conversation.Engine, updates <-chan conversation.Update, markdown bool) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your documents..."
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)
	vp.SetContent("")

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	return Model{
		theme:    theme,
		keyMap:   DefaultKeyMap(),
		engine:   engine,
		updates:  updates,
		viewport: vp,
		input:    ti,
		spinner:  sp,
		view:     ViewChat,
		markdown: markdown,
	}
}

// SetDocumentTitle sets the document name shown in the header.
func (m *Model) SetDocumentTitle(title string) {
	m.docTitle = title
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		waitForUpdateCmd(m.updates),
	)
}

// initRenderer builds the markdown renderer for the current width. Called
// on resize; rendering falls back to plain text if glamour fails.
func (m *Model) initRenderer() {
	if !m.markdown {
		return
	}
	wrap := m.width - 10
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		m.renderer = nil
		return
	}
	m.renderer = r
}
