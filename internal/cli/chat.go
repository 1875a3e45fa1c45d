// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive REPL chat handler for the raise CLI.
//
// Handles "raise chat", a line-based alternative to the TUI. Answers
// stream to stdout as chunks arrive.
//
// Interactive commands (during chat):
//   /new                Start a fresh session
//   /sessions           List recent sessions in this scope
//   /switch ID          Resume a recent session
//   /refresh            Reload the transcript from the server
//   /help               Show available commands
//   /quit               Exit chat
//   Ctrl+C              Cancel the current response
//   Ctrl+D              Exit chat
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/jeranaias/raise-tui/internal/config"
	"github.com/jeranaias/raise-tui/internal/conversation"
	"github.com/jeranaias/raise-tui/internal/ui/styles"
	"github.com/jeranaias/raise-tui/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Teal).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	warnStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	sourceStyle = lipgloss.NewStyle().
			Foreground(styles.Teal)
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// replInput provides input history and line editing for interactive chat.
type replInput struct {
	line        *liner.State
	historyFile string
}

func newReplInput() *replInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	r := &replInput{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *replInput) read(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

func (r *replInput) close() {
	if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
		r.line.WriteHistory(f)
		f.Close()
	}
	r.line.Close()
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChat runs the interactive REPL.
func HandleChat(args Args) error {
	app, err := BuildApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	updates := make(chan conversation.Update, 64)
	engine := app.NewEngine().OnUpdate(func(u conversation.Update) { updates <- u })

	ctx := context.Background()
	if err := engine.Open(ctx, args.DocumentID); err != nil {
		return err
	}

	input := newReplInput()
	defer input.close()

	scope := "general chat"
	if args.DocumentID != "" {
		scope = "document " + args.DocumentID
	}
	fmt.Println(infoStyle.Render(fmt.Sprintf("raise %s - %s - /help for commands", Version, scope)))

	for {
		line, err := input.read(promptStyle.Render("raise> "))
		if err != nil {
			// Ctrl+C at the prompt or EOF: exit gracefully.
			fmt.Println()
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := handleSlashCommand(ctx, engine, line); quit {
				return nil
			}
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			return nil
		}

		streamAnswer(ctx, engine, updates, line)
	}
}

// streamAnswer submits a query and prints chunks as they arrive. Ctrl+C
// while streaming cancels the response; liner only intercepts the key at
// the prompt, so the interrupt is caught here during the send.
func streamAnswer(ctx context.Context, engine *conversation.Engine, updates chan conversation.Update, query string) {
	if err := engine.Submit(ctx, query); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		return
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	printed := 0
	for {
		select {
		case <-interrupt:
			engine.Cancel()

		case u := <-updates:
			switch u.Kind {
			case conversation.UpdateStream, conversation.UpdateDone:
				msgs := engine.Messages()
				if len(msgs) > 0 {
					last := msgs[len(msgs)-1]
					if content := last.Content; len(content) > printed {
						fmt.Print(content[printed:])
						printed = len(content)
					}
				}
				if u.Kind == conversation.UpdateDone {
					fmt.Println()
					printReplReferences(engine)
					return
				}

			case conversation.UpdateCanceled:
				fmt.Println("\n" + warnStyle.Render("[Canceled]"))
				return

			case conversation.UpdateFailed:
				fmt.Fprintf(os.Stderr, "\n%s %v\n", errorStyle.Render("[Error]"), u.Err)
				return
			}
		}
	}
}

// printReplReferences prints the citation list of the latest answer.
func printReplReferences(engine *conversation.Engine) {
	msgs := engine.Messages()
	if len(msgs) == 0 {
		return
	}
	refs := msgs[len(msgs)-1].References
	if len(refs) == 0 {
		return
	}
	fmt.Println(sourceStyle.Render("Sources:"))
	for _, ref := range refs {
		name := ref.Title
		if name == "" {
			name = ref.FileName
		}
		fmt.Println(sourceStyle.Render("  - " + name))
	}
}

// handleSlashCommand processes a /command. Returns true to exit.
func handleSlashCommand(ctx context.Context, engine *conversation.Engine, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h":
		fmt.Println(infoStyle.Render(`Commands:
  /new          start a fresh session
  /sessions     list recent sessions
  /switch ID    resume a recent session
  /refresh      reload the transcript from the server
  /quit         exit`))

	case "/new":
		if err := engine.NewSession(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		} else {
			fmt.Println(infoStyle.Render("Started session " + engine.SessionID()))
		}

	case "/sessions":
		history := engine.History()
		if len(history) == 0 {
			fmt.Println(infoStyle.Render("No recent sessions in this scope."))
			break
		}
		for _, he := range history {
			fmt.Printf("  %s  %s  %s\n",
				he.SessionID,
				he.Timestamp.Format("Jan 02 15:04"),
				util.TruncateString(he.Preview, 60))
		}

	case "/switch":
		if len(fields) < 2 {
			fmt.Println(infoStyle.Render("usage: /switch SESSION_ID"))
			break
		}
		if err := engine.SwitchSession(ctx, fields[1]); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		} else {
			fmt.Println(infoStyle.Render(fmt.Sprintf("Resumed session %s (%d messages)",
				engine.SessionID(), len(engine.Messages()))))
		}

	case "/refresh":
		if err := engine.Refresh(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		} else {
			fmt.Println(infoStyle.Render(fmt.Sprintf("Reloaded %d messages", len(engine.Messages()))))
		}

	default:
		fmt.Println(infoStyle.Render("Unknown command. /help for commands."))
	}
	return false
}
