// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single query command handler for the raise CLI.
//
// Handles "raise ask", which sends one question and prints the streamed
// answer to stdout, followed by the source documents it cites.
//
// Examples:
//   raise ask "What does clause 4 require?"
//   raise ask -d doc_8821 "Summarize the reporting obligations"
//   raise ask --json "List the filing deadlines"
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/raise-tui/internal/conversation"
	"github.com/jeranaias/raise-tui/internal/model"
)

// HandleAsk runs a one-shot question against the configured server.
func HandleAsk(args Args) error {
	if args.Query == "" {
		return fmt.Errorf("usage: raise ask \"your question\"")
	}

	app, err := BuildApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	updates := make(chan conversation.Update, 16)
	engine := app.NewEngine().OnUpdate(func(u conversation.Update) { updates <- u })

	ctx := context.Background()
	if err := engine.Open(ctx, args.DocumentID); err != nil {
		return err
	}
	if err := engine.Submit(ctx, args.Query); err != nil {
		return err
	}

	// Drain updates until the send resolves. Streamed chunks are not
	// echoed incrementally here; the rendered answer prints once.
	var failure error
	for u := range updates {
		done := false
		switch u.Kind {
		case conversation.UpdateDone, conversation.UpdateCanceled:
			done = true
		case conversation.UpdateFailed:
			failure = u.Err
			done = true
		}
		if done {
			break
		}
	}

	msgs := engine.Messages()
	if len(msgs) == 0 {
		return fmt.Errorf("no response received")
	}
	answer := msgs[len(msgs)-1]

	if args.JSON {
		return json.NewEncoder(os.Stdout).Encode(answer)
	}

	fmt.Println(renderMarkdown(answer.Content, app.Config.UI.Markdown))
	printReferences(answer.References)

	if failure != nil {
		return fmt.Errorf("answer incomplete: %w", failure)
	}
	return nil
}

// renderMarkdown renders text through glamour, falling back to plain text.
func renderMarkdown(content string, markdown bool) string {
	if !markdown || content == "" {
		return content
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content
	}
	out, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return out
}

// printReferences prints the citation list after an answer.
func printReferences(refs []model.Reference) {
	if len(refs) == 0 {
		return
	}
	fmt.Println("Sources:")
	for _, ref := range refs {
		name := ref.Title
		if name == "" {
			name = ref.FileName
		}
		fmt.Printf("  - %s\n", name)
	}
}
