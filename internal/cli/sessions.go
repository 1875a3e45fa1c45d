// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// sessions.go - Session management command handler for the raise CLI.
//
// Handles "raise sessions" with subcommands:
//   list                List sessions (server) and recent local history
//   delete --session ID Remove a session on the server and locally
//   export --session ID Write a session transcript as markdown
//
// Examples:
//   raise sessions list
//   raise sessions list -d doc_8821
//   raise sessions delete --session sess_123
//   raise sessions export --session sess_123 -o transcript.md
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jeranaias/raise-tui/internal/model"
	"github.com/jeranaias/raise-tui/internal/util"
)

// HandleSessions dispatches the sessions subcommands.
func HandleSessions(args Args) error {
	app, err := BuildApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()

	switch args.Subcommand {
	case "", "list":
		return listSessions(ctx, app, args)
	case "delete", "rm":
		return deleteSession(ctx, app, args)
	case "export":
		return exportSession(ctx, app, args)
	default:
		return fmt.Errorf("unknown sessions subcommand %q (list, delete, export)", args.Subcommand)
	}
}

// listSessions prints server sessions plus the local recent list.
func listSessions(ctx context.Context, app *App, args Args) error {
	entry, err := app.Reconciler.LoadScope(args.DocumentID)
	if err != nil {
		return err
	}

	if args.JSON {
		return json.NewEncoder(os.Stdout).Encode(entry)
	}

	if entry.SessionID != "" {
		fmt.Printf("Active session: %s\n", entry.SessionID)
	}

	if len(entry.History) > 0 {
		fmt.Println("Recent sessions:")
		for _, he := range entry.History {
			fmt.Printf("  %s  %s  %s\n",
				he.SessionID,
				he.Timestamp.Format("Jan 02 15:04"),
				util.TruncateString(he.Preview, 60))
		}
	}

	// General-scope sessions are also listed server-side.
	if args.DocumentID == "" {
		sessions, err := app.Sessions.List(ctx)
		if err != nil {
			return err
		}
		if len(sessions) > 0 {
			fmt.Println("Server sessions (general):")
			for _, s := range sessions {
				fmt.Printf("  %s\n", s.ID)
			}
		}
	}
	return nil
}

// deleteSession removes a session on the server and from the cache.
func deleteSession(ctx context.Context, app *App, args Args) error {
	if args.SessionID == "" {
		return fmt.Errorf("usage: raise sessions delete --session ID")
	}

	if err := app.Sessions.Delete(ctx, args.SessionID); err != nil {
		return err
	}
	if err := app.Reconciler.DeleteMessages(args.SessionID); err != nil {
		return err
	}

	entry, err := app.Reconciler.LoadScope(args.DocumentID)
	if err == nil {
		app.Reconciler.RemoveFromHistory(entry, args.SessionID)
		if entry.SessionID == args.SessionID {
			entry.SessionID = ""
		}
		if err := app.Reconciler.SaveScope(args.DocumentID, entry); err != nil {
			return err
		}
	}

	if !args.Quiet {
		fmt.Printf("Deleted session %s\n", args.SessionID)
	}
	return nil
}

// exportSession writes a session transcript as markdown.
func exportSession(ctx context.Context, app *App, args Args) error {
	if args.SessionID == "" {
		return fmt.Errorf("usage: raise sessions export --session ID [-o FILE]")
	}

	// Cached log first; the server transcript is the fallback.
	msgs, ok, err := app.Reconciler.LoadMessages(args.SessionID)
	if err != nil {
		return err
	}
	if !ok {
		msgs, err = app.Sessions.LoadHistory(ctx, args.SessionID)
		if err != nil {
			return err
		}
	}

	transcript := formatTranscript(args.SessionID, msgs)

	if args.Output == "" || args.Output == "-" {
		fmt.Print(transcript)
		return nil
	}
	if err := util.AtomicWriteFile(args.Output, []byte(transcript), 0600); err != nil {
		return err
	}
	if !args.Quiet {
		fmt.Printf("Exported %d messages to %s\n", len(msgs), args.Output)
	}
	return nil
}

// formatTranscript renders a message log as a markdown document.
func formatTranscript(sessionID string, msgs []*model.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Raise transcript\n\n")
	fmt.Fprintf(&b, "Session: %s  \nExported: %s\n\n", sessionID, time.Now().Format(time.RFC3339))

	for _, msg := range msgs {
		fmt.Fprintf(&b, "## %s (%s)\n\n", msg.Role.DisplayName(), msg.Timestamp.Format("2006-01-02 15:04"))
		b.WriteString(msg.Content)
		b.WriteString("\n\n")
		if len(msg.References) > 0 {
			b.WriteString("Sources:\n")
			for _, ref := range msg.References {
				name := ref.Title
				if name == "" {
					name = ref.FileName
				}
				fmt.Fprintf(&b, "- %s\n", name)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
