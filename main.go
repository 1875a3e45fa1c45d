// raise - A terminal client for the Raise compliance document service.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/raise-tui/internal/cli"
	"github.com/jeranaias/raise-tui/internal/config"
	"github.com/jeranaias/raise-tui/internal/conversation"
	"github.com/jeranaias/raise-tui/internal/storage"
	"github.com/jeranaias/raise-tui/internal/ui/chat"
	"github.com/jeranaias/raise-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdTUI:
		runTUI(args)
	case cli.CmdAsk:
		exitOnError(cli.HandleAsk(args))
	case cli.CmdChat:
		exitOnError(cli.HandleChat(args))
	case cli.CmdSessions:
		exitOnError(cli.HandleSessions(args))
	case cli.CmdDocuments:
		exitOnError(cli.HandleDocuments(args))
	case cli.CmdLogin:
		exitOnError(cli.HandleLogin(args))
	case cli.CmdLogout:
		exitOnError(cli.HandleLogout(args))
	case cli.CmdConfig:
		exitOnError(cli.HandleConfig(args))
	case cli.CmdVersion:
		cli.HandleVersion()
	case cli.CmdHelp:
		cli.HandleHelp()
	}
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runTUI starts the full-screen interface.
func runTUI(args cli.Args) {
	app, err := cli.BuildApp(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	updates := make(chan conversation.Update, 64)
	engine := app.NewEngine().OnUpdate(func(u conversation.Update) { updates <- u })

	ctx := context.Background()
	if err := engine.Open(ctx, args.DocumentID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	theme := styles.NewTheme()
	m := chat.New(theme, engine, updates, app.Config.UI.Markdown)
	if args.DocumentID != "" {
		m.SetDocumentTitle(lookupDocumentTitle(ctx, app, args.DocumentID))
	}

	program := tea.NewProgram(m, tea.WithAltScreen())

	// Pick up config edits while the TUI runs.
	if path, err := config.ConfigPath(); err == nil {
		stop, err := config.Watch(path, func(cfg *config.Config) {
			program.Send(chat.ConfigReloadedMsg{Markdown: cfg.UI.Markdown})
		})
		if err == nil {
			defer stop()
		}
	}

	// Reflect cache writes from other raise processes into the TUI.
	// Only the file backend exposes per-key files to watch.
	if app.Config.Cache.WatchEnabled && app.Config.Cache.Backend == "file" {
		if w := startCacheWatcher(app, args.DocumentID, program); w != nil {
			defer w.Close()
		}
	}

	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// lookupDocumentTitle resolves a document ID to its display title. Falls
// back to the raw ID when the lookup fails.
func lookupDocumentTitle(ctx context.Context, app *cli.App, documentID string) string {
	docs, err := app.Sessions.ListDocuments(ctx)
	if err != nil {
		return documentID
	}
	for _, doc := range docs {
		if doc.ID == documentID {
			if doc.Title != "" {
				return doc.Title
			}
			return doc.FileName
		}
	}
	return documentID
}

// startCacheWatcher forwards external cache writes to the running program.
func startCacheWatcher(app *cli.App, documentID string, program *tea.Program) *storage.Watcher {
	dir, err := app.Config.CacheDir()
	if err != nil {
		return nil
	}

	scope := "scope/general"
	if documentID != "" {
		scope = "scope/" + documentID
	}

	w, err := storage.NewWatcher(dir, 200*time.Millisecond, func(key string) {
		// Scope entries and message logs both matter; anything else is
		// another scope's traffic.
		if key == scope || strings.HasPrefix(key, "session/") {
			program.Send(chat.CacheChangedMsg{Key: key})
		}
	})
	if err != nil {
		return nil
	}
	if err := w.Watch(); err != nil {
		w.Close()
		return nil
	}
	return w
}
