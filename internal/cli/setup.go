// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/jeranaias/raise-tui/internal/api"
	"github.com/jeranaias/raise-tui/internal/auth"
	"github.com/jeranaias/raise-tui/internal/config"
	"github.com/jeranaias/raise-tui/internal/conversation"
	"github.com/jeranaias/raise-tui/internal/logging"
	"github.com/jeranaias/raise-tui/internal/model"
	"github.com/jeranaias/raise-tui/internal/session"
	"github.com/jeranaias/raise-tui/internal/storage"
)

// =============================================================================
// APP WIRING
// =============================================================================

// App bundles the wired dependencies shared by all commands.
type App struct {
	Config     *config.Config
	Tokens     *auth.TokenStore
	Client     *api.Client
	Sessions   *session.Manager
	Store      storage.Store
	Reconciler *storage.Reconciler

	storeCloser io.Closer
}

// BuildApp loads configuration and wires the client stack. Commands that
// only touch local state (login, config) use lighter paths instead.
func BuildApp(args Args) (*App, error) {
	logging.Setup(args.Verbose, false)

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.API.BaseURL == "" {
		return nil, errors.New("no server configured: run 'raise config set api.base_url <url>'")
	}

	tokens, err := auth.NewTokenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}
	if !tokens.HasToken() {
		return nil, api.ErrNotConfigured
	}

	client := api.NewClient(cfg.API.BaseURL, tokens).
		WithRateLimit(cfg.API.RateLimitPerMin)

	store, closer, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:      cfg,
		Tokens:      tokens,
		Client:      client,
		Sessions:    session.NewManager(client),
		Store:       store,
		Reconciler:  storage.NewReconciler(store).WithHistoryLimit(cfg.Chat.HistoryLimit),
		storeCloser: closer,
	}, nil
}

// Close releases the cache backend.
func (a *App) Close() error {
	if a.storeCloser != nil {
		return a.storeCloser.Close()
	}
	return nil
}

// openStore creates the cache backend selected by the config.
func openStore(cfg *config.Config) (storage.Store, io.Closer, error) {
	dir, err := cfg.CacheDir()
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Cache.Backend {
	case "memory":
		return storage.NewMemoryStore(), nil, nil
	case "file":
		fs, err := storage.NewFileStoreWithDir(dir)
		if err != nil {
			return nil, nil, err
		}
		return fs, nil, nil
	default: // sqlite
		ss, err := storage.NewSQLiteStore(filepath.Join(dir, "cache.db"))
		if err != nil {
			return nil, nil, err
		}
		return ss, ss, nil
	}
}

// =============================================================================
// ENGINE WIRING
// =============================================================================

// engineBackend adapts session.Manager to the conversation backend. The
// only signature difference is SendMessage returning the concrete stream
// type instead of the interface.
type engineBackend struct {
	m *session.Manager
}

func (b engineBackend) Create(ctx context.Context, documentID string) (*model.Session, error) {
	return b.m.Create(ctx, documentID)
}

func (b engineBackend) Delete(ctx context.Context, sessionID string) error {
	return b.m.Delete(ctx, sessionID)
}

func (b engineBackend) LoadHistory(ctx context.Context, sessionID string) ([]*model.Message, error) {
	return b.m.LoadHistory(ctx, sessionID)
}

func (b engineBackend) SendMessage(ctx context.Context, sessionID, query string) (conversation.MessageStream, error) {
	stream, err := b.m.SendMessage(ctx, sessionID, query)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// NewEngine wires a conversation engine for this app.
func (a *App) NewEngine() *conversation.Engine {
	return conversation.NewEngine(engineBackend{a.Sessions}, a.Reconciler).
		WithStallTimeout(a.Config.StallTimeout())
}
