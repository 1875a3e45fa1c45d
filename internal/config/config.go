// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for raise.
//
// Configuration is TOML with sensible defaults and environment variable
// overrides, loaded from ~/.raise/config.toml.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/raise-tui/internal/logging"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete raise configuration.
type Config struct {
	API   APIConfig   `toml:"api"`
	Chat  ChatConfig  `toml:"chat"`
	Cache CacheConfig `toml:"cache"`
	UI    UIConfig    `toml:"ui"`
}

// APIConfig contains server connection settings.
type APIConfig struct {
	// BaseURL is the root URL of the document service, e.g.
	// "https://raise.example.com".
	BaseURL string `toml:"base_url"`
	// TimeoutSecs is the request timeout for non-streaming calls.
	TimeoutSecs int `toml:"timeout_secs"`
	// RateLimitPerMin caps outgoing requests per minute (0 = unlimited).
	RateLimitPerMin int `toml:"rate_limit_per_min"`
}

// ChatConfig contains conversation behavior settings.
type ChatConfig struct {
	// StallTimeoutSecs aborts a streaming response after this many seconds
	// of silence from the server. The stream protocol has no heartbeat, so
	// silence is the only stall signal available.
	StallTimeoutSecs int `toml:"stall_timeout_secs"`
	// HistoryLimit bounds the recent-session list per document.
	HistoryLimit int `toml:"history_limit"`
	// PreviewWidth is the display width of session previews.
	PreviewWidth int `toml:"preview_width"`
}

// CacheConfig contains local cache settings.
type CacheConfig struct {
	// Backend selects the persistence backend: "sqlite", "file", or "memory".
	Backend string `toml:"backend"`
	// Dir overrides the cache location (empty = ~/.raise/cache).
	Dir string `toml:"dir"`
	// WatchEnabled reloads cached state when another process writes it.
	// Only effective with the "file" backend.
	WatchEnabled bool `toml:"watch_enabled"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Theme selects the color theme: "dark" or "light".
	Theme string `toml:"theme"`
	// Markdown renders bot responses as markdown when true.
	Markdown bool `toml:"markdown"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			TimeoutSecs:     30,
			RateLimitPerMin: 0,
		},
		Chat: ChatConfig{
			StallTimeoutSecs: 60,
			HistoryLimit:     10,
			PreviewWidth:     80,
		},
		Cache: CacheConfig{
			Backend:      "sqlite",
			WatchEnabled: false,
		},
		UI: UIConfig{
			Theme:    "dark",
			Markdown: true,
		},
	}
}

// StallTimeout returns the stall timeout as a duration.
func (c *Config) StallTimeout() time.Duration {
	return time.Duration(c.Chat.StallTimeoutSecs) * time.Second
}

// Timeout returns the request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSecs) * time.Second
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the raise configuration directory (~/.raise).
func ConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".raise"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the effective cache directory for this config.
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the config file, falling back to defaults when it does not
// exist. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads configuration from an explicit path. A missing file
// is not an error; defaults are used.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies RAISE_* environment variables over file values.
func (c *Config) ApplyEnvOverrides() {
	if baseURL := os.Getenv("RAISE_BASE_URL"); baseURL != "" {
		c.API.BaseURL = baseURL
	}
	if secs := os.Getenv("RAISE_STALL_TIMEOUT_SECS"); secs != "" {
		if n, err := strconv.Atoi(secs); err == nil && n > 0 {
			c.Chat.StallTimeoutSecs = n
		}
	}
	if backend := os.Getenv("RAISE_CACHE_BACKEND"); backend != "" {
		c.Cache.Backend = strings.ToLower(backend)
	}
	if dir := os.Getenv("RAISE_CACHE_DIR"); dir != "" {
		c.Cache.Dir = dir
	}
	if theme := os.Getenv("RAISE_THEME"); theme != "" {
		c.UI.Theme = strings.ToLower(theme)
	}
}

// fillDefaults replaces zero values left by a partial config file.
func (c *Config) fillDefaults() {
	def := Default()
	if c.API.TimeoutSecs <= 0 {
		c.API.TimeoutSecs = def.API.TimeoutSecs
	}
	if c.Chat.StallTimeoutSecs <= 0 {
		c.Chat.StallTimeoutSecs = def.Chat.StallTimeoutSecs
	}
	if c.Chat.HistoryLimit <= 0 {
		c.Chat.HistoryLimit = def.Chat.HistoryLimit
	}
	if c.Chat.PreviewWidth <= 0 {
		c.Chat.PreviewWidth = def.Chat.PreviewWidth
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = def.Cache.Backend
	}
	if c.UI.Theme == "" {
		c.UI.Theme = def.UI.Theme
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []string

	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("api.base_url: %q is not a valid http(s) URL", c.API.BaseURL))
		}
	}
	if c.API.RateLimitPerMin < 0 {
		errs = append(errs, "api.rate_limit_per_min: must be >= 0")
	}

	switch c.Cache.Backend {
	case "sqlite", "file", "memory":
	default:
		errs = append(errs, fmt.Sprintf("cache.backend: %q is not one of sqlite, file, memory", c.Cache.Backend))
	}

	switch c.UI.Theme {
	case "dark", "light":
	default:
		errs = append(errs, fmt.Sprintf("ui.theme: %q is not one of dark, light", c.UI.Theme))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the configuration to the default path with 0600 permissions.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath writes the configuration to an explicit path.
func SaveToPath(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	fmt.Fprintln(file, "# raise configuration file")
	fmt.Fprintln(file, "# Generated by raise - edit with care")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// HOT RELOAD
// =============================================================================

// Watch reloads the config file when it changes and passes the new config
// to onReload. Returns a stop function. A config that fails to parse or
// validate is logged and skipped; the previous config stays in effect.
func Watch(path string, onReload func(*Config)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory: editors replace the file, which drops a watch
	// on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				cfg, err := LoadFromPath(path)
				if err != nil {
					logging.Logger.Warn().Err(err).Msg("config reload skipped")
					continue
				}
				onReload(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Logger.Warn().Err(err).Msg("config watcher error")
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
