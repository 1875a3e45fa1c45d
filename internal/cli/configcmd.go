// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// configcmd.go - Configuration command handler for the raise CLI.
//
// Handles "raise config" with subcommands:
//   show            Print the effective configuration
//   path            Print the config file location
//   set KEY VALUE   Update one setting and save
//
// Examples:
//   raise config set api.base_url https://raise.example.com
//   raise config set chat.stall_timeout_secs 90
//   raise config set cache.backend file
package cli

import (
	"fmt"
	"strconv"

	"github.com/jeranaias/raise-tui/internal/config"
	"github.com/jeranaias/raise-tui/internal/logging"
)

// HandleConfig dispatches the config subcommands.
func HandleConfig(args Args) error {
	logging.Setup(args.Verbose, false)

	switch args.Subcommand {
	case "", "show":
		return showConfig()
	case "path":
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	case "set":
		// Raw is ["set", KEY, VALUE].
		if len(args.Raw) < 3 {
			return fmt.Errorf("usage: raise config set KEY VALUE")
		}
		return setConfig(args.Raw[1], args.Raw[2])
	default:
		return fmt.Errorf("unknown config subcommand %q (show, path, set)", args.Subcommand)
	}
}

func showConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Printf("api.base_url            = %s\n", cfg.API.BaseURL)
	fmt.Printf("api.timeout_secs        = %d\n", cfg.API.TimeoutSecs)
	fmt.Printf("api.rate_limit_per_min  = %d\n", cfg.API.RateLimitPerMin)
	fmt.Printf("chat.stall_timeout_secs = %d\n", cfg.Chat.StallTimeoutSecs)
	fmt.Printf("chat.history_limit      = %d\n", cfg.Chat.HistoryLimit)
	fmt.Printf("chat.preview_width      = %d\n", cfg.Chat.PreviewWidth)
	fmt.Printf("cache.backend           = %s\n", cfg.Cache.Backend)
	fmt.Printf("cache.watch_enabled     = %t\n", cfg.Cache.WatchEnabled)
	fmt.Printf("ui.theme                = %s\n", cfg.UI.Theme)
	fmt.Printf("ui.markdown             = %t\n", cfg.UI.Markdown)
	return nil
}

func setConfig(key, value string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	switch key {
	case "api.base_url":
		cfg.API.BaseURL = value
	case "api.timeout_secs":
		if err := setInt(&cfg.API.TimeoutSecs, value); err != nil {
			return err
		}
	case "api.rate_limit_per_min":
		if err := setInt(&cfg.API.RateLimitPerMin, value); err != nil {
			return err
		}
	case "chat.stall_timeout_secs":
		if err := setInt(&cfg.Chat.StallTimeoutSecs, value); err != nil {
			return err
		}
	case "chat.history_limit":
		if err := setInt(&cfg.Chat.HistoryLimit, value); err != nil {
			return err
		}
	case "chat.preview_width":
		if err := setInt(&cfg.Chat.PreviewWidth, value); err != nil {
			return err
		}
	case "cache.backend":
		cfg.Cache.Backend = value
	case "cache.dir":
		cfg.Cache.Dir = value
	case "cache.watch_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", value)
		}
		cfg.Cache.WatchEnabled = b
	case "ui.theme":
		cfg.UI.Theme = value
	case "ui.markdown":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", value)
		}
		cfg.UI.Markdown = b
	default:
		return fmt.Errorf("unknown config key %q", key)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return err
	}
	fmt.Printf("Set %s = %s\n", key, value)
	return nil
}

func setInt(dst *int, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fmt.Errorf("invalid number %q", value)
	}
	*dst = n
	return nil
}
