// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the shared zerolog logger for the raise client.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. It defaults to a disabled logger so
// library packages can log unconditionally; Setup enables real output.
var Logger = zerolog.Nop()

// Setup initializes the logger. Interactive commands log human-readable
// output to stderr; the TUI logs to a file instead so log lines do not
// corrupt the alternate screen.
func Setup(verbose bool, toFile bool) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}

	if toFile {
		path, err := logFilePath()
		if err == nil {
			f, ferr := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
			if ferr == nil {
				out = f
			}
		}
	}

	Logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// logFilePath returns ~/.raise/raise.log, creating the directory if needed.
func logFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".raise")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "raise.log"), nil
}
