// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// login.go - Token management handlers for the raise CLI.
//
// "raise login" prompts for the API token without echoing it and stores
// it encrypted under ~/.raise/. "raise logout" removes the stored token.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/jeranaias/raise-tui/internal/auth"
	"github.com/jeranaias/raise-tui/internal/logging"
)

// HandleLogin prompts for an API token and saves it.
func HandleLogin(args Args) error {
	logging.Setup(args.Verbose, false)

	tokens, err := auth.NewTokenStore()
	if err != nil {
		return fmt.Errorf("failed to open token store: %w", err)
	}

	token, err := readToken()
	if err != nil {
		return err
	}
	if err := tokens.Save(token); err != nil {
		return err
	}

	if !args.Quiet {
		fmt.Println("Token saved.")
	}
	return nil
}

// HandleLogout removes the stored token.
func HandleLogout(args Args) error {
	logging.Setup(args.Verbose, false)

	tokens, err := auth.NewTokenStore()
	if err != nil {
		return fmt.Errorf("failed to open token store: %w", err)
	}
	if err := tokens.Clear(); err != nil {
		return err
	}

	if !args.Quiet {
		fmt.Println("Token removed.")
	}
	return nil
}

// readToken reads the token from stdin. With a terminal attached the
// input is not echoed; piped input is read as a single line so that
// "echo $TOKEN | raise login" works in scripts.
func readToken() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Print("API token: ")
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
