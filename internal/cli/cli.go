// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command parsing and handlers for raise.
package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdSessions
	CmdDocuments
	CmdLogin
	CmdLogout
	CmdConfig
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Verbose bool
	Quiet   bool
	JSON    bool

	// Scope selection
	DocumentID string

	// Command-specific
	Query      string
	SessionID  string
	Output     string
	Subcommand string
	Raw        []string
}

const usageText = `raise - terminal client for the Raise compliance document service

Chat with your uploaded compliance documents from the command line.
Answers stream in as they are generated and cite the source documents
they draw from.

USAGE:
  raise [command] [flags]

COMMANDS:
  (none)        Open the interactive TUI
  ask QUERY     Ask a single question and print the answer
  chat          Line-based REPL chat (no TUI)
  sessions      List, resume, delete, or export sessions
  documents     List uploaded documents
  login         Save the API token
  logout        Remove the saved API token
  config        Show or edit the configuration
  version       Print version information
  help          Show this help

GLOBAL FLAGS:
  -d, --document ID   Scope the conversation to a document
  -v, --verbose       Verbose logging to stderr
  -q, --quiet         Minimal output
  --json              Machine-readable output where supported

EXAMPLES:
  raise
  raise -d doc_8821
  raise ask "What does clause 4 require?"
  raise ask -d doc_8821 "Summarize the reporting obligations"
  raise sessions list
  raise sessions export --session sess_123 -o transcript.md

Configuration lives in ~/.raise/config.toml. Set the server with:
  raise config set api.base_url https://raise.example.com
`

// Parse reads os.Args and returns the command with its arguments.
func Parse() (Command, Args) {
	raw := os.Args[1:]
	args := Args{Raw: raw}

	if len(raw) == 0 {
		return CmdTUI, args
	}

	parser := NewArgParser(raw)
	args.Verbose = parser.BoolFlag("verbose", "v")
	args.Quiet = parser.BoolFlag("quiet", "q")
	args.JSON = parser.BoolFlag("json")
	args.DocumentID = parser.Flag("document", "d")
	args.SessionID = parser.Flag("session", "s")
	args.Output = parser.Flag("output", "o")

	switch parser.Subcommand() {
	case "":
		return CmdTUI, args
	case "ask":
		args.Query = strings.Join(parser.Rest(), " ")
		return CmdAsk, args
	case "chat":
		return CmdChat, args
	case "sessions", "session":
		args.Subcommand = parser.Positional(1)
		args.Raw = parser.Rest()
		return CmdSessions, args
	case "documents", "docs":
		return CmdDocuments, args
	case "login":
		return CmdLogin, args
	case "logout":
		return CmdLogout, args
	case "config":
		args.Subcommand = parser.Positional(1)
		args.Raw = parser.Rest()
		return CmdConfig, args
	case "version", "--version":
		return CmdVersion, args
	case "help", "--help", "-h":
		return CmdHelp, args
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", parser.Subcommand())
		return CmdHelp, args
	}
}

// HandleHelp prints usage.
func HandleHelp() {
	fmt.Print(usageText)
}

// HandleVersion prints version information.
func HandleVersion() {
	fmt.Printf("raise %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
}
