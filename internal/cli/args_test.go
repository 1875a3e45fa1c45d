// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// =============================================================================
// ARG PARSER TESTS
// =============================================================================

func TestArgParser_LongFlags(t *testing.T) {
	p := NewArgParser([]string{"ask", "--document", "doc_1", "--output=out.md"})

	require.Equal(t, "ask", p.Subcommand())
	require.Equal(t, "doc_1", p.Flag("document", "d"))
	require.Equal(t, "out.md", p.Flag("output", "o"))
}

func TestArgParser_ShortFlags(t *testing.T) {
	p := NewArgParser([]string{"-d", "doc_2", "-s", "sess_9", "chat"})

	require.Equal(t, "chat", p.Subcommand())
	require.Equal(t, "doc_2", p.Flag("document", "d"))
	require.Equal(t, "sess_9", p.Flag("session", "s"))
}

func TestArgParser_BoolFlags(t *testing.T) {
	p := NewArgParser([]string{"sessions", "--json", "--verbose=false"})

	require.True(t, p.BoolFlag("json"))
	require.False(t, p.BoolFlag("verbose", "v"))
	require.False(t, p.BoolFlag("quiet", "q"))
}

func TestArgParser_Positionals(t *testing.T) {
	p := NewArgParser([]string{"config", "set", "api.base_url", "https://example.com"})

	require.Equal(t, "config", p.Subcommand())
	require.Equal(t, "set", p.Positional(1))
	require.Equal(t, []string{"set", "api.base_url", "https://example.com"}, p.Rest())
	require.Equal(t, "", p.Positional(9))
}

func TestArgParser_Defaults(t *testing.T) {
	p := NewArgParser([]string{"ask"})

	require.Equal(t, "fallback", p.FlagOrDefault("output", "fallback"))
	require.Equal(t, 42, p.FlagIntOrDefault("width", 42))
	require.Nil(t, p.Rest())
}

func TestArgParser_FlagIntOrDefault_Invalid(t *testing.T) {
	p := NewArgParser([]string{"ask", "--width", "wide"})

	require.Equal(t, 42, p.FlagIntOrDefault("width", 42))
}
