// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the reef CLI.
//
// The central type is [Command], a named subcommand with optional
// nested [Command.Subcommands], a [pflag.FlagSet] factory, and a Run
// function. Commands are assembled into a tree in cmd/reef/commands
// and dispatched via [Command.Execute], which handles flag parsing,
// subcommand routing, and structured help output with examples.
//
// When a user types an unknown subcommand or flag, the framework
// computes Levenshtein edit distance against all known names and
// suggests the closest match (threshold: distance <= 3).
//
// [Connection] carries the flags every service command shares (--url,
// --ws-url, --config) and resolves them against lib/config into a
// reefapi client. Errors returned to main are categorized with
// [ToolError] so the exit code tells scripts whether a retry can help.
package cli
