// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package reefui is the bubbletea front end for reef sessions.
//
// [Model] draws a session list on the left and the selected session's
// output on the right, with a one-line status bar underneath. It reads
// everything from the [sessionstore.Store] owned by a
// [console.Console] and re-reads on every store change notification;
// it never mutates the store directly. Commands (spawn, message, kill,
// refresh) run as tea.Cmds against the console and report back through
// the status bar.
//
// Output is shown either as parsed speaker blocks, with assistant
// blocks rendered as markdown, or as raw terminal text.
//
// [LogHandler] routes slog records into the status bar so log output
// does not tear the alternate screen.
package reefui
