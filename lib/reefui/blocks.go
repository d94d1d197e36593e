// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reefui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/reef/lib/sessionstore"
	"github.com/bureau-foundation/reef/lib/tui"
)

// blockLabels head each rendered block. Raw blocks have no label.
var blockLabels = map[sessionstore.BlockKind]string{
	sessionstore.BlockUser:      "you",
	sessionstore.BlockAssistant: "assistant",
	sessionstore.BlockTool:      "tool",
	sessionstore.BlockSystem:    "system",
}

// renderOutput lays out session output for a pane width columns wide.
// In raw mode the text keeps its own escape sequences and is only
// hard-wrapped.
func renderOutput(output string, theme tui.Theme, width int, blocks bool) string {
	if output == "" {
		return ""
	}
	width = max(10, width)
	if !blocks {
		return ansi.Hardwrap(output, width, true)
	}

	var rendered []string
	for _, block := range sessionstore.ParseBlocks(output) {
		if section := renderBlock(block, theme, width); section != "" {
			rendered = append(rendered, section)
		}
	}
	return strings.Join(rendered, "\n\n")
}

func renderBlock(block sessionstore.Block, theme tui.Theme, width int) string {
	var color lipgloss.Color
	var body string
	switch block.Kind {
	case sessionstore.BlockAssistant:
		color = theme.HeaderForeground
		body = renderMarkdown(block.Text, theme, width)
	case sessionstore.BlockUser:
		color = theme.BlockUser
		body = lipgloss.NewStyle().Foreground(theme.BlockUser).Render(ansi.Wordwrap(block.Text, width, wrapBreakpoints))
	case sessionstore.BlockTool:
		color = theme.BlockTool
		body = lipgloss.NewStyle().Foreground(theme.BlockTool).Render(ansi.Hardwrap(block.Text, width, true))
	case sessionstore.BlockSystem:
		color = theme.BlockSystem
		body = lipgloss.NewStyle().Foreground(theme.BlockSystem).Render(ansi.Hardwrap(block.Text, width, true))
	default:
		return lipgloss.NewStyle().Foreground(theme.NormalText).Render(ansi.Hardwrap(block.Text, width, true))
	}
	if body == "" {
		return ""
	}
	label := lipgloss.NewStyle().Foreground(color).Bold(true).Render("▌ " + blockLabels[block.Kind])
	return label + "\n" + body
}
