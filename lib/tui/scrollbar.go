// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderScrollbar draws a one-column scrollbar height rows tall for a
// window of visible items at offset within total items. When
// everything fits, the thumb fills the track.
func RenderScrollbar(theme Theme, height, total, visible, offset int, focused bool) string {
	if height <= 0 {
		return ""
	}
	thumbColor := theme.BorderColor
	if focused {
		thumbColor = theme.StatusRunning
	}
	track := lipgloss.NewStyle().Foreground(theme.BorderColor).Render("│")
	thumb := lipgloss.NewStyle().Foreground(thumbColor).Render("┃")

	thumbStart, thumbEnd := 0, height
	if total > visible && total > 0 {
		size := max(1, height*visible/total)
		start := 0
		if span := height - size; span > 0 {
			start = offset * span / (total - visible)
		}
		start = min(start, height-size)
		thumbStart, thumbEnd = start, start+size
	}

	rows := make([]string, height)
	for row := range rows {
		if row >= thumbStart && row < thumbEnd {
			rows[row] = thumb
		} else {
			rows[row] = track
		}
	}
	return strings.Join(rows, "\n")
}
