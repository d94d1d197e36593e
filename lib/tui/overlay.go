// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// SpliceOverlay draws overlay lines over view with their top-left
// corner at column x, row y. Escape sequences in view survive on both
// sides of the overlay.
func SpliceOverlay(view string, overlay []string, x, y int) string {
	if len(overlay) == 0 {
		return view
	}
	lines := strings.Split(view, "\n")
	overlayWidth := ansi.StringWidth(overlay[0])

	for index, overlayLine := range overlay {
		row := y + index
		if row < 0 || row >= len(lines) {
			continue
		}
		line := lines[row]

		var spliced strings.Builder
		if x > 0 {
			spliced.WriteString(ansi.Truncate(line, x, ""))
		}
		spliced.WriteString("\x1b[0m")
		spliced.WriteString(overlayLine)
		spliced.WriteString("\x1b[0m")
		if right := x + overlayWidth; right < ansi.StringWidth(line) {
			spliced.WriteString(ansi.TruncateLeft(line, right, ""))
		}
		lines[row] = spliced.String()
	}
	return strings.Join(lines, "\n")
}

// Modal renders a boxed dialog with a title and body lines, padded to
// width, and returns its lines with the position that centers it in
// a screen of the given size.
func Modal(theme Theme, title string, body []string, width, screenWidth, screenHeight int) ([]string, int, int) {
	inner := width - 4
	background := lipgloss.NewStyle().Background(theme.ModalBackground)
	text := background.Foreground(theme.ModalForeground)
	border := background.Foreground(theme.BorderColor)
	heading := background.Foreground(theme.HeaderForeground).Bold(true)

	pad := func(styled string) string {
		fill := max(0, inner-ansi.StringWidth(styled))
		return border.Render("│ ") + styled + background.Render(strings.Repeat(" ", fill)) + border.Render(" │")
	}

	lines := []string{border.Render("╭" + strings.Repeat("─", width-2) + "╮")}
	lines = append(lines, pad(heading.Render(ansi.Truncate(title, inner, "…"))))
	for _, line := range body {
		lines = append(lines, pad(text.Render(ansi.Truncate(line, inner, "…"))))
	}
	lines = append(lines, border.Render("╰"+strings.Repeat("─", width-2)+"╯"))

	x := max(0, (screenWidth-width)/2)
	y := max(0, (screenHeight-len(lines))/2)
	return lines, x, y
}
