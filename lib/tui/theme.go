// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/reef/lib/schema/reef"
)

// Theme is the color palette for reef's terminal UIs, in ANSI 256-color
// codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Session status colors.
	StatusRunning   lipgloss.Color
	StatusStopped   lipgloss.Color
	StatusCompleted lipgloss.Color
	StatusError     lipgloss.Color

	// Output block accents.
	BlockUser   lipgloss.Color
	BlockTool   lipgloss.Color
	BlockSystem lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// Background tints for recently changed and recently removed rows.
	HotAccentPut    lipgloss.Color
	HotAccentRemove lipgloss.Color

	MatchForeground lipgloss.Color

	ModalForeground lipgloss.Color
	ModalBackground lipgloss.Color
}

// StatusColor returns the color for a session status, FaintText for
// unknown values.
func (theme Theme) StatusColor(status reef.Status) lipgloss.Color {
	switch status {
	case reef.StatusRunning:
		return theme.StatusRunning
	case reef.StatusStopped:
		return theme.StatusStopped
	case reef.StatusCompleted:
		return theme.StatusCompleted
	case reef.StatusError:
		return theme.StatusError
	default:
		return theme.FaintText
	}
}

// DefaultTheme targets dark 256-color terminals.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	StatusRunning:   lipgloss.Color("114"), // green
	StatusStopped:   lipgloss.Color("245"), // gray
	StatusCompleted: lipgloss.Color("75"),  // blue
	StatusError:     lipgloss.Color("196"), // red

	BlockUser:   lipgloss.Color("220"), // amber
	BlockTool:   lipgloss.Color("141"), // light purple
	BlockSystem: lipgloss.Color("240"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	HotAccentPut:    lipgloss.Color("58"),
	HotAccentRemove: lipgloss.Color("52"),

	MatchForeground: lipgloss.Color("214"),

	ModalForeground: lipgloss.Color("252"),
	ModalBackground: lipgloss.Color("237"),
}
