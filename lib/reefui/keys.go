// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reefui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the viewer's key bindings.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Bottom   key.Binding

	FocusToggle key.Binding
	Select      key.Binding
	Filter      key.Binding
	Cancel      key.Binding

	Spawn   key.Binding
	Message key.Binding
	Kill    key.Binding
	Refresh key.Binding
	Remove  key.Binding
	Blocks  key.Binding

	Confirm key.Binding
	Quit    key.Binding
}

// DefaultKeyMap pairs vim-style movement with arrow keys.
var DefaultKeyMap = KeyMap{
	Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
	Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
	PageUp:   key.NewBinding(key.WithKeys("ctrl+u", "pgup"), key.WithHelp("C-u", "page up")),
	PageDown: key.NewBinding(key.WithKeys("ctrl+d", "pgdown"), key.WithHelp("C-d", "page down")),
	Top:      key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
	Bottom:   key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),

	FocusToggle: key.NewBinding(key.WithKeys("tab"), key.WithHelp("Tab", "focus")),
	Select:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("⏎", "select")),
	Filter:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
	Cancel:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("Esc", "cancel")),

	Spawn:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "spawn")),
	Message: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "message")),
	Kill:    key.NewBinding(key.WithKeys("K"), key.WithHelp("K", "kill")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Remove:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "remove")),
	Blocks:  key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "blocks/raw")),

	Confirm: key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "confirm")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}
