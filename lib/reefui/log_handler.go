// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reefui

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// noticeFadeDelay is how long a status bar notice stays up.
const noticeFadeDelay = 5 * time.Second

// logRecordMsg carries a slog record into the model's status bar.
type logRecordMsg struct {
	summary string
	level   slog.Level
}

// LogHandler is a slog.Handler that posts records at or above its
// level to a tea.Program as status bar notices. Records that arrive
// before SetProgram are dropped. Handlers derived with WithAttrs and
// WithGroup share the program pointer.
type LogHandler struct {
	level   slog.Leveler
	program *atomic.Pointer[tea.Program]
	attrs   []string
	group   string
}

// NewLogHandler returns a handler for records at or above level.
func NewLogHandler(level slog.Leveler) *LogHandler {
	return &LogHandler{level: level, program: &atomic.Pointer[tea.Program]{}}
}

// SetProgram connects the handler to a running program.
func (handler *LogHandler) SetProgram(program *tea.Program) {
	handler.program.Store(program)
}

// Enabled implements slog.Handler.
func (handler *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= handler.level.Level()
}

// Handle implements slog.Handler.
func (handler *LogHandler) Handle(_ context.Context, record slog.Record) error {
	program := handler.program.Load()
	if program == nil {
		return nil
	}
	program.Send(logRecordMsg{summary: handler.summarize(record), level: record.Level})
	return nil
}

// summarize renders "message (key=value, ...)".
func (handler *LogHandler) summarize(record slog.Record) string {
	parts := slices.Clone(handler.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		parts = append(parts, handler.qualify(attr))
		return true
	})
	if len(parts) == 0 {
		return record.Message
	}
	return record.Message + " (" + strings.Join(parts, ", ") + ")"
}

func (handler *LogHandler) qualify(attr slog.Attr) string {
	name := attr.Key
	if handler.group != "" {
		name = handler.group + "." + name
	}
	return name + "=" + attr.Value.Resolve().String()
}

// WithAttrs implements slog.Handler.
func (handler *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := *handler
	derived.attrs = slices.Clone(handler.attrs)
	for _, attr := range attrs {
		derived.attrs = append(derived.attrs, handler.qualify(attr))
	}
	return &derived
}

// WithGroup implements slog.Handler.
func (handler *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return handler
	}
	derived := *handler
	derived.attrs = slices.Clone(handler.attrs)
	if derived.group != "" {
		derived.group += "." + name
	} else {
		derived.group = name
	}
	return &derived
}
