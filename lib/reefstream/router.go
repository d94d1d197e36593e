// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reefstream

import (
	"log/slog"
	"sync/atomic"

	"github.com/bureau-foundation/reef/lib/schema/reef"
)

// Handler receives decoded events.
type Handler interface {
	HandleEvent(Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(Event)

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(event Event) { f(event) }

// Handlers dispatches each event type to its own function. Nil fields
// ignore that type.
type Handlers struct {
	OnSessionNew   func(SessionNew)
	OnSessionEnd   func(SessionEnd)
	OnOutput       func(Output)
	OnStatusChange func(StatusChange)
	OnToolStart    func(ToolStart)
	OnToolEnd      func(ToolEnd)
}

// HandleEvent implements Handler.
func (h Handlers) HandleEvent(event Event) {
	switch event := event.(type) {
	case SessionNew:
		if h.OnSessionNew != nil {
			h.OnSessionNew(event)
		}
	case SessionEnd:
		if h.OnSessionEnd != nil {
			h.OnSessionEnd(event)
		}
	case Output:
		if h.OnOutput != nil {
			h.OnOutput(event)
		}
	case StatusChange:
		if h.OnStatusChange != nil {
			h.OnStatusChange(event)
		}
	case ToolStart:
		if h.OnToolStart != nil {
			h.OnToolStart(event)
		}
	case ToolEnd:
		if h.OnToolEnd != nil {
			h.OnToolEnd(event)
		}
	}
}

// Router decodes envelopes and hands the result to every registered
// handler, in registration order, on the caller's goroutine. Handlers
// must be registered before the first Route call.
type Router struct {
	logger   *slog.Logger
	handlers []Handler
	routed   atomic.Uint64
	dropped  atomic.Uint64
}

// NewRouter returns a Router delivering to handlers. A nil logger uses
// slog.Default().
func NewRouter(logger *slog.Logger, handlers ...Handler) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{logger: logger, handlers: handlers}
}

// Add registers another handler.
func (r *Router) Add(handler Handler) {
	r.handlers = append(r.handlers, handler)
}

// Route decodes message and dispatches it. It reports false, after
// logging at Debug, when the envelope was dropped.
func (r *Router) Route(message reef.ServerMessage) bool {
	event, err := Decode(message)
	if err != nil {
		r.dropped.Add(1)
		r.logger.Debug("dropping stream message",
			"type", message.Type,
			"session_id", message.SessionID,
			"error", err,
		)
		return false
	}
	r.routed.Add(1)
	for _, handler := range r.handlers {
		handler.HandleEvent(event)
	}
	return true
}

// Stats returns how many envelopes were routed and dropped.
func (r *Router) Stats() (routed, dropped uint64) {
	return r.routed.Load(), r.dropped.Load()
}
