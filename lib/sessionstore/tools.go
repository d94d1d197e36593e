// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sessionstore

import (
	"encoding/json"
	"time"
)

// maxToolCalls bounds the tool calls remembered per session. Older
// calls are forgotten first.
const maxToolCalls = 256

// ToolCall is one tool invocation observed on the stream.
type ToolCall struct {
	CallID string
	Name   string
	Args   json.RawMessage

	// Started and Ended record which of the two events have been
	// seen. tool.end may arrive before tool.start.
	Started bool
	Ended   bool
	IsError bool

	StartedAt time.Time
	EndedAt   time.Time
}

// Running reports whether the call has started and not yet ended.
func (call ToolCall) Running() bool { return call.Started && !call.Ended }

type toolLog struct {
	calls map[string]*ToolCall
	order []string
}

// get returns the call for callID, creating it if needed.
func (log *toolLog) get(callID string) *ToolCall {
	if log.calls == nil {
		log.calls = make(map[string]*ToolCall)
	}
	if call, exists := log.calls[callID]; exists {
		return call
	}
	call := &ToolCall{CallID: callID}
	log.calls[callID] = call
	log.order = append(log.order, callID)
	if len(log.order) > maxToolCalls {
		delete(log.calls, log.order[0])
		log.order = log.order[1:]
	}
	return call
}

func (log *toolLog) start(callID, name string, args json.RawMessage, now time.Time) {
	call := log.get(callID)
	call.Started = true
	call.StartedAt = now
	if name != "" {
		call.Name = name
	}
	if len(args) > 0 {
		call.Args = append(json.RawMessage(nil), args...)
	}
}

func (log *toolLog) end(callID, name string, isError bool, now time.Time) {
	call := log.get(callID)
	call.Ended = true
	call.EndedAt = now
	call.IsError = isError
	if call.Name == "" {
		call.Name = name
	}
}

func (log *toolLog) list() []ToolCall {
	result := make([]ToolCall, 0, len(log.order))
	for _, callID := range log.order {
		result = append(result, *log.calls[callID])
	}
	return result
}
