// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reef

import "encoding/json"

// Client-to-service stream message types.
const (
	// ClientSubscribeAll asks the service to stream every event type
	// for every session. Sent once per connection, immediately after
	// the handshake.
	ClientSubscribeAll = "subscribe_all"

	// ClientSend relays a message to a session's agent.
	ClientSend = "send"
)

// ClientMessage is a message written to the event stream.
type ClientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Service-to-client event types.
const (
	EventSessionNew = "session.new"
	EventSessionEnd = "session.end"
	EventOutput     = "output"
	EventStatus     = "status"
	EventToolStart  = "tool.start"
	EventToolEnd    = "tool.end"
)

// ServerMessage is the envelope of every message the service pushes.
// Data is decoded according to Type by lib/reefstream.Decode.
type ServerMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// HasData reports whether the message carries a payload. A missing
// field and an explicit null are both treated as absent.
func (m ServerMessage) HasData() bool {
	return len(m.Data) > 0 && string(m.Data) != "null"
}

// SessionNewData is the payload of session.new.
type SessionNewData struct {
	Task     string `json:"task"`
	Backend  string `json:"backend"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// SessionEndData is the payload of session.end. Reason "completed"
// marks a clean finish; anything else means the session was stopped.
type SessionEndData struct {
	Reason string `json:"reason"`
}

// OutputData is the payload of output. Streaming marks a partial
// token-level fragment, Complete marks the last fragment of a turn,
// and Meta marks service annotations rather than agent output.
type OutputData struct {
	Text      string `json:"text"`
	Streaming bool   `json:"streaming,omitempty"`
	Complete  bool   `json:"complete,omitempty"`
	Meta      bool   `json:"meta,omitempty"`
}

// StatusData is the payload of status.
type StatusData struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ToolStartData is the payload of tool.start.
type ToolStartData struct {
	ToolName   string          `json:"toolName"`
	ToolCallID string          `json:"toolCallId"`
	Args       json.RawMessage `json:"args,omitempty"`
}

// ToolEndData is the payload of tool.end.
type ToolEndData struct {
	ToolName   string `json:"toolName"`
	ToolCallID string `json:"toolCallId"`
	IsError    bool   `json:"isError,omitempty"`
}
