// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reefstream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bureau-foundation/reef/lib/schema/reef"
)

// Event is a decoded stream event. The concrete types are SessionNew,
// SessionEnd, Output, StatusChange, ToolStart, and ToolEnd.
type Event interface {
	// SessionID is the session the event belongs to. Never empty.
	SessionID() string

	// Type is the wire type string (reef.EventOutput, ...).
	Type() string

	event()
}

// SessionNew announces a session the service just created.
type SessionNew struct {
	ID string
	reef.SessionNewData
}

// SessionEnd announces that a session finished.
type SessionEnd struct {
	ID string
	reef.SessionEndData
}

// Completed reports whether the session finished cleanly.
func (e SessionEnd) Completed() bool { return e.Reason == "completed" }

// Output carries one fragment of a session's transcript.
type Output struct {
	ID string
	reef.OutputData
}

// StatusChange carries a new status and, optionally, an error message.
type StatusChange struct {
	ID string
	reef.StatusData
}

// ToolStart marks the start of a tool call.
type ToolStart struct {
	ID string
	reef.ToolStartData
}

// ToolEnd marks the end of a tool call. It may arrive before the
// matching ToolStart.
type ToolEnd struct {
	ID string
	reef.ToolEndData
}

func (e SessionNew) SessionID() string   { return e.ID }
func (e SessionEnd) SessionID() string   { return e.ID }
func (e Output) SessionID() string       { return e.ID }
func (e StatusChange) SessionID() string { return e.ID }
func (e ToolStart) SessionID() string    { return e.ID }
func (e ToolEnd) SessionID() string      { return e.ID }

func (SessionNew) Type() string   { return reef.EventSessionNew }
func (SessionEnd) Type() string   { return reef.EventSessionEnd }
func (Output) Type() string       { return reef.EventOutput }
func (StatusChange) Type() string { return reef.EventStatus }
func (ToolStart) Type() string    { return reef.EventToolStart }
func (ToolEnd) Type() string      { return reef.EventToolEnd }

func (SessionNew) event()   {}
func (SessionEnd) event()   {}
func (Output) event()       {}
func (StatusChange) event() {}
func (ToolStart) event()    {}
func (ToolEnd) event()      {}

// Reasons Decode rejects an envelope. Callers distinguish them only
// for logging.
var (
	ErrMissingSessionID = errors.New("reefstream: message has no session id")
	ErrMissingData      = errors.New("reefstream: message has no data")
	ErrUnknownType      = errors.New("reefstream: unknown message type")
)

// Decode converts an envelope into a typed event. Envelopes without a
// session id or payload, with an unknown type, or whose payload does
// not have the shape its type requires are rejected with an error; the
// caller drops them.
func Decode(message reef.ServerMessage) (Event, error) {
	if message.SessionID == "" {
		return nil, ErrMissingSessionID
	}
	if !message.HasData() {
		return nil, ErrMissingData
	}

	id := message.SessionID
	switch message.Type {
	case reef.EventSessionNew:
		var data reef.SessionNewData
		if err := decodePayload(message, &data); err != nil {
			return nil, err
		}
		return SessionNew{ID: id, SessionNewData: data}, nil

	case reef.EventSessionEnd:
		var data reef.SessionEndData
		if err := decodePayload(message, &data); err != nil {
			return nil, err
		}
		return SessionEnd{ID: id, SessionEndData: data}, nil

	case reef.EventOutput:
		var data reef.OutputData
		if err := decodePayload(message, &data); err != nil {
			return nil, err
		}
		return Output{ID: id, OutputData: data}, nil

	case reef.EventStatus:
		var data reef.StatusData
		if err := decodePayload(message, &data); err != nil {
			return nil, err
		}
		if !data.Status.IsKnown() {
			return nil, fmt.Errorf("reefstream: %s for %s: unknown status %q", message.Type, id, data.Status)
		}
		return StatusChange{ID: id, StatusData: data}, nil

	case reef.EventToolStart:
		var data reef.ToolStartData
		if err := decodePayload(message, &data); err != nil {
			return nil, err
		}
		return ToolStart{ID: id, ToolStartData: data}, nil

	case reef.EventToolEnd:
		var data reef.ToolEndData
		if err := decodePayload(message, &data); err != nil {
			return nil, err
		}
		return ToolEnd{ID: id, ToolEndData: data}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownType, message.Type)
}

// decodePayload unmarshals the envelope's data. Payloads must be JSON
// objects; a string or number where an object belongs is a shape error.
func decodePayload(message reef.ServerMessage, target any) error {
	if message.Data[0] != '{' {
		return fmt.Errorf("reefstream: %s for %s: payload is not an object", message.Type, message.SessionID)
	}
	if err := json.Unmarshal(message.Data, target); err != nil {
		return fmt.Errorf("reefstream: %s for %s: %w", message.Type, message.SessionID, err)
	}
	return nil
}
