// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reef

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a session as reported by the service.
type Status string

const (
	StatusRunning   Status = "running"
	StatusStopped   Status = "stopped"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// IsKnown reports whether s is one of the four statuses the service
// emits.
func (s Status) IsKnown() bool {
	switch s {
	case StatusRunning, StatusStopped, StatusCompleted, StatusError:
		return true
	}
	return false
}

// IsTerminal reports whether s is a state a session does not normally
// leave. Reconciliation does not enforce this; see
// sessionstore.Store.ApplyEvent.
func (s Status) IsTerminal() bool {
	return s == StatusStopped || s == StatusCompleted || s == StatusError
}

// Label is the short human label shown in session lists. Running
// sessions read as "active" and stopped ones as "done"; the rest show
// their raw status.
func (s Status) Label() string {
	switch s {
	case StatusRunning:
		return "active"
	case StatusStopped:
		return "done"
	case "":
		return "unknown"
	}
	return string(s)
}

// ParseStatus validates a status string.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.TrimSpace(value))
	if !status.IsKnown() {
		return "", fmt.Errorf("unknown session status %q", value)
	}
	return status, nil
}

// Session is one remote agent run. The service assigns ID; everything
// else may be refreshed by later snapshots and events, except the
// descriptors (Task, Backend, Provider, Model, Workdir), which are
// fixed once known.
type Session struct {
	// ID is the service-assigned identifier. Opaque and stable.
	ID string `json:"id"`

	// Task is the free-text instruction the session was spawned with.
	Task string `json:"task"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// Backend names the execution backend (e.g., "tmux", "sdk").
	Backend string `json:"backend,omitempty"`

	// Provider and Model name the model vendor and model. Optional.
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	// Workdir is the working directory the agent was started in.
	Workdir string `json:"workdir,omitempty"`

	// Error carries the failure message of the most recent status
	// change that reported one.
	Error string `json:"error,omitempty"`

	// CreatedAt and UpdatedAt are service timestamps. The service uses
	// ISO 8601; they are kept as strings because older service builds
	// emit SQLite's "YYYY-MM-DD HH:MM:SS" form. Use [ParseTimestamp]
	// to compare them.
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// timestampLayouts are the forms ParseTimestamp accepts, most specific
// first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses a service timestamp. Timestamps without a zone
// are UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// FormatTimestamp renders t in the form the service emits.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// LaterTimestamp returns whichever of a and b is later. An empty value
// loses to any non-empty one. When either side does not parse, the
// comparison falls back to string order, which is correct for
// same-layout ISO timestamps.
func LaterTimestamp(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	timeA, errA := ParseTimestamp(a)
	timeB, errB := ParseTimestamp(b)
	if errA != nil || errB != nil {
		if b > a {
			return b
		}
		return a
	}
	if timeB.After(timeA) {
		return b
	}
	return a
}
