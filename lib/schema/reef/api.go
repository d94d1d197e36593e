// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reef

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	// Uptime is the service uptime in seconds.
	Uptime float64 `json:"uptime"`

	// Version is reported by newer service builds; empty otherwise.
	Version string `json:"version,omitempty"`
}

// SessionListResponse is the body of GET /sessions.
type SessionListResponse struct {
	Sessions []Session `json:"sessions"`
}

// SpawnRequest is the body of POST /sessions. Only Task is required;
// the service picks defaults for the rest.
type SpawnRequest struct {
	Task     string `json:"task"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Workdir  string `json:"workdir,omitempty"`
	Backend  string `json:"backend,omitempty"`
}

// SpawnResponse is the body returned by POST /sessions.
type SpawnResponse struct {
	Session Session `json:"session"`
}

// OutputResponse is the body of GET /sessions/{id}/output. Output is
// the service's window of the session transcript, newline separated.
type OutputResponse struct {
	ID     string `json:"id"`
	Output string `json:"output"`
}

// SendRequest is the body of POST /sessions/{id}/send.
type SendRequest struct {
	Message string `json:"message"`
}

// ErrorResponse is the body the service returns with non-2xx statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}
