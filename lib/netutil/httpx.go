// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds the I/O helpers shared by the HTTP client and
// the stream channel.
//
// Response helpers bound every body read so that a misbehaving service
// cannot exhaust memory. Session transcripts are the largest bodies the
// service returns; MaxResponseSize leaves ample room for them.
//
// IsExpectedCloseError separates ordinary connection teardown from
// failures worth a warning.
package netutil

import (
	"encoding/json"
	"io"
	"strings"
)

// MaxResponseSize bounds JSON response body reads: 64 MB.
const MaxResponseSize int64 = 64 << 20

// maxErrorBody bounds how much of an error body is kept for messages.
const maxErrorBody = 4 << 10

// ReadResponse reads a response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// ErrorBody reads an error response body for use in a message. Read
// errors are ignored; a partial body is still useful.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	return ErrorMessage(data)
}

// ErrorMessage extracts the message from a service error body. The
// service answers failures with {"error": "..."}; anything else is
// returned trimmed as-is.
func ErrorMessage(body []byte) string {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		if envelope.Error != "" {
			return envelope.Error
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return strings.TrimSpace(string(body))
}
