// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reefapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies a failed request.
type ErrorKind string

const (
	// KindNetwork is a transport failure: refused, reset, DNS.
	KindNetwork ErrorKind = "network"

	// KindTimeout means the request did not finish within the client
	// timeout or the caller's deadline.
	KindTimeout ErrorKind = "timeout"

	// KindCanceled means the caller cancelled the context.
	KindCanceled ErrorKind = "canceled"

	// KindDecode means the service answered 2xx with a body that is not
	// the expected JSON.
	KindDecode ErrorKind = "decode"

	// KindStatus means the service answered with a non-2xx status.
	KindStatus ErrorKind = "status"
)

// RequestError is the error every Client method returns on failure.
//
//	var requestErr *reefapi.RequestError
//	if errors.As(err, &requestErr) && requestErr.StatusCode == http.StatusNotFound { ... }
type RequestError struct {
	// Op names the call ("status", "sessions", "output", ...).
	Op string

	Kind ErrorKind

	// StatusCode is set for KindStatus.
	StatusCode int

	// Message is the service's error text for KindStatus.
	Message string

	// RequestID is the X-Request-Id sent with the request.
	RequestID string

	// Err is the underlying transport or decode error, if any.
	Err error
}

func (e *RequestError) Error() string {
	switch e.Kind {
	case KindStatus:
		if e.Message != "" {
			return fmt.Sprintf("reefapi: %s: service returned %d: %s", e.Op, e.StatusCode, e.Message)
		}
		return fmt.Sprintf("reefapi: %s: service returned %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	case KindTimeout:
		return fmt.Sprintf("reefapi: %s: timed out: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("reefapi: %s: %s error: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

// IsKind reports whether err is a *RequestError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var requestErr *RequestError
	if errors.As(err, &requestErr) {
		return requestErr.Kind == kind
	}
	return false
}

// IsNotFound reports whether the service answered 404.
func IsNotFound(err error) bool {
	var requestErr *RequestError
	if errors.As(err, &requestErr) {
		return requestErr.Kind == KindStatus && requestErr.StatusCode == http.StatusNotFound
	}
	return false
}

// transportKind classifies an error from http.Client.Do or a body read.
func transportKind(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	return KindNetwork
}
