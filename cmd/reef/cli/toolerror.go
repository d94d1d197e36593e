// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/reef/lib/reefapi"
)

// ErrorCategory classifies command errors so that scripts can decide
// whether to retry, fix their input, or give up without parsing error
// text. The category selects the process exit code.
type ErrorCategory string

const (
	// CategoryValidation indicates bad input: missing arguments,
	// unknown flags, unparseable values.
	CategoryValidation ErrorCategory = "validation"

	// CategoryNotFound indicates a referenced session does not exist.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryTransient indicates a failure that may succeed on retry:
	// the service is unreachable or slow.
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal indicates anything else: a rejected request,
	// an undecodable response, a local I/O failure.
	CategoryInternal ErrorCategory = "internal"
)

// ToolError is a categorized error returned by CLI commands. It wraps
// an inner error, preserving the chain for errors.Is and errors.As.
// Use the category constructors rather than building one directly.
type ToolError struct {
	Category ErrorCategory

	Err error

	// Hint is an optional next step appended to the message after a
	// blank line.
	Hint string
}

// Error returns the underlying message, followed by the hint if set.
func (e *ToolError) Error() string {
	if e.Hint == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + "\n\n" + e.Hint
}

// Unwrap returns the underlying error.
func (e *ToolError) Unwrap() error { return e.Err }

// WithHint sets the hint and returns the receiver for chaining.
func (e *ToolError) WithHint(hint string) *ToolError {
	e.Hint = hint
	return e
}

// Validation creates a validation error: the caller provided bad input.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// NotFound creates a not-found error: a referenced resource does not exist.
func NotFound(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryNotFound, Err: fmt.Errorf(format, args...)}
}

// Transient creates a transient error: a temporary failure that may
// succeed on retry.
func Transient(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryTransient, Err: fmt.Errorf(format, args...)}
}

// Internal creates an internal error: an unexpected failure.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}

// ServiceError categorizes a reefapi failure. A 404 becomes NotFound,
// network and timeout failures become Transient with a hint naming the
// service URL, and everything else is Internal. Nil stays nil.
func ServiceError(err error, baseURL string) error {
	if err == nil {
		return nil
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return err
	}
	switch {
	case reefapi.IsNotFound(err):
		return &ToolError{Category: CategoryNotFound, Err: err}
	case reefapi.IsKind(err, reefapi.KindNetwork), reefapi.IsKind(err, reefapi.KindTimeout):
		return (&ToolError{Category: CategoryTransient, Err: err}).
			WithHint(fmt.Sprintf("Is reef-core running at %s? Set --url or REEF_URL to point elsewhere.", baseURL))
	}
	return &ToolError{Category: CategoryInternal, Err: err}
}

// ExitError carries an exit code for a failure the command has already
// reported itself, such as a --json error envelope. main exits with
// Code and prints nothing more.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

// ExitCode implements the interface ExitCodeFor and main look for.
func (e *ExitError) ExitCode() int { return e.Code }

// Exit codes by category. Uncategorized errors exit 1.
const (
	ExitFailure    = 1
	ExitValidation = 2
	ExitNotFound   = 3
	ExitTransient  = 4
)

// ExitCodeFor returns the process exit code for an error returned by
// Execute. Nil maps to zero.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		switch toolErr.Category {
		case CategoryValidation:
			return ExitValidation
		case CategoryNotFound:
			return ExitNotFound
		case CategoryTransient:
			return ExitTransient
		}
	}
	return ExitFailure
}
