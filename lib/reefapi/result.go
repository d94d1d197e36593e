// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reefapi

import "errors"

// Result is the {ok, data} / {ok, error} envelope.
type Result[T any] struct {
	OK    bool   `json:"ok"`
	Data  T      `json:"data,omitzero"`
	Error string `json:"error,omitempty"`

	// Kind is set on failure.
	Kind ErrorKind `json:"kind,omitempty"`
}

// Wrap folds a (value, error) pair into a Result.
func Wrap[T any](data T, err error) Result[T] {
	if err == nil {
		return Result[T]{OK: true, Data: data}
	}
	result := Result[T]{Error: err.Error(), Kind: KindNetwork}
	var requestErr *RequestError
	if errors.As(err, &requestErr) {
		result.Kind = requestErr.Kind
		if requestErr.Kind == KindStatus && requestErr.Message != "" {
			result.Error = requestErr.Message
		}
	}
	return result
}
