// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package reefapi is the HTTP client for reef-core.
//
// Reads (Status, Sessions, Output) fetch point-in-time snapshots; writes
// (Spawn, Send, Kill) are one-shot commands. Every call is bounded by a
// client-side timeout (5 seconds by default) layered under the caller's
// context, and is never retried. Failures are returned as
// *[RequestError], whose Kind separates network failures, timeouts,
// undecodable bodies, and non-2xx answers:
//
//	sessions, err := client.Sessions(ctx)
//	if reefapi.IsKind(err, reefapi.KindTimeout) {
//	    // keep showing the last list, flag the service as slow
//	}
//
// [Result] wraps a (value, error) pair in the service's {ok, data} /
// {ok, error} envelope for callers that print or forward results.
package reefapi
