// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package reefstream is the client side of the reef-core event stream.
//
// [Channel] owns the single WebSocket connection: it dials, sends the
// subscribe_all handshake, reads envelopes, and reconnects with
// exponential backoff (1s doubling to 30s, reset on every successful
// connection) until [Channel.Stop] is called. Connection state changes
// and decoded envelopes are delivered in order on [Channel.Updates].
//
// [Decode] turns an envelope into one of the typed events
// ([SessionNew], [SessionEnd], [Output], [StatusChange], [ToolStart],
// [ToolEnd]), and [Router] fans decoded events out to handlers. Neither
// mutates session state; that is lib/sessionstore's job.
//
// A malformed envelope never tears down the connection. It is logged at
// Debug and dropped.
package reefstream
