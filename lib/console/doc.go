// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package console runs the client side of a reef service connection.
//
// A [Console] owns one event [Stream], one [API] client and one
// sessionstore.Store. Its Run loop is the only goroutine that mutates
// the store in response to stream events and refresh results, so
// presentation code can read the store at any time and see each
// mutation atomically.
//
// The console refreshes its snapshot periodically (every five seconds
// by default), on every (re)connect, after a successful kill, and
// whenever output arrives for a session it does not know. Refreshes
// that overlap share one set of fetches.
//
// Operations that wait for the owner loop (Spawn, Refresh, FetchOutput)
// block until the loop has applied their result and must not be called
// from the loop itself.
package console
