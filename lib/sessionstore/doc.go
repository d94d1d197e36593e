// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sessionstore reconciles the two views a client has of the
// service's sessions: periodic HTTP snapshots (the session list and
// each session's recent output) and the live event stream.
//
// [Store] is the single source of truth the presentation layer reads.
// Snapshot data and stream events are applied to it in arrival order;
// every mutation is atomic with respect to readers and produces a
// [Change] notification on each subscriber channel.
//
// Reconciliation rules:
//
//   - Session creation is idempotent. A session.new for a session the
//     store already holds (because a snapshot or a spawn response got
//     there first) changes nothing.
//   - Status is last-write-wins, in arrival order. A terminal status
//     can be overwritten by a later event or snapshot.
//   - Output has two sources. The snapshot baseline is replaced
//     wholesale by each fetch; stream fragments accumulate. The
//     visible text is derived by a [MergeFunc] (default [LongerWins])
//     and never shrinks except when old fragments are evicted by the
//     buffer cap.
//   - Output for a session the store does not know yet is retained in
//     an orphan buffer and surfaced once the session appears.
//
// Alongside the store the package provides [ParseBlocks], which splits
// a transcript into speaker blocks, and [Filter], which fuzzy-matches
// sessions against a query.
package sessionstore
