// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package reef defines the wire types of the reef-core orchestration
// service: the HTTP request and response bodies, the messages the
// client writes to the event stream, and the envelope and per-type
// payloads the service pushes back.
//
// [Session] is the unit everything else is keyed by. [ServerMessage]
// is the stream envelope; its Data is left undecoded so that the
// stream reader can hand unknown or malformed payloads to the router
// without failing the connection. The payload structs ([SessionNewData],
// [OutputData], ...) are decoded by lib/reefstream.
//
// This package depends on no other packages in the module.
package reef
