// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides reef's CBOR encoding configuration.
//
// reef speaks JSON to the service (HTTP and the event stream) and uses
// CBOR only for local state: the snapshot cache written by
// lib/snapcache. This package holds the one encoder and decoder
// configuration so every file is encoded identically. The encoder uses
// Core Deterministic Encoding (RFC 8949 §4.2): sorted map keys,
// smallest integer encoding, no indefinite-length items. Same logical
// data always produces identical bytes, which keeps cache checksums
// stable.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// # Struct Tag Rules
//
// Types that are only ever stored locally use `cbor` tags. Types that
// also travel as JSON (reef.Session) keep their `json` tags; fxamacker/cbor
// reads them when `cbor` tags are absent. Never put both tags on one
// field.
package codec
