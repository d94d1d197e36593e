// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapcache persists the last reconciled session snapshot so
// the viewer can paint sessions before the service answers.
//
// A cache file is a fixed header followed by a body:
//
//	[magic "REEFSNP1": 8] [compression: 1] [flags: 1]
//	[payload checksum: 32] [payload size: 4, big-endian]
//	[body]
//
// The payload is the CBOR encoding of a [Snapshot] (lib/codec). The
// checksum is a BLAKE3 keyed hash of the uncompressed payload. The
// body is the payload compressed with the tagged algorithm (lz4 or
// zstd, falling back to none when compression does not shrink it).
// When the encrypted flag is set the body is a 24-byte nonce followed
// by the XChaCha20-Poly1305 ciphertext of the compressed payload, with
// the header as additional authenticated data.
//
// [Save] writes through a temporary file and rename under an
// exclusive flock on a sibling lock file; [Load] takes a shared lock.
// Two viewers sharing a cache path never observe a torn file.
package snapcache
