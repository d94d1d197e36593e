// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sessionstore

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Digest is a BLAKE3 keyed hash of a session's visible output text.
// Two views with equal digests render identically, which lets the
// presentation layer skip re-rendering unchanged output.
type Digest [32]byte

// String returns the lowercase hex encoding.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// IsZero reports whether d is the zero value (no output).
func (d Digest) IsZero() bool { return d == Digest{} }

// outputDomainKey is the ASCII domain name zero-padded to the 32 bytes
// BLAKE3 keyed mode requires.
var outputDomainKey = [32]byte{
	'r', 'e', 'e', 'f', '.', 's', 'e', 's', 's', 'i', 'o', 'n', '.',
	'o', 'u', 't', 'p', 'u', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// digestText hashes text in the output domain. Empty text has the zero
// digest.
func digestText(text string) Digest {
	if text == "" {
		return Digest{}
	}
	hasher, err := blake3.NewKeyed(outputDomainKey[:])
	if err != nil {
		panic("sessionstore: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(text))
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}
