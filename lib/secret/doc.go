// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds key material outside the Go heap.
//
// [Buffer] allocates memory via mmap(MAP_ANONYMOUS) and excludes it
// from core dumps (MADV_DONTDUMP). It is also locked into RAM when the
// memlock limit allows; [Buffer.Locked] reports whether it was. Close
// zeroes and unmaps it. The garbage collector never sees the memory, so
// it is never copied or relocated.
//
// reef uses it for the snapshot cache key: [ReadKey] loads a key file
// straight into a Buffer, and lib/snapcache derives its cipher key
// from the Buffer's bytes.
//
// Depends on golang.org/x/sys/unix. No reef-internal dependencies.
package secret
