// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer holds a secret in anonymous mapped memory, excluded from core
// dumps and, when the memlock limit allows, locked into RAM. It must
// not be copied. Bytes panics after Close.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	locked bool
	closed bool
}

// New maps a zero-filled Buffer of size bytes. The caller must Close
// it.
//
// An mlock refused for lack of memlock quota (EPERM, ENOMEM, EAGAIN) is
// not fatal: containers and small RLIMIT_MEMLOCK settings routinely
// refuse it, and the key is still kept out of the heap and out of core
// dumps. Locked reports the outcome.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: size must be positive, got %d", size)
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap: %w", err)
	}
	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: madvise: %w", err)
	}

	buffer := &Buffer{data: data}
	switch err := unix.Mlock(data); {
	case err == nil:
		buffer.locked = true
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.ENOMEM), errors.Is(err, unix.EAGAIN):
	default:
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: mlock: %w", err)
	}
	return buffer, nil
}

// NewFromBytes moves source into a new Buffer. source is zeroed
// whether or not the call succeeds.
func NewFromBytes(source []byte) (*Buffer, error) {
	defer Zero(source)
	if len(source) == 0 {
		return nil, errors.New("secret: empty source")
	}
	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(buffer.data, source)
	return buffer, nil
}

// Bytes aliases the mapped region. The slice is invalid after Close.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("secret: Bytes called after Close")
	}
	return b.data
}

// Len is the secret's size, or zero after Close.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Locked reports whether the memory is pinned in RAM.
func (b *Buffer) Locked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// Close zeroes and unmaps the memory. Further calls return nil.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	Zero(b.data)

	var errs []error
	if b.locked {
		if err := unix.Munlock(b.data); err != nil {
			errs = append(errs, fmt.Errorf("secret: munlock: %w", err))
		}
	}
	if err := unix.Munmap(b.data); err != nil {
		errs = append(errs, fmt.Errorf("secret: munmap: %w", err))
	}
	b.data = nil
	b.locked = false
	return errors.Join(errs...)
}

// Zero clears data.
func Zero(data []byte) {
	clear(data)
}
