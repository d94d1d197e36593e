// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapcache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/reef/lib/secret"
)

// Save encodes snapshot and atomically replaces the cache at path.
// Parent directories are created with mode 0700.
func Save(path string, snapshot *Snapshot, options Options) error {
	data, err := Encode(snapshot, options)
	if err != nil {
		return err
	}

	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return fmt.Errorf("snapcache: creating cache directory: %w", err)
	}

	unlock, err := lock(path, unix.LOCK_EX)
	if err != nil {
		return err
	}
	defer unlock()

	file, err := os.CreateTemp(directory, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("snapcache: creating temporary file: %w", err)
	}
	temporaryPath := file.Name()

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("snapcache: writing temporary file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("snapcache: syncing temporary file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("snapcache: closing temporary file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("snapcache: renaming cache into place: %w", err)
	}

	if parent, err := os.Open(directory); err == nil {
		parent.Sync()
		parent.Close()
	}
	return nil
}

// Load reads the cache at path. A missing cache returns an error
// wrapping os.ErrNotExist.
func Load(path string, key *secret.Buffer) (*Snapshot, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("snapcache: %w", err)
	}

	unlock, err := lock(path, unix.LOCK_SH)
	if err != nil {
		return nil, err
	}
	defer unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapcache: reading cache: %w", err)
	}
	return Decode(data, key)
}

// ReadHeader reads and parses only the header of the cache at path. It
// needs no key, even for encrypted caches.
func ReadHeader(path string) (Header, error) {
	file, err := os.Open(path)
	if err != nil {
		return Header{}, fmt.Errorf("snapcache: %w", err)
	}
	defer file.Close()

	data := make([]byte, headerSize)
	if _, err := io.ReadFull(file, data); err != nil {
		return Header{}, fmt.Errorf("snapcache: reading header: %w", err)
	}
	return ParseHeader(data)
}

// lock takes a flock on path+".lock". The cache file itself is replaced
// by rename, so locking it directly would lock a stale inode.
func lock(path string, how int) (func(), error) {
	file, err := os.OpenFile(path+".lock", os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("snapcache: opening lock file: %w", err)
	}
	if err := unix.Flock(int(file.Fd()), how); err != nil {
		file.Close()
		return nil, fmt.Errorf("snapcache: locking cache: %w", err)
	}
	return func() {
		unix.Flock(int(file.Fd()), unix.LOCK_UN)
		file.Close()
	}, nil
}
