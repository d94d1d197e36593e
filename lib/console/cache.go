// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bureau-foundation/reef/lib/sessionstore"
	"github.com/bureau-foundation/reef/lib/snapcache"
)

// CacheConfig enables the warm-start snapshot cache.
type CacheConfig struct {
	// Path is the cache file.
	Path string

	// BaseURL tags saved snapshots. WarmStart ignores snapshots saved
	// for a different service.
	BaseURL string

	// Options controls compression and encryption. Options.Key is
	// borrowed and must outlive the Console.
	Options snapcache.Options
}

// WarmStart seeds store from the cache. It reports whether a snapshot
// was applied. A missing cache, or one saved for a different service,
// is not an error. Seeded data never overrides what the store already
// holds, and the first live refresh supersedes it.
func WarmStart(store *sessionstore.Store, config CacheConfig) (bool, error) {
	snapshot, err := snapcache.Load(config.Path, config.Options.Key)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("console: loading cache: %w", err)
	}
	if snapshot.BaseURL != config.BaseURL {
		return false, nil
	}
	store.Seed(snapshot.Sessions, snapshot.Outputs)
	return true, nil
}

// SaveCache writes the store's sessions and visible output.
func SaveCache(store *sessionstore.Store, config CacheConfig, now time.Time) error {
	snapshot := &snapcache.Snapshot{
		SavedAt:  now.UTC(),
		BaseURL:  config.BaseURL,
		Sessions: store.List(),
		Outputs:  store.Outputs(),
	}
	if err := snapcache.Save(config.Path, snapshot, config.Options); err != nil {
		return fmt.Errorf("console: saving cache: %w", err)
	}
	return nil
}
