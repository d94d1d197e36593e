// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"github.com/bureau-foundation/reef/lib/config"
	"github.com/bureau-foundation/reef/lib/secret"
	"github.com/bureau-foundation/reef/lib/snapcache"
)

// CacheOptions builds snapshot cache options from cfg. When a key file
// is configured the returned Options.Key is owned by the caller and
// must be closed.
func CacheOptions(cfg *config.Config) (snapcache.Options, error) {
	compression, err := snapcache.ParseCompression(cfg.Cache.Compression)
	if err != nil {
		return snapcache.Options{}, Validation("cache.compression: %w", err)
	}
	options := snapcache.Options{Compression: compression}
	if cfg.Cache.KeyFile == "" {
		return options, nil
	}
	key, err := secret.ReadKey(cfg.Cache.KeyFile, snapcache.KeySize)
	if err != nil {
		return snapcache.Options{}, Validation("%w", err).
			WithHint("Generate a key with: head -c 32 /dev/urandom > " + cfg.Cache.KeyFile)
	}
	options.Key = key
	return options, nil
}
