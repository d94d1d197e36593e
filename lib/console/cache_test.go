// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/reef/lib/clock"
	"github.com/bureau-foundation/reef/lib/schema/reef"
	"github.com/bureau-foundation/reef/lib/sessionstore"
	"github.com/bureau-foundation/reef/lib/snapcache"
	"github.com/bureau-foundation/reef/lib/testutil"
)

func TestRunSavesCacheAndWarmStartRestoresIt(t *testing.T) {
	t.Parallel()
	cache := CacheConfig{
		Path:    filepath.Join(t.TempDir(), "reef", "snapshot"),
		BaseURL: "http://localhost:7777",
		Options: snapcache.Options{Compression: snapcache.CompressionZstd},
	}

	logger := slog.New(slog.DiscardHandler)
	fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := sessionstore.New(sessionstore.StoreConfig{Clock: fake, Logger: logger})
	api := newFakeAPI(reef.Session{ID: "a", Task: "build", Status: reef.StatusRunning})
	console, err := New(Config{API: api, Stream: newFakeStream(), Store: store, Clock: fake, Logger: logger, Cache: &cache})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- console.Run(ctx) }()
	waitFor(t, "initial refresh", func() bool { return !console.Service().Loading })
	store.ApplySnapshotOutput("a", "compiling...")
	cancel()
	testutil.RequireReceive(t, done, 5*time.Second, "Run did not return")

	snapshot, err := snapcache.Load(cache.Path, nil)
	if err != nil {
		t.Fatalf("cache not written on shutdown: %v", err)
	}
	if !snapshot.SavedAt.Equal(fake.Now()) || snapshot.BaseURL != cache.BaseURL {
		t.Errorf("snapshot header = %v %q", snapshot.SavedAt, snapshot.BaseURL)
	}

	fresh := sessionstore.New(sessionstore.StoreConfig{})
	applied, err := WarmStart(fresh, cache)
	if err != nil || !applied {
		t.Fatalf("WarmStart = %v, %v", applied, err)
	}
	if session, ok := fresh.Get("a"); !ok || session.Task != "build" {
		t.Errorf("warm-started session = %+v, %v", session, ok)
	}
	if view, ok := fresh.Output("a"); !ok || view.Text != "compiling..." {
		t.Errorf("warm-started output = %q, %v", view.Text, ok)
	}
}

func TestWarmStart_SkipsMissingAndForeignCaches(t *testing.T) {
	t.Parallel()
	directory := t.TempDir()
	store := sessionstore.New(sessionstore.StoreConfig{})

	missing := CacheConfig{Path: filepath.Join(directory, "absent"), BaseURL: "http://localhost:7777"}
	if applied, err := WarmStart(store, missing); applied || err != nil {
		t.Errorf("missing cache: WarmStart = %v, %v; want false, nil", applied, err)
	}

	source := sessionstore.New(sessionstore.StoreConfig{})
	source.Upsert(reef.Session{ID: "remote", Status: reef.StatusRunning})
	foreign := CacheConfig{Path: filepath.Join(directory, "snapshot"), BaseURL: "http://other:7777"}
	if err := SaveCache(source, foreign, time.Now()); err != nil {
		t.Fatalf("SaveCache: %v", err)
	}

	local := CacheConfig{Path: foreign.Path, BaseURL: "http://localhost:7777"}
	if applied, err := WarmStart(store, local); applied || err != nil {
		t.Errorf("foreign cache: WarmStart = %v, %v; want false, nil", applied, err)
	}
	if store.Len() != 0 {
		t.Errorf("store has %d sessions after skipping a foreign cache", store.Len())
	}
}
