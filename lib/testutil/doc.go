// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds channel assertions shared by the client's
// tests. Each helper bounds its wait with a real timeout so a broken
// component fails the test instead of hanging it; these are the only
// wall-clock waits in the test suite; everything else runs on
// clock.Fake.
//
// All helpers call t.Fatalf on failure.
package testutil
