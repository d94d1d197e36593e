// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui holds terminal building blocks shared by reef's
// bubbletea programs: the color theme, change-highlight animation,
// scrollbars, and ANSI-aware overlay splicing. Viewers own their own
// layout and data; this package owns nothing stateful beyond
// [HeatTracker].
package tui
