// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the time source for reconnect backoff, periodic refreshes
// and timestamps.
type Clock interface {
	Now() time.Time

	// AfterFunc runs f on its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker ticks every d. d must be positive.
	NewTicker(d time.Duration) *Ticker
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stop func() bool
}

// Stop cancels the call and reports whether it was still pending.
func (t *Timer) Stop() bool { return t.stop() }

// Ticker delivers ticks on C, a one-slot channel. A tick that finds
// the slot full is dropped.
type Ticker struct {
	C <-chan time.Time

	stop  func()
	reset func(time.Duration)
}

// Stop ends delivery without closing C.
func (t *Ticker) Stop() { t.stop() }

// Reset changes the period and restarts the cycle.
func (t *Ticker) Reset(d time.Duration) { t.reset(d) }

// Real returns the wall clock.
func Real() Clock { return wall{} }

type wall struct{}

func (wall) Now() time.Time { return time.Now() }

func (wall) AfterFunc(d time.Duration, f func()) *Timer {
	return &Timer{stop: time.AfterFunc(d, f).Stop}
}

func (wall) NewTicker(d time.Duration) *Ticker {
	ticker := time.NewTicker(d)
	return &Ticker{C: ticker.C, stop: ticker.Stop, reset: ticker.Reset}
}
