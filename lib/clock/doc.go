// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source for every component that schedules
// work: the stream channel's reconnect timer, the console's refresh
// ticker, and the timestamps the session store assigns when the service
// omits them.
//
// Production code uses Real(). Tests use Fake(), which stands still
// until Advance is called and records every delay handed to AfterFunc
// so that backoff schedules can be asserted exactly:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	channel := reefstream.NewChannel(reefstream.ChannelConfig{Clock: fake, ...})
//	channel.Start()
//	fake.WaitForTimers(1)       // reconnect scheduled after the failed dial
//	fake.Advance(time.Second)   // fire it
//
// WaitForTimers closes the race between a background goroutine arming a
// timer and the test advancing past it.
package clock
