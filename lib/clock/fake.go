// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// FakeClock is a deterministic Clock. Time moves only when Advance is
// called. AfterFunc callbacks run synchronously inside Advance, in
// deadline order, without the clock's lock held, so a callback may arm
// new timers. A callback must not call Advance.
type FakeClock struct {
	mu      sync.Mutex
	changed *sync.Cond
	now     time.Time
	pending []*fakeTimer

	// scheduled records every AfterFunc delay in registration order.
	scheduled []time.Duration
}

type fakeTimer struct {
	deadline time.Time
	callback func()
	ticks    chan time.Time
	period   time.Duration
	done     bool
}

// Fake returns a FakeClock reading initial.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{now: initial}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc arms a one-shot timer. A non-positive delay runs f before
// AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	c.mu.Lock()
	c.scheduled = append(c.scheduled, d)
	if d <= 0 {
		c.mu.Unlock()
		f()
		return &Timer{stop: func() bool { return false }}
	}
	timer := &fakeTimer{deadline: c.now.Add(d), callback: f}
	c.pending = append(c.pending, timer)
	c.changed.Broadcast()
	c.mu.Unlock()

	return &Timer{stop: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if timer.done {
			return false
		}
		timer.done = true
		c.changed.Broadcast()
		return true
	}}
}

// NewTicker arms a periodic timer.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ticks := make(chan time.Time, 1)
	timer := &fakeTimer{deadline: c.now.Add(d), ticks: ticks, period: d}
	c.pending = append(c.pending, timer)
	c.changed.Broadcast()

	return &Ticker{
		C: ticks,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			timer.done = true
		},
		reset: func(d time.Duration) {
			c.mu.Lock()
			defer c.mu.Unlock()
			timer.period = d
			timer.deadline = c.now.Add(d)
			timer.done = false
			if !slices.Contains(c.pending, timer) {
				c.pending = append(c.pending, timer)
			}
			c.changed.Broadcast()
		},
	}
}

// Advance moves time forward by d and fires everything due, in
// deadline order. Ticker sends never block.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		due := c.takeDue(target)
		if len(due) == 0 {
			return
		}
		for _, timer := range due {
			if timer.callback != nil {
				timer.callback()
				continue
			}
			select {
			case timer.ticks <- target:
			default:
			}
		}
	}
}

// takeDue removes one-shot timers that are due, reschedules due
// tickers, and returns everything that should fire.
func (c *FakeClock) takeDue(target time.Time) []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due, remaining []*fakeTimer
	for _, timer := range c.pending {
		switch {
		case timer.done:
		case timer.deadline.After(target):
			remaining = append(remaining, timer)
		default:
			due = append(due, timer)
		}
	}
	slices.SortStableFunc(due, func(a, b *fakeTimer) int {
		return a.deadline.Compare(b.deadline)
	})
	for _, timer := range due {
		if timer.period > 0 {
			timer.deadline = timer.deadline.Add(timer.period)
			remaining = append(remaining, timer)
		} else {
			timer.done = true
		}
	}
	c.pending = remaining
	return due
}

// WaitForTimers blocks until at least n timers are armed.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.armedLocked() < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of armed timers and tickers.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armedLocked()
}

// Scheduled returns every delay passed to AfterFunc so far.
func (c *FakeClock) Scheduled() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.scheduled)
}

func (c *FakeClock) armedLocked() int {
	count := 0
	for _, timer := range c.pending {
		if !timer.done {
			count++
		}
	}
	return count
}
