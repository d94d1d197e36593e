// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import "time"

// HeatDecayDuration is how long a changed row stays highlighted.
const HeatDecayDuration = 3 * time.Second

// HeatTickInterval is the redraw period while any row is hot.
const HeatTickInterval = 100 * time.Millisecond

// HeatKind selects the highlight color.
type HeatKind int

const (
	// HeatPut marks a created or updated row.
	HeatPut HeatKind = iota
	// HeatRemove marks a row that ended or left the view.
	HeatRemove
)

type ignition struct {
	at   time.Time
	kind HeatKind
}

// HeatTracker remembers when rows changed so views can fade a
// highlight over [HeatDecayDuration]. Not safe for concurrent use; it
// belongs to one bubbletea model.
type HeatTracker struct {
	ignitions map[string]ignition
}

// NewHeatTracker returns an empty tracker.
func NewHeatTracker() *HeatTracker {
	return &HeatTracker{ignitions: make(map[string]ignition)}
}

// Ignite marks id as changed at now, restarting its decay.
func (tracker *HeatTracker) Ignite(id string, kind HeatKind, now time.Time) {
	tracker.ignitions[id] = ignition{at: now, kind: kind}
}

// Heat returns 1.0 at ignition falling linearly to 0.0.
func (tracker *HeatTracker) Heat(id string, now time.Time) float64 {
	entry, ok := tracker.ignitions[id]
	if !ok {
		return 0
	}
	elapsed := now.Sub(entry.at)
	if elapsed >= HeatDecayDuration {
		return 0
	}
	return 1 - float64(elapsed)/float64(HeatDecayDuration)
}

// Kind returns how id last changed. HeatPut for unknown ids.
func (tracker *HeatTracker) Kind(id string) HeatKind {
	return tracker.ignitions[id].kind
}

// HasHot reports whether any row still glows, discarding rows that
// have fully decayed.
func (tracker *HeatTracker) HasHot(now time.Time) bool {
	hot := false
	for id, entry := range tracker.ignitions {
		if now.Sub(entry.at) < HeatDecayDuration {
			hot = true
			continue
		}
		delete(tracker.ignitions, id)
	}
	return hot
}
