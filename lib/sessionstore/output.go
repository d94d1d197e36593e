// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sessionstore

import "strings"

// MergeFunc derives a session's visible text from the latest snapshot
// baseline and the stream fragments received so far (joined with
// "\n"). It must be deterministic. Either argument may be empty.
type MergeFunc func(baseline, stream string) string

// LongerWins is the default MergeFunc: the longer of the two texts is
// shown. On a tie the baseline wins.
// The snapshot is windowed to the last N lines and the stream holds
// only what arrived since the client connected, so neither is a
// reliable superset of the other.
func LongerWins(baseline, stream string) string {
	if len(stream) > len(baseline) {
		return stream
	}
	return baseline
}

// fragmentSeparator joins stream fragments into the stream text.
const fragmentSeparator = "\n"

// OutputView is a read-only view of one session's output.
type OutputView struct {
	// Text is the visible transcript.
	Text string

	// Digest is the keyed hash of Text.
	Digest Digest

	// Revision increments on every applied snapshot or fragment, even
	// when Text does not change.
	Revision uint64

	// DroppedBytes counts stream bytes (fragments and their separators)
	// evicted by the buffer cap. DroppedBytes+len(Text) never
	// decreases while stream fragments are held.
	DroppedBytes int

	// Fragments is the number of stream fragments currently held.
	Fragments int
}

// outputBuffer holds both output sources for one session and the text
// last derived from them. Derivation is deferred to the first read
// after a change.
type outputBuffer struct {
	baseline  string
	fragments []string

	// fragmentBytes is the joined length of fragments, separators
	// included.
	fragmentBytes int

	text     string
	digest   Digest
	dirty    bool
	revision uint64
	dropped  int

	// materializedDropped is dropped at the time text was derived.
	materializedDropped int
}

func (buffer *outputBuffer) setBaseline(text string) {
	buffer.baseline = text
	buffer.revision++
	buffer.dirty = true
}

// appendFragment adds a stream fragment and evicts the oldest
// fragments while the buffer exceeds either limit. The newest fragment
// is always kept, even when it alone exceeds maxBytes. A limit <= 0
// disables that limit.
func (buffer *outputBuffer) appendFragment(text string, maxFragments, maxBytes int) {
	if len(buffer.fragments) > 0 {
		buffer.fragmentBytes += len(fragmentSeparator)
	}
	buffer.fragments = append(buffer.fragments, text)
	buffer.fragmentBytes += len(text)

	for len(buffer.fragments) > 1 &&
		((maxFragments > 0 && len(buffer.fragments) > maxFragments) ||
			(maxBytes > 0 && buffer.fragmentBytes > maxBytes)) {
		evicted := len(buffer.fragments[0]) + len(fragmentSeparator)
		buffer.fragments[0] = ""
		buffer.fragments = buffer.fragments[1:]
		buffer.fragmentBytes -= evicted
		buffer.dropped += evicted
	}

	buffer.revision++
	buffer.dirty = true
}

// materialize re-derives text if anything changed since the last call.
func (buffer *outputBuffer) materialize(merge MergeFunc) {
	if !buffer.dirty {
		return
	}
	buffer.dirty = false

	candidate := buffer.baseline
	if len(buffer.fragments) > 0 {
		candidate = merge(buffer.baseline, strings.Join(buffer.fragments, fragmentSeparator))
	}
	// The first text is taken as is; after that a shorter candidate
	// keeps the current text.
	if buffer.text != "" && len(candidate)+buffer.dropped < len(buffer.text)+buffer.materializedDropped {
		return
	}

	buffer.materializedDropped = buffer.dropped
	if candidate == buffer.text {
		return
	}
	buffer.text = candidate
	buffer.digest = digestText(candidate)
}

func (buffer *outputBuffer) view(merge MergeFunc) OutputView {
	buffer.materialize(merge)
	return OutputView{
		Text:         buffer.text,
		Digest:       buffer.digest,
		Revision:     buffer.revision,
		DroppedBytes: buffer.dropped,
		Fragments:    len(buffer.fragments),
	}
}
