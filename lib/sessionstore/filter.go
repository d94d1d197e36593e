// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sessionstore

import (
	"slices"
	"strings"
	"sync"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"

	"github.com/bureau-foundation/reef/lib/schema/reef"
)

var initScoring sync.Once

// FuzzyResult is the outcome of matching one text against a pattern.
// Score is zero when the pattern does not match.
type FuzzyResult struct {
	Score     int
	Positions []int
}

// FuzzyMatch runs fzf's v2 algorithm over text. Matching is
// case-insensitive: both sides are lowercased. slab may be nil; pass a
// reused slab when matching many texts in a loop.
func FuzzyMatch(text string, pattern []rune, slab *util.Slab) FuzzyResult {
	if len(pattern) == 0 {
		return FuzzyResult{}
	}
	initScoring.Do(func() { algo.Init("default") })

	lowered := []rune(strings.ToLower(string(pattern)))
	chars := util.ToChars([]byte(strings.ToLower(text)))
	result, positions := algo.FuzzyMatchV2(false, true, true, &chars, lowered, true, slab)
	if result.Start < 0 || result.Score <= 0 {
		return FuzzyResult{}
	}
	matched := FuzzyResult{Score: result.Score}
	if positions != nil {
		matched.Positions = slices.Clone(*positions)
		slices.Sort(matched.Positions)
	}
	return matched
}

// Filter returns the sessions matching query, best match first. Each
// session is scored by its best-matching field among task, id, status
// label, provider and model; ties keep their input order. An empty or
// blank query returns sessions unchanged.
func Filter(sessions []reef.Session, query string) []reef.Session {
	query = strings.TrimSpace(query)
	if query == "" {
		return sessions
	}
	pattern := []rune(query)
	slab := util.MakeSlab(16*1024, 2048)

	type scored struct {
		session reef.Session
		score   int
	}
	var matches []scored
	for _, session := range sessions {
		best := 0
		for _, field := range []string{
			session.Task,
			session.ID,
			session.Status.Label(),
			session.Provider,
			session.Model,
		} {
			if field == "" {
				continue
			}
			if result := FuzzyMatch(field, pattern, slab); result.Score > best {
				best = result.Score
			}
		}
		if best > 0 {
			matches = append(matches, scored{session: session, score: best})
		}
	}

	slices.SortStableFunc(matches, func(a, b scored) int { return b.score - a.score })
	result := make([]reef.Session, len(matches))
	for index, match := range matches {
		result[index] = match.session
	}
	return result
}
