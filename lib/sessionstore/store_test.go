// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sessionstore

import (
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/reef/lib/clock"
	"github.com/bureau-foundation/reef/lib/reefstream"
	"github.com/bureau-foundation/reef/lib/schema/reef"
	"github.com/bureau-foundation/reef/lib/testutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, config StoreConfig) (*Store, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(epoch)
	if config.Clock == nil {
		config.Clock = fake
	}
	config.Logger = slog.New(slog.DiscardHandler)
	return New(config), fake
}

func output(id, text string) reefstream.Output {
	return reefstream.Output{ID: id, OutputData: reef.OutputData{Text: text}}
}

func sessionNew(id, task string) reefstream.SessionNew {
	return reefstream.SessionNew{ID: id, SessionNewData: reef.SessionNewData{Task: task, Backend: "tmux"}}
}

func statusChange(id string, status reef.Status) reefstream.StatusChange {
	return reefstream.StatusChange{ID: id, StatusData: reef.StatusData{Status: status}}
}

func requireText(t *testing.T, store *Store, id, want string) OutputView {
	t.Helper()
	view, ok := store.Output(id)
	if !ok {
		t.Fatalf("Output(%q) not found", id)
	}
	if view.Text != want {
		t.Fatalf("Output(%q).Text = %q, want %q", id, view.Text, want)
	}
	return view
}

func TestSessionNewIsIdempotent(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, StoreConfig{})

	if known := store.ApplyEvent(sessionNew("a", "first")); known {
		t.Error("first session.new reported a known session")
	}
	if known := store.ApplyEvent(sessionNew("a", "second")); !known {
		t.Error("duplicate session.new reported an unknown session")
	}

	sessions := store.List()
	if len(sessions) != 1 {
		t.Fatalf("List() has %d sessions, want 1", len(sessions))
	}
	session := sessions[0]
	if session.Task != "first" {
		t.Errorf("Task = %q, want %q (duplicate must not overwrite)", session.Task, "first")
	}
	if session.Status != reef.StatusRunning {
		t.Errorf("Status = %q, want running", session.Status)
	}
	if session.CreatedAt != reef.FormatTimestamp(epoch) {
		t.Errorf("CreatedAt = %q, want %q", session.CreatedAt, reef.FormatTimestamp(epoch))
	}
}

func TestSpawnThenSessionNewYieldsOneEntry(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, StoreConfig{})

	store.Upsert(reef.Session{ID: "s1", Task: "build", Status: reef.StatusRunning, Provider: "anthropic"})
	store.Select("s1")
	store.ApplyEvent(sessionNew("s1", "build"))

	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", store.Len())
	}
	selected, ok := store.Selected()
	if !ok || selected.ID != "s1" {
		t.Fatalf("Selected() = %+v, %v; want s1", selected, ok)
	}
	if selected.Provider != "anthropic" {
		t.Errorf("Provider = %q, want anthropic", selected.Provider)
	}
}

func TestSnapshotThenStreamOutputMerges(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, StoreConfig{})

	store.ApplySnapshotSessions([]reef.Session{{ID: "a", Status: reef.StatusRunning}})
	store.ApplySnapshotOutput("a", "hello")
	requireText(t, store, "a", "hello")

	store.ApplyEvent(output("a", "hello world"))
	requireText(t, store, "a", "hello world")

	// A later, shorter snapshot does not shrink the merged text.
	store.ApplySnapshotOutput("a", "hello")
	requireText(t, store, "a", "hello world")
}

func TestFirstBaselineIsVerbatim(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, StoreConfig{})
	store.ApplySnapshotSessions([]reef.Session{{ID: "a"}})

	store.ApplySnapshotOutput("a", "first window")
	requireText(t, store, "a", "first window")

	// A longer window replaces it; a shorter one does not.
	store.ApplySnapshotOutput("a", "a longer second window")
	requireText(t, store, "a", "a longer second window")
	store.ApplySnapshotOutput("a", "short")
	requireText(t, store, "a", "a longer second window")
}

func TestStreamFragmentsJoinWithNewline(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, StoreConfig{})
	store.ApplyEvent(sessionNew("a", "task"))

	store.ApplyEvent(output("a", "one"))
	store.ApplyEvent(output("a", "two"))
	view := requireText(t, store, "a", "one\ntwo")
	if view.Fragments != 2 {
		t.Errorf("Fragments = %d, want 2", view.Fragments)
	}
}

func TestMergedLengthIsMonotonic(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, StoreConfig{})
	store.ApplyEvent(sessionNew("a", "task"))

	steps := []func(){
		func() { store.ApplyEvent(output("a", "x")) },
		func() { store.ApplySnapshotOutput("a", "a much longer snapshot baseline") },
		func() { store.ApplyEvent(output("a", "y")) },
		func() { store.ApplySnapshotOutput("a", "") },
		func() { store.ApplyEvent(output("a", strings.Repeat("z", 64))) },
		func() { store.ApplySnapshotOutput("a", "short") },
	}
	previous := 0
	for index, step := range steps {
		step()
		view, _ := store.Output("a")
		if len(view.Text) < previous {
			t.Fatalf("step %d: text shrank from %d to %d bytes", index, previous, len(view.Text))
		}
		previous = len(view.Text)
	}
}

func TestSnapshotOnlyLengthIsMonotonic(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, StoreConfig{})
	store.ApplySnapshotSessions([]reef.Session{{ID: "a"}})

	previous := 0
	for index, text := range []string{
		"",
		strings.Repeat("w", 30),
		"hi",
		"",
		strings.Repeat("v", 31),
		strings.Repeat("u", 12),
	} {
		store.ApplySnapshotOutput("a", text)
		view, _ := store.Output("a")
		if len(view.Text) < previous {
			t.Fatalf("snapshot %d: text shrank from %d to %d bytes", index, previous, len(view.Text))
		}
		previous = len(view.Text)
	}
	requireText(t, store, "a", strings.Repeat("v", 31))
}

func TestCustomMergeFunc(t *testing.T) {
	t.Parallel()
	concatenate := func(baseline, stream string) string { return baseline + "|" + stream }
	store, _ := newTestStore(t, StoreConfig{Merge: concatenate})
	store.ApplyEvent(sessionNew("a", "task"))

	store.ApplySnapshotOutput("a", "base")
	store.ApplyEvent(output("a", "live"))
	requireText(t, store, "a", "base|live")
}

func TestOutputForUnknownSessionIsRetained(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, StoreConfig{})

	if known := store.ApplyEvent(output("z", "early")); known {
		t.Error("output for unknown session reported as known")
	}
	if _, ok := store.Output("z"); ok {
		t.Fatal("Output for an unknown session must report not found")
	}
	if orphans := store.Orphans(); len(orphans) != 1 || orphans[0] != "z" {
		t.Fatalf("Orphans() = %v, want [z]", orphans)
	}

	store.ApplySnapshotSessions([]reef.Session{{ID: "z", Status: reef.StatusRunning}})
	requireText(t, store, "z", "early")
	if orphans := store.Orphans(); len(orphans) != 0 {
		t.Errorf("Orphans() = %v after session appeared, want none", orphans)
	}
}

func TestOrphanBuffersAreCapped(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, StoreConfig{MaxOrphans: 2})

	store.ApplyEvent(output("o1", "a"))
	store.ApplyEvent(output("o2", "b"))
	store.ApplyEvent(output("o3", "c"))

	orphans := store.Orphans()
	if len(orphans) != 2 || orphans[0] != "o2" || orphans[1] != "o3" {
		t.Fatalf("Orphans() = %v, want [o2 o3]", orphans)
	}

	store.ApplyEvent(sessionNew("o1", "late"))
	view, _ := store.Output("o1")
	if view.Text != "" {
		t.Errorf("evicted orphan output resurfaced: %q", view.Text)
	}
}

func TestStatusIsLastWriteWins(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, StoreConfig{})
	store.ApplyEvent(sessionNew("a", "task"))

	store.ApplyEvent(statusChange("a", reef.StatusCompleted))
	store.ApplyEvent(statusChange("a", reef.StatusRunning))

	session, _ := store.Get("a")
	if session.Status != reef.StatusRunning {
		t.Fatalf("Status = %q, want running (a terminal status is not sticky)", session.Status)
	}

	// A snapshot applied after the event also wins.
	store.ApplySnapshotSessions([]reef.Session{{ID: "a", Status: reef.StatusError, Error: "crashed"}})
	session, _ = store.Get("a")
	if session.Status != reef.StatusError || session.Error != "crashed" {
		t.Fatalf("after snapshot: %q %q, want error/crashed", session.Status, session.Error)
	}
}

func TestStatusChangeKeepsErrorWhenAbsent(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, StoreConfig{})
	store.ApplyEvent(sessionNew("a", "task"))

	store.ApplyEvent(reefstream.StatusChange{ID: "a", StatusData: reef.StatusData{Status: reef.StatusError, Error: "boom"}})
	store.ApplyEvent(statusChange("a", reef.StatusError))

	session, _ := store.Get("a")
	if session.Error != "boom" {
		t.Errorf("Error = %q, want boom", session.Error)
	}
}

func TestSessionEnd(t *testing.T) {
	t.Parallel()
	tests := []struct {
		reason string
		want   reef.Status
	}{
		{"completed", reef.StatusCompleted},
		{"killed", reef.StatusStopped},
		{"", reef.StatusStopped},
	}
	for _, test := range tests {
		t.Run(test.reason, func(t *testing.T) {
			t.Parallel()
			store, _ := newTestStore(t, StoreConfig{})
			store.ApplyEvent(sessionNew("a", "task"))
			store.ApplyEvent(reefstream.SessionEnd{ID: "a", SessionEndData: reef.SessionEndData{Reason: test.reason}})
			session, _ := store.Get("a")
			if session.Status != test.want {
				t.Errorf("Status = %q, want %q", session.Status, test.want)
			}
		})
	}
}

func TestMutationsOfUnknownSessionsAreNoOps(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, StoreConfig{})

	events := []reefstream.Event{
		statusChange("ghost", reef.StatusError),
		reefstream.SessionEnd{ID: "ghost", SessionEndData: reef.SessionEndData{Reason: "completed"}},
		reefstream.ToolStart{ID: "ghost", ToolStartData: reef.ToolStartData{ToolCallID: "t1"}},
		reefstream.ToolEnd{ID: "ghost", ToolEndData: reef.ToolEndData{ToolCallID: "t1"}},
	}
	for _, event := range events {
		if known := store.ApplyEvent(event); known {
			t.Errorf("%s for unknown session reported as known", event.Type())
		}
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
	if _, ok := store.Get("ghost"); ok {
		t.Error("unknown session was created")
	}
}

func TestSnapshotUpsertRules(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, StoreConfig{})

	store.ApplySnapshotSessions([]reef.Session{{
		ID: "a", Task: "original", Status: reef.StatusRunning,
		UpdatedAt: "2026-03-01T12:00:05Z",
	}})
	store.ApplySnapshotSessions([]reef.Session{{
		ID: "a", Task: "renamed", Status: reef.StatusStopped, Model: "opus",
		UpdatedAt: "2026-03-01 12:00:01",
	}})

	session, _ := store.Get("a")
	if session.Task != "original" {
		t.Errorf("Task = %q, descriptors must not be overwritten", session.Task)
	}
	if session.Model != "opus" {
		t.Errorf("Model = %q, empty descriptors are filled", session.Model)
	}
	if session.Status != reef.StatusStopped {
		t.Errorf("Status = %q, want stopped", session.Status)
	}
	if session.UpdatedAt != "2026-03-01T12:00:05Z" {
		t.Errorf("UpdatedAt = %q, the later timestamp is kept", session.UpdatedAt)
	}
}

func TestSnapshotNeverRemoves(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, StoreConfig{})
	store.ApplySnapshotSessions([]reef.Session{{ID: "a"}, {ID: "b"}})
	store.ApplySnapshotSessions([]reef.Session{{ID: "b"}})

	sessions := store.List()
	if len(sessions) != 2 || sessions[0].ID != "a" || sessions[1].ID != "b" {
		t.Fatalf("List() = %+v, want [a b] in insertion order", sessions)
	}
}

func TestRunningAndCompleted(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, StoreConfig{})
	store.ApplySnapshotSessions([]reef.Session{
		{ID: "a", Status: reef.StatusRunning},
		{ID: "b", Status: reef.StatusCompleted},
		{ID: "c", Status: reef.StatusError},
		{ID: "d", Status: "paused"},
	})

	if running := store.Running(); len(running) != 1 || running[0].ID != "a" {
		t.Errorf("Running() = %+v, want [a]", running)
	}
	if completed := store.Completed(); len(completed) != 3 {
		t.Errorf("Completed() has %d sessions, want 3", len(completed))
	}
}

func TestSelectAndRemove(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, StoreConfig{})
	store.ApplySnapshotSessions([]reef.Session{{ID: "a"}, {ID: "b"}})
	store.ApplyEvent(output("a", "text"))

	if store.Select("missing") {
		t.Error("Select of an unknown id succeeded")
	}
	if !store.Select("a") {
		t.Fatal("Select(a) failed")
	}
	if !store.Remove("a") {
		t.Fatal("Remove(a) reported nothing removed")
	}
	if _, ok := store.Selected(); ok {
		t.Error("removing the selected session must clear the selection")
	}
	if _, ok := store.Output("a"); ok {
		t.Error("output survived Remove")
	}
	if store.Remove("a") {
		t.Error("second Remove reported a removal")
	}

	// A later snapshot brings the session back, without its old output.
	store.ApplySnapshotSessions([]reef.Session{{ID: "a"}})
	requireText(t, store, "a", "")
}

func TestToolCallsTolerateEndBeforeStart(t *testing.T) {
	t.Parallel()
	store, fake := newTestStore(t, StoreConfig{})
	store.ApplyEvent(sessionNew("a", "task"))

	store.ApplyEvent(reefstream.ToolEnd{ID: "a", ToolEndData: reef.ToolEndData{ToolCallID: "t1", ToolName: "Bash", IsError: true}})
	fake.Advance(time.Second)
	store.ApplyEvent(reefstream.ToolStart{ID: "a", ToolStartData: reef.ToolStartData{
		ToolCallID: "t1", ToolName: "Bash", Args: json.RawMessage(`{"command":"ls"}`),
	}})
	store.ApplyEvent(reefstream.ToolStart{ID: "a", ToolStartData: reef.ToolStartData{ToolCallID: "t2", ToolName: "Read"}})

	tools := store.Tools("a")
	if len(tools) != 2 {
		t.Fatalf("Tools() has %d calls, want 2", len(tools))
	}
	first := tools[0]
	if !first.Started || !first.Ended || !first.IsError || first.Running() {
		t.Errorf("t1 = %+v, want started, ended with error", first)
	}
	if string(first.Args) != `{"command":"ls"}` {
		t.Errorf("t1 args = %s", first.Args)
	}
	if !tools[1].Running() {
		t.Errorf("t2 should be running: %+v", tools[1])
	}
}

func TestOutputCapEvictsWholeFragments(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, StoreConfig{MaxFragments: 3, MaxBytes: 1 << 20})
	store.ApplyEvent(sessionNew("a", "task"))

	sums := []int{}
	for _, text := range []string{"one", "two", "three", "four", "five"} {
		store.ApplyEvent(output("a", text))
		view, _ := store.Output("a")
		sums = append(sums, view.DroppedBytes+len(view.Text))
	}

	view := requireText(t, store, "a", "three\nfour\nfive")
	if view.Fragments != 3 {
		t.Errorf("Fragments = %d, want 3", view.Fragments)
	}
	if view.DroppedBytes != len("one\ntwo\n") {
		t.Errorf("DroppedBytes = %d, want %d", view.DroppedBytes, len("one\ntwo\n"))
	}
	for index := 1; index < len(sums); index++ {
		if sums[index] < sums[index-1] {
			t.Fatalf("DroppedBytes+len(Text) decreased: %v", sums)
		}
	}
}

func TestOutputByteCapKeepsNewestFragment(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, StoreConfig{MaxBytes: 8})
	store.ApplyEvent(sessionNew("a", "task"))

	store.ApplyEvent(output("a", "abc"))
	store.ApplyEvent(output("a", "a fragment longer than the cap"))

	view := requireText(t, store, "a", "a fragment longer than the cap")
	if view.DroppedBytes != 4 {
		t.Errorf("DroppedBytes = %d, want 4", view.DroppedBytes)
	}
}

func TestRevisionAdvancesOnEveryApply(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, StoreConfig{})
	store.ApplyEvent(sessionNew("a", "task"))
	changes := store.Subscribe()

	store.ApplySnapshotOutput("a", "same")
	first, _ := store.Output("a")
	store.ApplySnapshotOutput("a", "same")
	second, _ := store.Output("a")

	if second.Revision <= first.Revision {
		t.Errorf("revision did not advance: %d then %d", first.Revision, second.Revision)
	}
	if first.Digest != second.Digest || first.Digest.IsZero() {
		t.Errorf("digest changed for identical text or is zero")
	}

	// An output change is delivered even when the text is unchanged.
	testutil.RequireReceiveMatch(t, changes, time.Second, func(change Change) bool {
		return change.Kind == ChangeOutput && change.Revision == second.Revision
	}, "output change for second snapshot")
}

func TestSubscribeReceivesChanges(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, StoreConfig{})
	changes := store.Subscribe()

	store.ApplyEvent(sessionNew("a", "task"))
	change := testutil.RequireReceive(t, changes, time.Second, "session change")
	if change.Kind != ChangeSessions || change.SessionID != "a" {
		t.Errorf("change = %+v, want sessions/a", change)
	}

	store.Select("a")
	change = testutil.RequireReceive(t, changes, time.Second, "selection change")
	if change.Kind != ChangeSelection {
		t.Errorf("change = %+v, want selection", change)
	}

	store.Unsubscribe(changes)
	store.ApplyEvent(output("a", "x"))
	testutil.RequireNoReceive(t, changes, 20*time.Millisecond, "change after Unsubscribe")
}

func TestSubscribeNeverBlocks(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, StoreConfig{})
	store.Subscribe()
	store.ApplyEvent(sessionNew("a", "task"))

	for range subscriberBuffer * 2 {
		store.ApplyEvent(output("a", "x"))
	}
	view, _ := store.Output("a")
	if view.Fragments != subscriberBuffer*2 {
		t.Errorf("Fragments = %d, want %d", view.Fragments, subscriberBuffer*2)
	}
}

func TestSeedDoesNotOverrideLiveState(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, StoreConfig{})
	store.ApplySnapshotSessions([]reef.Session{{ID: "live", Status: reef.StatusRunning}})
	store.ApplySnapshotOutput("live", "fresh")

	store.Seed(
		[]reef.Session{{ID: "live", Status: reef.StatusCompleted}, {ID: "cached", Status: reef.StatusStopped}},
		map[string]string{"live": "stale", "cached": "old output"},
	)

	live, _ := store.Get("live")
	if live.Status != reef.StatusRunning {
		t.Errorf("seed overrode live status: %q", live.Status)
	}
	requireText(t, store, "live", "fresh")
	requireText(t, store, "cached", "old output")

	outputs := store.Outputs()
	if outputs["cached"] != "old output" || outputs["live"] != "fresh" {
		t.Errorf("Outputs() = %v", outputs)
	}
}
