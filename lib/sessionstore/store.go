// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sessionstore

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/bureau-foundation/reef/lib/clock"
	"github.com/bureau-foundation/reef/lib/reefstream"
	"github.com/bureau-foundation/reef/lib/schema/reef"
)

// Default buffer limits.
const (
	DefaultMaxFragments = 4096
	DefaultMaxBytes     = 4 << 20
	DefaultMaxOrphans   = 256
)

// subscriberBuffer is the capacity of each Subscribe channel.
const subscriberBuffer = 64

// StoreConfig configures a Store. The zero value is usable.
type StoreConfig struct {
	// Merge derives visible output from baseline and stream text.
	// Nil selects LongerWins.
	Merge MergeFunc

	// MaxFragments and MaxBytes cap each session's stream buffer.
	// Zero selects the defaults; negative disables the limit.
	MaxFragments int
	MaxBytes     int

	// MaxOrphans caps how many unknown session ids may hold buffered
	// output. Zero selects the default.
	MaxOrphans int

	// Clock stamps sessions created from stream events and tool
	// calls. Nil selects the real clock.
	Clock clock.Clock

	// Logger receives reconciliation diagnostics. Nil selects
	// slog.Default().
	Logger *slog.Logger
}

// ChangeKind classifies a Change.
type ChangeKind string

const (
	// ChangeSessions: the session list or a session's fields changed.
	ChangeSessions ChangeKind = "sessions"

	// ChangeOutput: a session's output received a snapshot or fragment.
	ChangeOutput ChangeKind = "output"

	// ChangeSelection: the selected session changed.
	ChangeSelection ChangeKind = "selection"

	// ChangeTools: a session's tool calls changed.
	ChangeTools ChangeKind = "tools"
)

// Change notifies subscribers that the store was mutated. Receivers
// re-read the store; the change carries no data.
type Change struct {
	Kind      ChangeKind
	SessionID string

	// Revision is the output revision for ChangeOutput, zero otherwise.
	Revision uint64
}

// entry is everything the store holds for one id. session is nil while
// the id is an orphan: output arrived before the session did.
type entry struct {
	session *reef.Session
	output  outputBuffer
	tools   toolLog
}

// Store holds the reconciled session state. All methods are safe for
// concurrent use; each mutation takes the lock once.
type Store struct {
	merge        MergeFunc
	maxFragments int
	maxBytes     int
	maxOrphans   int
	clock        clock.Clock
	logger       *slog.Logger

	mutex    sync.RWMutex
	entries  map[string]*entry
	order    []string
	orphans  []string
	selected string

	subscribers []chan Change
}

// New creates an empty Store.
func New(config StoreConfig) *Store {
	store := &Store{
		merge:        config.Merge,
		maxFragments: config.MaxFragments,
		maxBytes:     config.MaxBytes,
		maxOrphans:   config.MaxOrphans,
		clock:        config.Clock,
		logger:       config.Logger,
		entries:      make(map[string]*entry),
	}
	if store.merge == nil {
		store.merge = LongerWins
	}
	if store.maxFragments == 0 {
		store.maxFragments = DefaultMaxFragments
	}
	if store.maxBytes == 0 {
		store.maxBytes = DefaultMaxBytes
	}
	if store.maxOrphans <= 0 {
		store.maxOrphans = DefaultMaxOrphans
	}
	if store.clock == nil {
		store.clock = clock.Real()
	}
	if store.logger == nil {
		store.logger = slog.Default()
	}
	return store
}

// Subscribe returns a channel that receives a Change after every
// mutation. Sends never block: when the channel is full the change is
// dropped, and the receiver catches up on its next read of the store.
func (store *Store) Subscribe() <-chan Change {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	channel := make(chan Change, subscriberBuffer)
	store.subscribers = append(store.subscribers, channel)
	return channel
}

// Unsubscribe stops delivery to a channel returned by Subscribe. The
// channel is not closed; a dispatch already in progress may still
// deliver to it.
func (store *Store) Unsubscribe(channel <-chan Change) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for index, subscriber := range store.subscribers {
		if subscriber == channel {
			store.subscribers = slices.Delete(slices.Clone(store.subscribers), index, index+1)
			return
		}
	}
}

// notify delivers changes to the subscribers captured under the lock.
// Called after the lock is released.
func notify(subscribers []chan Change, changes ...Change) {
	for _, change := range changes {
		for _, subscriber := range subscribers {
			select {
			case subscriber <- change:
			default:
			}
		}
	}
}

// unlockAndNotify releases the write lock and then dispatches changes.
// The subscriber slice is replaced, never mutated in place, so the
// captured slice stays valid after unlock.
func (store *Store) unlockAndNotify(changes ...Change) {
	subscribers := store.subscribers
	store.mutex.Unlock()
	notify(subscribers, changes...)
}

// ApplySnapshotSessions upserts every session in list. Sessions the
// store holds but list omits are kept.
func (store *Store) ApplySnapshotSessions(list []reef.Session) {
	store.mutex.Lock()
	changes := make([]Change, 0, len(list))
	for _, session := range list {
		if session.ID == "" {
			continue
		}
		if store.upsertLocked(session) {
			changes = append(changes, Change{Kind: ChangeSessions, SessionID: session.ID})
		}
	}
	store.unlockAndNotify(changes...)
}

// Upsert inserts or updates one session with snapshot semantics. Used
// for the session returned by a spawn request.
func (store *Store) Upsert(session reef.Session) {
	if session.ID == "" {
		return
	}
	store.mutex.Lock()
	if !store.upsertLocked(session) {
		store.mutex.Unlock()
		return
	}
	store.unlockAndNotify(Change{Kind: ChangeSessions, SessionID: session.ID})
}

// upsertLocked applies one snapshot session. Status, error and
// created_at come from the snapshot; descriptors are filled only when
// empty; updated_at keeps the later of the two. Reports whether
// anything changed.
func (store *Store) upsertLocked(incoming reef.Session) bool {
	existing := store.sessionEntryLocked(incoming.ID)
	if existing.session == nil {
		copied := incoming
		store.attachLocked(incoming.ID, existing, &copied)
		return true
	}

	session := existing.session
	before := *session
	session.Status = incoming.Status
	session.Error = incoming.Error
	fillEmpty(&session.Task, incoming.Task)
	fillEmpty(&session.Backend, incoming.Backend)
	fillEmpty(&session.Provider, incoming.Provider)
	fillEmpty(&session.Model, incoming.Model)
	fillEmpty(&session.Workdir, incoming.Workdir)
	if incoming.CreatedAt != "" {
		session.CreatedAt = incoming.CreatedAt
	}
	session.UpdatedAt = reef.LaterTimestamp(session.UpdatedAt, incoming.UpdatedAt)
	return *session != before
}

func fillEmpty(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// sessionEntryLocked returns the entry for id, creating an empty one
// (not yet an orphan, not yet ordered) if none exists.
func (store *Store) sessionEntryLocked(id string) *entry {
	existing, exists := store.entries[id]
	if !exists {
		existing = &entry{}
		store.entries[id] = existing
	}
	return existing
}

// attachLocked gives an entry its session, promoting it out of the
// orphan list if it was there.
func (store *Store) attachLocked(id string, target *entry, session *reef.Session) {
	target.session = session
	store.order = append(store.order, id)
	if index := slices.Index(store.orphans, id); index >= 0 {
		store.orphans = slices.Delete(store.orphans, index, index+1)
	}
}

// ApplySnapshotOutput replaces the snapshot baseline for id. Output
// for an unknown id is buffered like stream output.
func (store *Store) ApplySnapshotOutput(id, text string) {
	if id == "" {
		return
	}
	store.mutex.Lock()
	target := store.outputEntryLocked(id)
	if target == nil {
		store.mutex.Unlock()
		return
	}
	target.output.setBaseline(text)
	store.unlockAndNotify(Change{Kind: ChangeOutput, SessionID: id, Revision: target.output.revision})
}

// outputEntryLocked returns the entry that should receive output for
// id, registering an orphan if the session is unknown. Returns nil only
// if id is empty.
func (store *Store) outputEntryLocked(id string) *entry {
	if id == "" {
		return nil
	}
	if existing, exists := store.entries[id]; exists {
		return existing
	}
	orphan := &entry{}
	store.entries[id] = orphan
	store.orphans = append(store.orphans, id)
	for len(store.orphans) > store.maxOrphans {
		evicted := store.orphans[0]
		store.orphans = store.orphans[1:]
		delete(store.entries, evicted)
		store.logger.Debug("evicted orphan output buffer", "session_id", evicted)
	}
	return orphan
}

// ApplyEvent applies one stream event. It reports whether the event's
// session was known to the store; false for output means the output
// was buffered as an orphan, and for the other events that nothing
// changed.
func (store *Store) ApplyEvent(event reefstream.Event) bool {
	id := event.SessionID()
	if id == "" {
		return false
	}

	store.mutex.Lock()
	switch event := event.(type) {
	case reefstream.SessionNew:
		existing, exists := store.entries[id]
		if exists && existing.session != nil {
			store.mutex.Unlock()
			return true
		}
		now := reef.FormatTimestamp(store.clock.Now())
		session := &reef.Session{
			ID:        id,
			Task:      event.Task,
			Status:    reef.StatusRunning,
			Backend:   event.Backend,
			Provider:  event.Provider,
			Model:     event.Model,
			CreatedAt: now,
			UpdatedAt: now,
		}
		store.attachLocked(id, store.sessionEntryLocked(id), session)
		store.unlockAndNotify(Change{Kind: ChangeSessions, SessionID: id})
		return false

	case reefstream.SessionEnd:
		status := reef.StatusStopped
		if event.Completed() {
			status = reef.StatusCompleted
		}
		return store.setStatusLocked(id, status, "")

	case reefstream.StatusChange:
		return store.setStatusLocked(id, event.Status, event.Error)

	case reefstream.Output:
		existing, known := store.entries[id]
		known = known && existing.session != nil
		target := store.outputEntryLocked(id)
		target.output.appendFragment(event.Text, store.maxFragments, store.maxBytes)
		store.unlockAndNotify(Change{Kind: ChangeOutput, SessionID: id, Revision: target.output.revision})
		return known

	case reefstream.ToolStart:
		existing, exists := store.entries[id]
		if !exists || existing.session == nil {
			store.mutex.Unlock()
			return false
		}
		existing.tools.start(event.ToolCallID, event.ToolName, event.Args, store.clock.Now())
		store.unlockAndNotify(Change{Kind: ChangeTools, SessionID: id})
		return true

	case reefstream.ToolEnd:
		existing, exists := store.entries[id]
		if !exists || existing.session == nil {
			store.mutex.Unlock()
			return false
		}
		existing.tools.end(event.ToolCallID, event.ToolName, event.IsError, store.clock.Now())
		store.unlockAndNotify(Change{Kind: ChangeTools, SessionID: id})
		return true
	}

	store.mutex.Unlock()
	store.logger.Debug("ignoring unhandled event", "type", event.Type(), "session_id", id)
	return false
}

// setStatusLocked overwrites a known session's status. Releases the
// lock. errorMessage replaces the session's error only when non-empty.
func (store *Store) setStatusLocked(id string, status reef.Status, errorMessage string) bool {
	existing, exists := store.entries[id]
	if !exists || existing.session == nil {
		store.mutex.Unlock()
		return false
	}
	session := existing.session
	session.Status = status
	if errorMessage != "" {
		session.Error = errorMessage
	}
	session.UpdatedAt = reef.LaterTimestamp(session.UpdatedAt, reef.FormatTimestamp(store.clock.Now()))
	store.unlockAndNotify(Change{Kind: ChangeSessions, SessionID: id})
	return true
}

// Seed loads previously saved state without overriding anything the
// store already knows: sessions are added only if absent and baselines
// are set only for sessions with no output yet.
func (store *Store) Seed(sessions []reef.Session, outputs map[string]string) {
	store.mutex.Lock()
	var changes []Change
	for _, session := range sessions {
		if session.ID == "" {
			continue
		}
		if existing, exists := store.entries[session.ID]; exists && existing.session != nil {
			continue
		}
		copied := session
		store.attachLocked(session.ID, store.sessionEntryLocked(session.ID), &copied)
		changes = append(changes, Change{Kind: ChangeSessions, SessionID: session.ID})
	}
	for id, text := range outputs {
		existing, exists := store.entries[id]
		if !exists || existing.session == nil || existing.output.revision > 0 {
			continue
		}
		existing.output.setBaseline(text)
		changes = append(changes, Change{Kind: ChangeOutput, SessionID: id, Revision: existing.output.revision})
	}
	store.unlockAndNotify(changes...)
}

// Select marks id as the selected session. An empty id clears the
// selection. Reports false, leaving the selection unchanged, if id is
// not a known session.
func (store *Store) Select(id string) bool {
	store.mutex.Lock()
	if id != "" {
		existing, exists := store.entries[id]
		if !exists || existing.session == nil {
			store.mutex.Unlock()
			return false
		}
	}
	if store.selected == id {
		store.mutex.Unlock()
		return true
	}
	store.selected = id
	store.unlockAndNotify(Change{Kind: ChangeSelection, SessionID: id})
	return true
}

// Remove forgets id locally: its session, output and tool calls. The
// service is not contacted, so a later snapshot that still lists the
// session brings it back. Reports whether anything was removed.
func (store *Store) Remove(id string) bool {
	store.mutex.Lock()
	if _, exists := store.entries[id]; !exists {
		store.mutex.Unlock()
		return false
	}
	delete(store.entries, id)
	if index := slices.Index(store.order, id); index >= 0 {
		store.order = slices.Delete(store.order, index, index+1)
	}
	if index := slices.Index(store.orphans, id); index >= 0 {
		store.orphans = slices.Delete(store.orphans, index, index+1)
	}
	changes := []Change{{Kind: ChangeSessions, SessionID: id}}
	if store.selected == id {
		store.selected = ""
		changes = append(changes, Change{Kind: ChangeSelection})
	}
	store.unlockAndNotify(changes...)
	return true
}

// List returns a copy of every known session in the order the store
// first learned of them.
func (store *Store) List() []reef.Session {
	return store.collect(func(reef.Session) bool { return true })
}

// Running returns the sessions whose status is running.
func (store *Store) Running() []reef.Session {
	return store.collect(func(session reef.Session) bool {
		return session.Status == reef.StatusRunning
	})
}

// Completed returns every session that is not running, including
// sessions with an unrecognized status.
func (store *Store) Completed() []reef.Session {
	return store.collect(func(session reef.Session) bool {
		return session.Status != reef.StatusRunning
	})
}

func (store *Store) collect(keep func(reef.Session) bool) []reef.Session {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	result := make([]reef.Session, 0, len(store.order))
	for _, id := range store.order {
		session := *store.entries[id].session
		if keep(session) {
			result = append(result, session)
		}
	}
	return result
}

// Len returns the number of known sessions.
func (store *Store) Len() int {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return len(store.order)
}

// Orphans returns the ids holding output for sessions the store does
// not know yet, oldest first.
func (store *Store) Orphans() []string {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return slices.Clone(store.orphans)
}

// Get returns a copy of the session with id.
func (store *Store) Get(id string) (reef.Session, bool) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	existing, exists := store.entries[id]
	if !exists || existing.session == nil {
		return reef.Session{}, false
	}
	return *existing.session, true
}

// Output returns the output view for a known session. Output buffered
// for an unknown id is not reported until the session appears.
func (store *Store) Output(id string) (OutputView, bool) {
	// Materialization writes to the buffer, so this takes the write
	// lock.
	store.mutex.Lock()
	defer store.mutex.Unlock()
	existing, exists := store.entries[id]
	if !exists || existing.session == nil {
		return OutputView{}, false
	}
	return existing.output.view(store.merge), true
}

// Outputs returns the visible text of every known session with
// output, keyed by id.
func (store *Store) Outputs() map[string]string {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	result := make(map[string]string)
	for _, id := range store.order {
		existing := store.entries[id]
		if view := existing.output.view(store.merge); view.Text != "" {
			result[id] = view.Text
		}
	}
	return result
}

// Selected returns the selected session, if any.
func (store *Store) Selected() (reef.Session, bool) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	if store.selected == "" {
		return reef.Session{}, false
	}
	existing, exists := store.entries[store.selected]
	if !exists || existing.session == nil {
		return reef.Session{}, false
	}
	return *existing.session, true
}

// SelectedID returns the selected session id, or "".
func (store *Store) SelectedID() string {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return store.selected
}

// Tools returns the tool calls recorded for id, oldest first.
func (store *Store) Tools(id string) []ToolCall {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	existing, exists := store.entries[id]
	if !exists || existing.session == nil {
		return nil
	}
	return existing.tools.list()
}
