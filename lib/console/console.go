// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/bureau-foundation/reef/lib/clock"
	"github.com/bureau-foundation/reef/lib/reefapi"
	"github.com/bureau-foundation/reef/lib/reefstream"
	"github.com/bureau-foundation/reef/lib/schema/reef"
	"github.com/bureau-foundation/reef/lib/sessionstore"
)

// Defaults for Config.
const (
	DefaultRefreshInterval = 5 * time.Second
	DefaultOutputLines     = reefapi.DefaultOutputLines
)

// postBuffer is the capacity of the owner loop's work queue.
const postBuffer = 16

// ErrStopped is returned by operations that need the owner loop after
// Run has returned.
var ErrStopped = errors.New("console: stopped")

// API is the subset of the HTTP client the console uses. Satisfied by
// *reefapi.Client.
type API interface {
	Status(ctx context.Context) (reef.StatusResponse, error)
	Sessions(ctx context.Context) ([]reef.Session, error)
	Output(ctx context.Context, sessionID string, lines int) (reef.OutputResponse, error)
	Spawn(ctx context.Context, request reef.SpawnRequest) (reef.Session, error)
	Send(ctx context.Context, sessionID, message string) error
	Kill(ctx context.Context, sessionID string) error
}

// Stream is the subset of the event channel the console uses.
// Satisfied by *reefstream.Channel.
type Stream interface {
	Start()
	Stop()
	Updates() <-chan reefstream.Update
	SendMessage(sessionID, message string) bool
}

// Config configures a Console. API, Stream and Store are required.
type Config struct {
	API    API
	Stream Stream
	Store  *sessionstore.Store

	// RefreshInterval is the period of the background snapshot
	// refresh. Defaults to DefaultRefreshInterval.
	RefreshInterval time.Duration

	// OutputLines is the line hint sent when fetching output.
	// Defaults to DefaultOutputLines.
	OutputLines int

	// Clock drives the refresh ticker. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Cache, when set, receives a snapshot of the store when Run
	// returns.
	Cache *CacheConfig
}

// ServiceStatus is the console's view of the service's health.
type ServiceStatus struct {
	// Reachable is the outcome of the most recent status fetch.
	Reachable bool

	// Uptime and Version are from the most recent successful status
	// fetch.
	Uptime  time.Duration
	Version string

	// Loading is true until the first refresh has been applied,
	// whether or not its fetches succeeded.
	Loading bool

	// LastError is the message of the most recent failed fetch,
	// cleared by the next successful status fetch.
	LastError string

	// LastRefresh is when the most recent refresh was applied.
	LastRefresh time.Time
}

// Console ties the event channel, the HTTP client and the session store
// together. One goroutine, Run, applies every store mutation: stream
// events, refresh results and command completions. Network I/O happens
// on helper goroutines that post their results back to Run.
type Console struct {
	api         API
	stream      Stream
	store       *sessionstore.Store
	router      *reefstream.Router
	clock       clock.Clock
	logger      *slog.Logger
	interval    time.Duration
	outputLines int
	cache       *CacheConfig

	posts chan func()
	done  chan struct{}

	// epoch increments whenever in-flight refreshes become stale:
	// when Run exits and after a kill. A refresh applies its result
	// only if the epoch has not moved since it started.
	epoch     atomic.Uint64
	refreshes singleflight.Group

	mu         sync.Mutex
	runCtx     context.Context
	running    bool
	connection reefstream.State
	service    ServiceStatus
}

// New validates config and returns a Console. Call Run to start it.
func New(config Config) (*Console, error) {
	if config.API == nil {
		return nil, errors.New("console: API is required")
	}
	if config.Stream == nil {
		return nil, errors.New("console: Stream is required")
	}
	if config.Store == nil {
		return nil, errors.New("console: Store is required")
	}
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = DefaultRefreshInterval
	}
	if config.OutputLines <= 0 {
		config.OutputLines = DefaultOutputLines
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	console := &Console{
		api:         config.API,
		stream:      config.Stream,
		store:       config.Store,
		clock:       config.Clock,
		logger:      config.Logger,
		interval:    config.RefreshInterval,
		outputLines: config.OutputLines,
		cache:       config.Cache,
		posts:       make(chan func(), postBuffer),
		done:        make(chan struct{}),
		runCtx:      context.Background(),
		connection:  reefstream.StateDisconnected,
		service:     ServiceStatus{Loading: true},
	}
	console.router = reefstream.NewRouter(config.Logger, reefstream.HandlerFunc(console.handleEvent))
	return console, nil
}

// Store returns the session store the console maintains.
func (c *Console) Store() *sessionstore.Store { return c.store }

// Connection returns the most recent stream state Run observed.
func (c *Console) Connection() reefstream.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connection
}

// Service returns the most recent service status.
func (c *Console) Service() ServiceStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.service
}

// Run starts the stream, performs an initial refresh, and then applies
// stream updates, periodic refreshes and posted completions until ctx
// is cancelled. The stream is stopped before Run returns. Run may be
// called once.
func (c *Console) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("console: Run called twice")
	}
	c.running = true
	c.runCtx = ctx
	c.mu.Unlock()

	defer close(c.done)
	defer c.saveCache()
	defer c.epoch.Add(1)
	defer c.stream.Stop()

	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	c.stream.Start()
	c.startRefresh()

	updates := c.stream.Updates()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case update, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			c.handleUpdate(update)

		case <-ticker.C:
			c.startRefresh()

		case work := <-c.posts:
			work()
		}
	}
}

// saveCache runs after the stream has stopped, so the snapshot holds
// everything Run applied.
func (c *Console) saveCache() {
	if c.cache == nil {
		return
	}
	if err := SaveCache(c.store, *c.cache, c.clock.Now()); err != nil {
		c.logger.Warn("saving snapshot cache failed", "path", c.cache.Path, "error", err)
		return
	}
	c.logger.Debug("saved snapshot cache", "path", c.cache.Path, "sessions", c.store.Len())
}

func (c *Console) handleUpdate(update reefstream.Update) {
	switch update.Kind {
	case reefstream.UpdateState:
		c.mu.Lock()
		previous := c.connection
		c.connection = update.State
		c.mu.Unlock()
		c.logger.Info("stream state changed", "from", previous, "to", update.State)
		if update.State == reefstream.StateConnected && previous != reefstream.StateConnected {
			c.startRefresh()
		}

	case reefstream.UpdateMessage:
		c.router.Route(update.Message)
	}
}

// handleEvent runs on the owner loop via the router.
func (c *Console) handleEvent(event reefstream.Event) {
	known := c.store.ApplyEvent(event)
	if _, isOutput := event.(reefstream.Output); isOutput && !known {
		c.logger.Debug("output for unknown session, refreshing", "session_id", event.SessionID())
		c.startRefresh()
	}
}

// post queues work for the owner loop and waits until it has run.
func (c *Console) post(ctx context.Context, work func()) error {
	applied := make(chan struct{})
	wrapped := func() {
		work()
		close(applied)
	}
	select {
	case c.posts <- wrapped:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-applied:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runContext returns the context Run was called with.
func (c *Console) runContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runCtx
}

// startRefresh begins a refresh on a helper goroutine.
func (c *Console) startRefresh() {
	ctx := c.runContext()
	go func() {
		if err := c.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrStopped) {
			c.logger.Debug("refresh failed", "error", err)
		}
	}()
}

// snapshot is the result of one refresh's fetches.
type snapshot struct {
	status    reef.StatusResponse
	statusErr error

	sessions    []reef.Session
	sessionsErr error

	selectedID string
	output     reef.OutputResponse
	outputErr  error
}

// Refresh fetches the service status, the session list and the
// selected session's output concurrently and applies them on the owner
// loop. Concurrent calls share one fetch. Results are discarded if the
// console stopped or a kill completed while the fetch was in flight. It
// returns the first fetch error, after applying whatever succeeded.
func (c *Console) Refresh(ctx context.Context) error {
	_, err, _ := c.refreshes.Do("refresh", func() (any, error) {
		epoch := c.epoch.Load()
		result := c.fetch(ctx)
		postErr := c.post(ctx, func() { c.applySnapshot(epoch, result) })
		return nil, errors.Join(postErr, result.statusErr, result.sessionsErr, result.outputErr)
	})
	return err
}

func (c *Console) fetch(ctx context.Context) snapshot {
	result := snapshot{selectedID: c.store.SelectedID()}

	var group errgroup.Group
	group.Go(func() error {
		result.status, result.statusErr = c.api.Status(ctx)
		return nil
	})
	group.Go(func() error {
		result.sessions, result.sessionsErr = c.api.Sessions(ctx)
		return nil
	})
	if result.selectedID != "" {
		group.Go(func() error {
			result.output, result.outputErr = c.api.Output(ctx, result.selectedID, c.outputLines)
			return nil
		})
	}
	group.Wait()
	return result
}

// applySnapshot runs on the owner loop. A failed fetch never clears
// state the store already holds.
func (c *Console) applySnapshot(epoch uint64, result snapshot) {
	if current := c.epoch.Load(); current != epoch {
		c.logger.Debug("discarding stale refresh", "epoch", epoch, "current", current)
		return
	}

	if result.sessionsErr == nil {
		c.store.ApplySnapshotSessions(result.sessions)
	}
	if result.selectedID != "" && result.outputErr == nil {
		c.store.ApplySnapshotOutput(result.selectedID, result.output.Output)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if result.statusErr == nil {
		c.service.Reachable = true
		c.service.Uptime = time.Duration(result.status.Uptime * float64(time.Second))
		c.service.Version = result.status.Version
		c.service.LastError = ""
	} else {
		c.service.Reachable = false
		c.service.LastError = result.statusErr.Error()
	}
	if result.sessionsErr != nil {
		c.service.LastError = result.sessionsErr.Error()
	}
	c.service.Loading = false
	c.service.LastRefresh = c.clock.Now()
}

// invalidateRefreshes makes any in-flight refresh stale and detaches
// it from the single-flight group so the next Refresh fetches anew.
func (c *Console) invalidateRefreshes() {
	c.epoch.Add(1)
	c.refreshes.Forget("refresh")
}

// Select marks id as selected and fetches its output in the
// background. Reports false if id is not a known session.
func (c *Console) Select(id string) bool {
	if !c.store.Select(id) {
		return false
	}
	if id == "" {
		return true
	}
	ctx := c.runContext()
	go func() {
		if err := c.FetchOutput(ctx, id); err != nil {
			c.logger.Debug("fetching selected output failed", "session_id", id, "error", err)
		}
	}()
	return true
}

// FetchOutput fetches a session's output and applies it as its
// snapshot baseline.
func (c *Console) FetchOutput(ctx context.Context, id string) error {
	response, err := c.api.Output(ctx, id, c.outputLines)
	if err != nil {
		return fmt.Errorf("console: output %s: %w", id, err)
	}
	return c.post(ctx, func() { c.store.ApplySnapshotOutput(id, response.Output) })
}

// Remove forgets a session locally.
func (c *Console) Remove(id string) bool {
	return c.store.Remove(id)
}

// Spawn asks the service to start a session. On success the returned
// session is stored and selected before Spawn returns; the session.new
// event that follows is then a no-op.
func (c *Console) Spawn(ctx context.Context, request reef.SpawnRequest) (reef.Session, error) {
	session, err := c.api.Spawn(ctx, request)
	if err != nil {
		return reef.Session{}, fmt.Errorf("console: spawn: %w", err)
	}
	err = c.post(ctx, func() {
		c.store.Upsert(session)
		c.store.Select(session.ID)
	})
	if err != nil {
		return session, fmt.Errorf("console: spawn: %w", err)
	}
	return session, nil
}

// Send relays a message to a session over HTTP. Nothing changes locally.
func (c *Console) Send(ctx context.Context, id, message string) error {
	if err := c.api.Send(ctx, id, message); err != nil {
		return fmt.Errorf("console: send: %w", err)
	}
	return nil
}

// SendViaStream relays a message over the event stream. Reports false
// if the stream is not connected or its write queue is full.
func (c *Console) SendViaStream(id, message string) bool {
	return c.stream.SendMessage(id, message)
}

// Kill asks the service to end a session. On success any in-flight
// refresh is discarded and a new one starts immediately.
func (c *Console) Kill(ctx context.Context, id string) error {
	if err := c.api.Kill(ctx, id); err != nil {
		return fmt.Errorf("console: kill: %w", err)
	}
	c.invalidateRefreshes()
	c.startRefresh()
	return nil
}
