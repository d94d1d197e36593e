// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reefstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/reef/lib/clock"
	"github.com/bureau-foundation/reef/lib/netutil"
	"github.com/bureau-foundation/reef/lib/schema/reef"
)

// DefaultURL is the stream endpoint of a local reef-core.
const DefaultURL = "ws://localhost:7777/ws"

// Backoff bounds for reconnection. The delay doubles after every
// failed attempt and returns to initialBackoff as soon as a connection
// succeeds.
const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

const (
	// handshakeTimeout bounds the subscribe_all write.
	handshakeTimeout = 5 * time.Second

	// writeTimeout bounds each queued outbound write.
	writeTimeout = 5 * time.Second

	// outboxSize is how many outbound messages may be queued on a
	// connection before SendRaw starts dropping.
	outboxSize = 64
)

// State is the connection state of a Channel.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// UpdateKind distinguishes the two things a Channel reports.
type UpdateKind int

const (
	// UpdateState reports a connection state transition in Update.State.
	UpdateState UpdateKind = iota

	// UpdateMessage carries an inbound envelope in Update.Message.
	UpdateMessage
)

// Update is one item on Channel.Updates.
type Update struct {
	Kind    UpdateKind
	State   State
	Message reef.ServerMessage
}

// ChannelConfig configures a Channel. Zero values select the defaults.
type ChannelConfig struct {
	// URL is the stream endpoint. Defaults to DefaultURL.
	URL string

	// Dial opens connections. Defaults to DialWebSocket.
	Dial DialFunc

	// Clock drives the reconnect timer. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// InitialBackoff and MaxBackoff override the reconnect delays.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Channel owns the single stream connection to the service.
//
// Start and Stop may be called from any goroutine. Every state change
// and every inbound envelope is queued, in order, for Updates; the
// queue is unbounded so the reader never waits on the consumer and
// never drops.
type Channel struct {
	url            string
	dial           DialFunc
	clock          clock.Clock
	logger         *slog.Logger
	initialBackoff time.Duration
	maxBackoff     time.Duration

	mu sync.Mutex

	// generation increments on every Start and Stop. Work begun under
	// an older generation is discarded when it completes.
	generation uint64

	state   State
	cancel  context.CancelFunc
	backoff time.Duration

	// reconnect is the pending backoff timer; retry wakes the stream
	// loop early when Start is called during a backoff wait.
	reconnect *clock.Timer
	retry     chan struct{}

	// outbox is the current connection's write queue; nil unless
	// connected.
	outbox chan []byte

	attempts uint64

	updates *mailbox
}

// NewChannel returns a stopped Channel. Call Start to connect.
func NewChannel(config ChannelConfig) *Channel {
	if config.URL == "" {
		config.URL = DefaultURL
	}
	if config.Dial == nil {
		config.Dial = DialWebSocket
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = initialBackoff
	}
	if config.MaxBackoff < config.InitialBackoff {
		config.MaxBackoff = max(maxBackoff, config.InitialBackoff)
	}
	return &Channel{
		url:            config.URL,
		dial:           config.Dial,
		clock:          config.Clock,
		logger:         config.Logger.With("url", config.URL),
		initialBackoff: config.InitialBackoff,
		maxBackoff:     config.MaxBackoff,
		state:          StateDisconnected,
		backoff:        config.InitialBackoff,
		updates:        newMailbox(),
	}
}

// Updates delivers state changes and inbound envelopes in order. It is
// closed by Close.
func (c *Channel) Updates() <-chan Update { return c.updates.out }

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the number of dials started since construction.
func (c *Channel) Attempts() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Start begins connecting. While a connection is being established or
// is up, Start does nothing. While the channel is waiting out a
// reconnect delay, Start cuts the wait short and dials immediately.
func (c *Channel) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		if c.reconnect != nil {
			select {
			case c.retry <- struct{}{}:
			default:
			}
		}
		return
	}

	c.generation++
	generation := c.generation
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.retry = make(chan struct{}, 1)
	c.setStateLocked(StateConnecting)

	go c.streamLoop(ctx, generation, c.retry)
}

// Stop closes the connection, cancels any pending reconnect, and
// reports StateDisconnected. Nothing reconnects until the next Start.
// Dials or reads that complete after Stop are discarded.
func (c *Channel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.outbox = nil
	c.setStateLocked(StateDisconnected)
}

// Close stops the channel and closes Updates once everything queued
// before it has been delivered or abandoned.
func (c *Channel) Close() {
	c.Stop()
	c.updates.close()
}

// SendRaw queues data for the current connection. It reports false,
// and drops data, when the channel is not connected or the write queue
// is full. Delivery is never guaranteed.
func (c *Channel) SendRaw(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnected || c.outbox == nil {
		return false
	}
	select {
	case c.outbox <- data:
		return true
	default:
		c.logger.Warn("stream write queue full, dropping message", "bytes", len(data))
		return false
	}
}

// SendMessage relays message to a session's agent over the stream.
func (c *Channel) SendMessage(sessionID, message string) bool {
	data, err := json.Marshal(reef.ClientMessage{
		Type:      reef.ClientSend,
		SessionID: sessionID,
		Message:   message,
	})
	if err != nil {
		return false
	}
	return c.SendRaw(data)
}

// streamLoop runs connection attempts for one generation until ctx is
// cancelled.
func (c *Channel) streamLoop(ctx context.Context, generation uint64, retry <-chan struct{}) {
	for {
		err := c.runStream(ctx, generation)
		if ctx.Err() != nil {
			return
		}

		wake := make(chan struct{})
		c.mu.Lock()
		if generation != c.generation {
			c.mu.Unlock()
			return
		}
		c.outbox = nil
		c.setStateLocked(StateDisconnected)
		delay := c.backoff
		c.backoff = min(c.backoff*2, c.maxBackoff)
		c.reconnect = c.clock.AfterFunc(delay, func() { close(wake) })
		c.mu.Unlock()

		if netutil.IsExpectedCloseError(err) {
			c.logger.Info("event stream closed, reconnecting", "backoff", delay)
		} else {
			c.logger.Warn("event stream disconnected, reconnecting", "error", err, "backoff", delay)
		}

		select {
		case <-ctx.Done():
			return
		case <-wake:
		case <-retry:
		}

		c.mu.Lock()
		if generation != c.generation {
			c.mu.Unlock()
			return
		}
		if c.reconnect != nil {
			c.reconnect.Stop()
			c.reconnect = nil
		}
		c.setStateLocked(StateConnecting)
		c.mu.Unlock()
	}
}

// runStream makes one connection attempt: dial, subscribe, then read
// until the connection ends. Returns the error that ended it.
func (c *Channel) runStream(ctx context.Context, generation uint64) error {
	c.mu.Lock()
	c.attempts++
	c.mu.Unlock()

	conn, err := c.dial(ctx, c.url)
	if err != nil {
		return fmt.Errorf("dialing: %w", err)
	}
	defer conn.Close()

	connContext, cancelConn := context.WithCancel(ctx)
	defer cancelConn()

	subscribe, err := json.Marshal(reef.ClientMessage{Type: reef.ClientSubscribeAll})
	if err != nil {
		return err
	}
	handshakeContext, cancelHandshake := context.WithTimeout(connContext, handshakeTimeout)
	err = conn.Write(handshakeContext, subscribe)
	cancelHandshake()
	if err != nil {
		return fmt.Errorf("sending subscribe: %w", err)
	}

	outbox := make(chan []byte, outboxSize)
	c.mu.Lock()
	if generation != c.generation {
		c.mu.Unlock()
		return context.Canceled
	}
	c.backoff = c.initialBackoff
	c.outbox = outbox
	c.setStateLocked(StateConnected)
	c.mu.Unlock()
	c.logger.Info("event stream connected")

	go c.writeLoop(connContext, cancelConn, conn, outbox)

	for {
		data, err := conn.Read(connContext)
		if err != nil {
			return err
		}
		var message reef.ServerMessage
		if err := json.Unmarshal(data, &message); err != nil {
			c.logger.Debug("dropping malformed stream message", "error", err, "bytes", len(data))
			continue
		}
		if message.Type == "" {
			c.logger.Debug("dropping stream message without type", "bytes", len(data))
			continue
		}
		if !c.publish(generation, message) {
			return context.Canceled
		}
	}
}

// writeLoop drains outbox onto conn. A failed write cancels the
// connection so the reader returns and the stream loop reconnects.
func (c *Channel) writeLoop(ctx context.Context, cancel context.CancelFunc, conn Conn, outbox <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-outbox:
			writeContext, cancelWrite := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeContext, data)
			cancelWrite()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					c.logger.Warn("event stream write failed", "error", err)
				}
				cancel()
				return
			}
		}
	}
}

// publish queues an inbound envelope unless generation is stale.
func (c *Channel) publish(generation uint64, message reef.ServerMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return false
	}
	c.updates.push(Update{Kind: UpdateMessage, Message: message})
	return true
}

// setStateLocked records and reports a transition. Transitions to the
// current state are not reported. Caller holds c.mu.
func (c *Channel) setStateLocked(state State) {
	if c.state == state {
		return
	}
	c.state = state
	c.updates.push(Update{Kind: UpdateState, State: state})
}

// mailbox is an unbounded FIFO feeding a channel. push never blocks.
type mailbox struct {
	mu     sync.Mutex
	queue  []Update
	closed bool
	signal chan struct{}
	done   chan struct{}
	out    chan Update
}

func newMailbox() *mailbox {
	m := &mailbox{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan Update),
	}
	go m.pump()
	return m
}

func (m *mailbox) push(update Update) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, update)
	m.mu.Unlock()
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.done)
}

func (m *mailbox) pump() {
	defer close(m.out)
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			select {
			case <-m.signal:
				continue
			case <-m.done:
				return
			}
		}
		next := m.queue[0]
		m.queue[0] = Update{}
		m.queue = m.queue[1:]
		m.mu.Unlock()

		select {
		case m.out <- next:
		case <-m.done:
			return
		}
	}
}
