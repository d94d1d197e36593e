// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reefstream

import (
	"context"
	"time"

	"github.com/coder/websocket"
)

// Conn is one established stream connection. Read is called from a
// single goroutine; Write and Close may be called concurrently with it.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// DialFunc opens a Conn to url. It must return promptly once ctx is
// cancelled.
type DialFunc func(ctx context.Context, url string) (Conn, error)

const (
	// dialTimeout bounds the WebSocket handshake.
	dialTimeout = 10 * time.Second

	// maxMessageSize is the read limit per message. Output fragments
	// from long tool results can run to several megabytes; the library
	// default of 32 KiB would close the connection on them.
	maxMessageSize = 16 << 20
)

// DialWebSocket is the production DialFunc.
func DialWebSocket(ctx context.Context, url string) (Conn, error) {
	dialContext, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialContext, url, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(maxMessageSize)
	return &webSocketConn{conn: conn}, nil
}

type webSocketConn struct {
	conn *websocket.Conn
}

// Read returns the next message. Text and binary frames are treated
// alike; the service only sends JSON text.
func (c *webSocketConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c *webSocketConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *webSocketConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
