// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reefapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/reef/lib/netutil"
	"github.com/bureau-foundation/reef/lib/schema/reef"
	"github.com/bureau-foundation/reef/lib/version"
)

// DefaultBaseURL is the HTTP endpoint of a local reef-core.
const DefaultBaseURL = "http://localhost:7777"

// DefaultTimeout bounds every call.
const DefaultTimeout = 5 * time.Second

// DefaultOutputLines is the transcript window requested when a session
// is opened.
const DefaultOutputLines = 1000

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the service root. Defaults to DefaultBaseURL.
	BaseURL string

	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client

	// Timeout bounds each call. Defaults to DefaultTimeout.
	Timeout time.Duration

	// Logger is used for structured logging. If nil, slog.Default() is
	// used.
	Logger *slog.Logger

	// UserAgent is sent with every request. Defaults to
	// version.UserAgent("reef").
	UserAgent string
}

// Client talks to reef-core over HTTP. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	userAgent  string
}

// NewClient validates config and returns a Client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("reefapi: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("reefapi: BaseURL %q must be http or https", config.BaseURL)
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent("reef")
	}
	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		timeout:    timeout,
		logger:     logger,
		userAgent:  userAgent,
	}, nil
}

// BaseURL returns the service root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// Status fetches service status, including uptime.
func (c *Client) Status(ctx context.Context) (reef.StatusResponse, error) {
	var response reef.StatusResponse
	err := c.doRequest(ctx, "status", http.MethodGet, "/status", nil, nil, &response)
	return response, err
}

// Sessions fetches the full session list.
func (c *Client) Sessions(ctx context.Context) ([]reef.Session, error) {
	var response reef.SessionListResponse
	if err := c.doRequest(ctx, "sessions", http.MethodGet, "/sessions", nil, nil, &response); err != nil {
		return nil, err
	}
	return response.Sessions, nil
}

// Output fetches a session's accumulated transcript. lines asks the
// service for at most that many trailing lines; the service may return
// more or fewer. Zero omits the hint.
func (c *Client) Output(ctx context.Context, sessionID string, lines int) (reef.OutputResponse, error) {
	var query url.Values
	if lines > 0 {
		query = url.Values{"lines": {strconv.Itoa(lines)}}
	}
	var response reef.OutputResponse
	err := c.doRequest(ctx, "output", http.MethodGet, sessionPath(sessionID, "/output"), query, nil, &response)
	if err == nil && response.ID == "" {
		response.ID = sessionID
	}
	return response, err
}

// Spawn asks the service to start a session and returns it.
func (c *Client) Spawn(ctx context.Context, request reef.SpawnRequest) (reef.Session, error) {
	if strings.TrimSpace(request.Task) == "" {
		return reef.Session{}, fmt.Errorf("reefapi: spawn: task is required")
	}
	var response reef.SpawnResponse
	if err := c.doRequest(ctx, "spawn", http.MethodPost, "/sessions", nil, request, &response); err != nil {
		return reef.Session{}, err
	}
	if response.Session.ID == "" {
		return reef.Session{}, &RequestError{Op: "spawn", Kind: KindDecode,
			Err: fmt.Errorf("response has no session id")}
	}
	return response.Session, nil
}

// Send delivers a message to a session's agent.
func (c *Client) Send(ctx context.Context, sessionID, message string) error {
	return c.doRequest(ctx, "send", http.MethodPost, sessionPath(sessionID, "/send"), nil,
		reef.SendRequest{Message: message}, nil)
}

// Kill stops a session.
func (c *Client) Kill(ctx context.Context, sessionID string) error {
	return c.doRequest(ctx, "kill", http.MethodDelete, sessionPath(sessionID, ""), nil, nil, nil)
}

// CloseIdleConnections drops pooled connections, forcing fresh ones
// after the service restarts.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

func sessionPath(sessionID, suffix string) string {
	return "/sessions/" + url.PathEscape(sessionID) + suffix
}

// doRequest performs one JSON call under the client timeout. A nil
// result discards the response body.
func (c *Client) doRequest(ctx context.Context, op, method, path string, query url.Values, requestBody, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	requestID := uuid.NewString()
	fail := func(kind ErrorKind, err error) error {
		c.logger.Warn("reef request failed",
			"op", op,
			"method", method,
			"path", path,
			"kind", kind,
			"request_id", requestID,
			"error", err,
		)
		return &RequestError{Op: op, Kind: kind, RequestID: requestID, Err: err}
	}

	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("reefapi: %s: encoding request body: %w", op, err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return fmt.Errorf("reefapi: %s: creating request: %w", op, err)
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("X-Request-Id", requestID)
	request.Header.Set("User-Agent", c.userAgent)
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fail(transportKind(err), err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		message := netutil.ErrorBody(response.Body)
		c.logger.Warn("reef request rejected",
			"op", op,
			"status", response.StatusCode,
			"request_id", requestID,
			"message", message,
		)
		return &RequestError{
			Op:         op,
			Kind:       KindStatus,
			StatusCode: response.StatusCode,
			Message:    message,
			RequestID:  requestID,
		}
	}

	if result == nil {
		io.Copy(io.Discard, io.LimitReader(response.Body, netutil.MaxResponseSize))
		return nil
	}
	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return fail(transportKind(err), err)
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fail(KindDecode, err)
	}
	return nil
}
