// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/bureau-foundation/reef/cmd/reef/cli"
	"github.com/bureau-foundation/reef/lib/schema/reef"
	"github.com/bureau-foundation/reef/lib/secret"
	"github.com/bureau-foundation/reef/lib/snapcache"
)

// fakeService is an in-memory reef-core HTTP API.
type fakeService struct {
	mu       sync.Mutex
	sessions []reef.Session
	outputs  map[string]string
	spawned  []reef.SpawnRequest
	sent     map[string][]string
	killed   []string
}

func newFakeService() *fakeService {
	return &fakeService{
		sessions: []reef.Session{
			{ID: "a1", Task: "fix the config loader", Status: reef.StatusRunning, Backend: "tmux", Provider: "anthropic", Model: "opus"},
			{ID: "b2", Task: "write release notes", Status: reef.StatusCompleted, Backend: "sdk"},
		},
		outputs: map[string]string{
			"a1": "> fix it\n\x1b[1mWorking\x1b[0m on it\n",
		},
		sent: make(map[string][]string),
	}
}

func (f *fakeService) find(id string) bool {
	for _, session := range f.sessions {
		if session.ID == id {
			return true
		}
	}
	return false
}

// requests returns copies of what the service received.
func (f *fakeService) requests() (spawned []reef.SpawnRequest, sent map[string][]string, killed []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sent = make(map[string][]string, len(f.sent))
	for id, messages := range f.sent {
		sent[id] = append([]string(nil), messages...)
	}
	return append([]reef.SpawnRequest(nil), f.spawned...), sent, append([]string(nil), f.killed...)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(value)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, reef.ErrorResponse{Error: "session not found"})
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, reef.StatusResponse{Uptime: 3723.4, Version: "1.4.0"})
	})
	mux.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, reef.SessionListResponse{Sessions: f.sessions})
	})
	mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, r *http.Request) {
		var request reef.SpawnRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			writeJSON(w, http.StatusBadRequest, reef.ErrorResponse{Error: err.Error()})
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		f.spawned = append(f.spawned, request)
		session := reef.Session{ID: "c3", Task: request.Task, Status: reef.StatusRunning}
		f.sessions = append(f.sessions, session)
		writeJSON(w, http.StatusCreated, reef.SpawnResponse{Session: session})
	})
	mux.HandleFunc("GET /sessions/{id}/output", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		if !f.find(id) {
			notFound(w)
			return
		}
		writeJSON(w, http.StatusOK, reef.OutputResponse{ID: id, Output: f.outputs[id]})
	})
	mux.HandleFunc("POST /sessions/{id}/send", func(w http.ResponseWriter, r *http.Request) {
		var request reef.SendRequest
		json.NewDecoder(r.Body).Decode(&request)
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		if !f.find(id) {
			notFound(w)
			return
		}
		f.sent[id] = append(f.sent[id], request.Message)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	mux.HandleFunc("DELETE /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		if !f.find(id) {
			notFound(w)
			return
		}
		f.killed = append(f.killed, id)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	return mux
}

// isolate keeps the developer's environment out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("REEF_CONFIG", "")
	t.Setenv("REEF_URL", "")
	t.Setenv("REEF_WS_URL", "")
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
}

func startService(t *testing.T) (*fakeService, string) {
	t.Helper()
	isolate(t)
	service := newFakeService()
	server := httptest.NewServer(service.handler())
	t.Cleanup(server.Close)
	return service, server.URL
}

func run(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	root := Root(&stdout)
	root.Output = &stdout
	root.Logger = slog.New(slog.DiscardHandler)
	err := root.Execute(ctx, args)
	return stdout.String(), err
}

func TestStatus(t *testing.T) {
	_, url := startService(t)

	out, err := run(t, context.Background(), "status", "--url", url)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"reef-core at " + url, "1h2m3s", "1.4.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestSessions_Table(t *testing.T) {
	_, url := startService(t)

	out, err := run(t, context.Background(), "sessions", "--url", url)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two rows, got:\n%s", out)
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[0], "UPDATED") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "active") || !strings.Contains(lines[1], "anthropic/opus") {
		t.Errorf("first row = %q", lines[1])
	}
	if !strings.Contains(lines[2], "completed") || !strings.Contains(lines[2], "-") {
		t.Errorf("second row = %q", lines[2])
	}
}

func TestSessions_StatusFilterJSON(t *testing.T) {
	_, url := startService(t)

	out, err := run(t, context.Background(), "sessions", "--url", url, "--status", "completed", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var sessions []reef.Session
	if err := json.Unmarshal([]byte(out), &sessions); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if len(sessions) != 1 || sessions[0].ID != "b2" {
		t.Errorf("sessions = %+v", sessions)
	}

	out, err = run(t, context.Background(), "sessions", "--url", url, "--status", "running", "--filter", "zzzz")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "No sessions." {
		t.Errorf("filtered output = %q", out)
	}
}

func TestSessions_RejectsUnknownStatus(t *testing.T) {
	_, url := startService(t)

	_, err := run(t, context.Background(), "sessions", "--url", url, "--status", "paused")
	if code := cli.ExitCodeFor(err); code != cli.ExitValidation {
		t.Errorf("exit code = %d (%v), want %d", code, err, cli.ExitValidation)
	}
}

func TestSpawn(t *testing.T) {
	service, url := startService(t)

	out, err := run(t, context.Background(), "spawn", "--url", url, "--model", "opus", "write", "the", "docs")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "spawned c3 (active)" {
		t.Errorf("output = %q", out)
	}
	spawned, _, _ := service.requests()
	if len(spawned) != 1 {
		t.Fatalf("spawned = %+v", spawned)
	}
	if got := spawned[0]; got.Task != "write the docs" || got.Model != "opus" || got.Provider != "" {
		t.Errorf("request = %+v", got)
	}
}

func TestSpawn_RequiresTask(t *testing.T) {
	service, url := startService(t)

	_, err := run(t, context.Background(), "spawn", "--url", url, "  ")
	if code := cli.ExitCodeFor(err); code != cli.ExitValidation {
		t.Errorf("exit code = %d (%v), want %d", code, err, cli.ExitValidation)
	}
	if spawned, _, _ := service.requests(); len(spawned) != 0 {
		t.Errorf("spawn reached the service: %+v", spawned)
	}
}

func TestSend(t *testing.T) {
	service, url := startService(t)

	out, err := run(t, context.Background(), "send", "--url", url, "a1", "also", "add", "tests")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "sent to a1" {
		t.Errorf("output = %q", out)
	}
	_, sent, _ := service.requests()
	if got := sent["a1"]; len(got) != 1 || got[0] != "also add tests" {
		t.Errorf("sent = %v", got)
	}

	_, err = run(t, context.Background(), "send", "--url", url, "a1")
	if code := cli.ExitCodeFor(err); code != cli.ExitValidation {
		t.Errorf("missing message: exit code = %d, want %d", code, cli.ExitValidation)
	}
}

func TestKill_NotFoundEnvelope(t *testing.T) {
	service, url := startService(t)

	out, err := run(t, context.Background(), "kill", "--url", url, "--json", "nope")
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != cli.ExitNotFound {
		t.Fatalf("error = %v, want exit code %d", err, cli.ExitNotFound)
	}
	var envelope struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if err := json.Unmarshal([]byte(out), &envelope); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if envelope.OK || envelope.Error != "session not found" || envelope.Kind != "status" {
		t.Errorf("envelope = %+v", envelope)
	}
	if _, _, killed := service.requests(); len(killed) != 0 {
		t.Errorf("killed = %v", killed)
	}
}

func TestKill(t *testing.T) {
	service, url := startService(t)

	out, err := run(t, context.Background(), "kill", "--url", url, "--json", "a1")
	if err != nil {
		t.Fatal(err)
	}
	var envelope struct {
		OK   bool   `json:"ok"`
		Data string `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &envelope); err != nil {
		t.Fatal(err)
	}
	if !envelope.OK || envelope.Data != "a1" {
		t.Errorf("envelope = %+v", envelope)
	}
	if _, _, killed := service.requests(); len(killed) != 1 || killed[0] != "a1" {
		t.Errorf("killed = %v", killed)
	}
}

func TestOutput(t *testing.T) {
	_, url := startService(t)

	out, err := run(t, context.Background(), "output", "--url", url, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if out != "> fix it\nWorking on it\n" {
		t.Errorf("stripped output = %q", out)
	}

	out, err = run(t, context.Background(), "output", "--url", url, "--raw", "a1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "\x1b[1m") {
		t.Errorf("raw output lost escapes: %q", out)
	}

	_, err = run(t, context.Background(), "output", "--url", url, "zz")
	if code := cli.ExitCodeFor(err); code != cli.ExitNotFound {
		t.Errorf("unknown session: exit code = %d, want %d", code, cli.ExitNotFound)
	}
}

func TestOutput_BlocksJSON(t *testing.T) {
	_, url := startService(t)

	out, err := run(t, context.Background(), "output", "--url", url, "--blocks", "--json", "a1")
	if err != nil {
		t.Fatal(err)
	}
	var blocks []outputBlock
	if err := json.Unmarshal([]byte(out), &blocks); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if len(blocks) == 0 || blocks[0].Kind != "user" {
		t.Errorf("blocks = %+v", blocks)
	}
}

func TestServiceUnreachable(t *testing.T) {
	isolate(t)
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := run(t, context.Background(), "sessions", "--url", url)
	if code := cli.ExitCodeFor(err); code != cli.ExitTransient {
		t.Errorf("exit code = %d (%v), want %d", code, err, cli.ExitTransient)
	}
	if err == nil || !strings.Contains(err.Error(), url) {
		t.Errorf("error should name the service URL: %v", err)
	}
}

// streamServer accepts one stream connection, waits for the
// subscription, writes messages and then holds the connection open
// until the client goes away.
func streamServer(t *testing.T, messages ...reef.ServerMessage) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		var hello reef.ClientMessage
		if err := wsjson.Read(r.Context(), conn, &hello); err != nil || hello.Type != reef.ClientSubscribeAll {
			return
		}
		for _, message := range messages {
			if err := wsjson.Write(r.Context(), conn, message); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func streamMessages() []reef.ServerMessage {
	return []reef.ServerMessage{
		{Type: reef.EventSessionNew, SessionID: "a1", Data: json.RawMessage(`{"task":"fix the loader","backend":"tmux"}`)},
		{Type: reef.EventOutput, SessionID: "a1", Data: json.RawMessage(`"not an object"`)},
		{Type: reef.EventOutput, SessionID: "b2", Data: json.RawMessage(`{"text":"elsewhere"}`)},
		{Type: reef.EventOutput, SessionID: "a1", Data: json.RawMessage(`{"text":"reading config.go\n"}`)},
		{Type: reef.EventStatus, SessionID: "a1", Data: json.RawMessage(`{"status":"error","error":"exit 1"}`)},
	}
}

func TestWatch_Text(t *testing.T) {
	isolate(t)
	url := streamServer(t, streamMessages()...)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := run(t, ctx, "watch", "--url", url, "--count", "4")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got:\n%s", out)
	}
	wants := [][]string{
		{"a1", "new", "fix the loader [tmux]"},
		{"b2", "output", "elsewhere"},
		{"a1", "output", "reading config.go"},
		{"a1", "status", "error: exit 1"},
	}
	for index, want := range wants {
		for _, part := range want {
			if !strings.Contains(lines[index], part) {
				t.Errorf("line %d = %q, missing %q", index, lines[index], part)
			}
		}
	}
	if ctx.Err() != nil {
		t.Error("watch ran until the deadline instead of stopping at --count")
	}
}

func TestWatch_SessionJSON(t *testing.T) {
	isolate(t)
	url := streamServer(t, streamMessages()...)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := run(t, ctx, "watch", "--url", url, "--session", "a1", "--json", "--count", "3")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 JSON lines, got:\n%s", out)
	}
	wantTypes := []string{reef.EventSessionNew, reef.EventOutput, reef.EventStatus}
	for index, line := range lines {
		var message reef.ServerMessage
		if err := json.Unmarshal([]byte(line), &message); err != nil {
			t.Fatalf("line %d: %v", index, err)
		}
		if message.SessionID != "a1" || message.Type != wantTypes[index] {
			t.Errorf("line %d = %+v", index, message)
		}
	}
}

func TestWatch_StopsOnCancel(t *testing.T) {
	isolate(t)
	url := streamServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := run(t, ctx, "watch", "--url", url)
		done <- err
	}()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func writeCacheConfig(t *testing.T, url string) (configPath, cachePath string) {
	t.Helper()
	isolate(t)
	dir := t.TempDir()
	cachePath = filepath.Join(dir, "snapshot")
	configPath = filepath.Join(dir, "reef.yaml")
	content := "service:\n  base_url: " + url + "\ncache:\n  path: " + cachePath + "\n  compression: lz4\n"
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return configPath, cachePath
}

func TestCache_InspectAndClear(t *testing.T) {
	configPath, cachePath := writeCacheConfig(t, "http://reef.test:7777")
	snapshot := &snapcache.Snapshot{
		SavedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		BaseURL:  "http://reef.test:7777",
		Sessions: []reef.Session{{ID: "a1", Task: "fix", Status: reef.StatusRunning}},
		Outputs:  map[string]string{"a1": "hello"},
	}
	if err := snapcache.Save(cachePath, snapshot, snapcache.Options{Compression: snapcache.CompressionLZ4}); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, context.Background(), "cache", "inspect", "--config", configPath, "--json")
	if err != nil {
		t.Fatal(err)
	}
	var summary cacheSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if summary.Path != cachePath || summary.Encrypted || summary.Sessions != 1 || summary.Outputs != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.BaseURL != "http://reef.test:7777" || !summary.SavedAt.Equal(snapshot.SavedAt) {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Compression != "lz4" && summary.Compression != "none" {
		t.Errorf("compression = %q", summary.Compression)
	}

	out, err = run(t, context.Background(), "cache", "inspect", "--config", configPath, "--diag")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"http://reef.test:7777"`) {
		t.Errorf("diagnostic output = %q", out)
	}

	out, err = run(t, context.Background(), "cache", "clear", "--config", configPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "removed "+cachePath {
		t.Errorf("clear output = %q", out)
	}
	if _, err := os.Stat(cachePath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("cache still present: %v", err)
	}

	_, err = run(t, context.Background(), "cache", "inspect", "--config", configPath)
	if code := cli.ExitCodeFor(err); code != cli.ExitNotFound {
		t.Errorf("inspect after clear: exit code = %d (%v), want %d", code, err, cli.ExitNotFound)
	}
}

func TestCache_EncryptedNeedsKey(t *testing.T) {
	configPath, cachePath := writeCacheConfig(t, "http://reef.test:7777")
	key, err := secret.NewFromBytes(bytes.Repeat([]byte{7}, snapcache.KeySize))
	if err != nil {
		t.Fatal(err)
	}
	defer key.Close()
	snapshot := &snapcache.Snapshot{BaseURL: "http://reef.test:7777"}
	if err := snapcache.Save(cachePath, snapshot, snapcache.Options{Key: key}); err != nil {
		t.Fatal(err)
	}

	_, err = run(t, context.Background(), "cache", "inspect", "--config", configPath)
	if code := cli.ExitCodeFor(err); code != cli.ExitValidation {
		t.Errorf("exit code = %d (%v), want %d", code, err, cli.ExitValidation)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, context.Background(), "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "reef ") {
		t.Errorf("version output = %q", out)
	}
}
