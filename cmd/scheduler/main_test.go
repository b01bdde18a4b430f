package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/backlog-scheduler/internal/config"
	"github.com/example/backlog-scheduler/internal/logging"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		HTTPPort:        8080,
		SQLitePath:      filepath.Join(dir, "backlog.db"),
		SessionTTL:      time.Hour,
		LockDir:         filepath.Join(dir, "locks"),
		PlanRate:        60,
		PlanBurst:       2,
		MaxWeeks:        4,
		LogLevel:        "info",
		LogFormat:       "json",
		DefaultTimezone: "UTC",
	}
}

func TestRun_ServesUntilCanceled(t *testing.T) {
	cfg := testConfig(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, listener, logging.Discard()) }()

	base := "http://" + listener.Addr().String()
	body, _ := json.Marshal(map[string]string{
		"email":        "runner@example.com",
		"display_name": "Runner",
		"password":     "correct horse battery",
	})

	var resp *http.Response
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err = http.Post(base+"/users", "application/json", bytes.NewReader(body))
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected the request logger to be installed")
	}

	resp, err = http.Get(base + "/games")
	if err != nil {
		t.Fatalf("list games: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected protected routes to require a session, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatalf("run did not return after cancellation")
	}
}

func TestRun_RejectsUnusableDatabasePath(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("not a directory"), 0o600); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	cfg.SQLitePath = filepath.Join(blocker, "backlog.db")
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	if err := run(context.Background(), cfg, listener, logging.Discard()); err == nil {
		t.Fatalf("expected an error when the database directory cannot be created")
	}
}
