package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json handler honours level", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New("warn", "json", &buf)
		if err != nil {
			t.Fatalf("New returned error: %v", err)
		}
		logger.Info("ignored")
		logger.Warn("kept", slog.String("user_id", "u-1"))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 1 {
			t.Fatalf("expected a single record, got %d", len(lines))
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
			t.Fatalf("record is not JSON: %v", err)
		}
		if record["msg"] != "kept" || record["user_id"] != "u-1" {
			t.Fatalf("unexpected record %v", record)
		}
	})

	t.Run("text handler", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New("debug", "text", &buf)
		if err != nil {
			t.Fatalf("New returned error: %v", err)
		}
		logger.Debug("hello")
		if !strings.Contains(buf.String(), "msg=hello") {
			t.Fatalf("expected text output, got %q", buf.String())
		}
	})

	t.Run("rejects unknown values", func(t *testing.T) {
		if _, err := New("loud", "json", &bytes.Buffer{}); err == nil {
			t.Fatalf("expected error for unknown level")
		}
		if _, err := New("info", "xml", &bytes.Buffer{}); err == nil {
			t.Fatalf("expected error for unknown format")
		}
	})
}

func TestContextWithLogger(t *testing.T) {
	t.Parallel()

	if FromContext(context.Background()) != nil {
		t.Fatalf("expected no logger on a bare context")
	}
	logger := Discard()
	ctx := ContextWithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatalf("expected the stored logger to be returned")
	}
	if got := ContextWithLogger(ctx, nil); got != ctx {
		t.Fatalf("expected nil logger to leave the context untouched")
	}
}
