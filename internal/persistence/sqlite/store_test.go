package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/backlog-scheduler/internal/persistence"
	"github.com/example/backlog-scheduler/internal/persistence/sqlite/migration"
)

func openTestStorage(t *testing.T) *Storage {
	t.Helper()
	storage, err := OpenWithConfig(migration.TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "store.db")))
	if err != nil {
		t.Fatalf("OpenWithConfig returned error: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func TestStorage_Migrate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	storage := openTestStorage(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	status, err := storage.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus returned error: %v", err)
	}
	if len(status.Pending) == 0 || len(status.Applied) != 0 {
		t.Fatalf("expected embedded migrations to be pending, got %+v", status)
	}

	applied, err := storage.Migrate(ctx, logger)
	if err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}
	if len(applied) != len(status.Pending) {
		t.Fatalf("expected %d applied migrations, got %d", len(status.Pending), len(applied))
	}
	if again, err := storage.Migrate(ctx, logger); err != nil || len(again) != 0 {
		t.Fatalf("expected a second Migrate to be a no-op, got %d, %v", len(again), err)
	}

	for _, table := range []string{"users", "games", "preferences", "plan_runs", "play_sessions", "auth_sessions"} {
		var count int
		if err := storage.Pool().DB().QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count); err != nil {
			t.Fatalf("query sqlite_master: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected table %s to exist", table)
		}
	}
	if err := storage.Pool().Ping(ctx); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}
}

func TestErrorMapper_MapError(t *testing.T) {
	t.Parallel()
	mapper := NewErrorMapper()

	cases := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, persistence.ErrNotFound},
		{"unique message", errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), persistence.ErrDuplicate},
		{"foreign key message", errors.New("FOREIGN KEY constraint failed"), persistence.ErrForeignKeyViolation},
		{"check message", errors.New("CHECK constraint failed: played_minutes >= 0"), persistence.ErrConstraintViolation},
		{"busy message", errors.New("database is locked (5) (SQLITE_BUSY)"), errBusy},
		{"already mapped", fmt.Errorf("reorder: %w", persistence.ErrNotFound), persistence.ErrNotFound},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := mapper.MapError(tc.err); !errors.Is(got, tc.want) {
				t.Fatalf("MapError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}

	if mapper.MapError(nil) != nil {
		t.Fatalf("expected nil to stay nil")
	}
	plain := errors.New("disk I/O error")
	if mapper.MapError(plain) != plain {
		t.Fatalf("expected unknown errors to pass through")
	}
}

func TestStorage_DriverErrorsAreMapped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	storage := openTestStorage(t)
	if _, err := storage.Migrate(ctx, nil); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	_, err := storage.Pool().DB().ExecContext(ctx, `INSERT INTO preferences (user_id, weekly_minutes, session_minutes, timezone, day_start, day_end, updated_at) VALUES ('ghost', 60, 60, 'UTC', 0, 0, '2024-01-01T00:00:00Z')`)
	if got := NewErrorMapper().MapError(err); !errors.Is(got, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected a driver foreign key error to map, got %v", got)
	}
}

func TestRetryHelper_WithRetry(t *testing.T) {
	t.Parallel()
	helper := NewRetryHelper(RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond, BackoffFactor: 2})

	t.Run("retries busy errors", func(t *testing.T) {
		t.Parallel()
		attempts := 0
		err := helper.WithRetry(context.Background(), func() error {
			attempts++
			if attempts < 3 {
				return errors.New("database is locked")
			}
			return nil
		})
		if err != nil || attempts != 3 {
			t.Fatalf("expected success on the third attempt, got %d attempts, %v", attempts, err)
		}
	})

	t.Run("gives up after the budget", func(t *testing.T) {
		t.Parallel()
		attempts := 0
		err := helper.WithRetry(context.Background(), func() error {
			attempts++
			return errBusy
		})
		if !errors.Is(err, errBusy) || attempts != 4 {
			t.Fatalf("expected 4 attempts ending busy, got %d, %v", attempts, err)
		}
	})

	t.Run("does not retry other failures", func(t *testing.T) {
		t.Parallel()
		attempts := 0
		err := helper.WithRetry(context.Background(), func() error {
			attempts++
			return persistence.ErrConflict
		})
		if !errors.Is(err, persistence.ErrConflict) || attempts != 1 {
			t.Fatalf("expected a single attempt, got %d, %v", attempts, err)
		}
	})
}
