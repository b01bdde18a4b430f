package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/backlog-scheduler/internal/logging"
	"github.com/example/backlog-scheduler/internal/persistence"
	"github.com/example/backlog-scheduler/internal/persistence/sqlite"
	"github.com/example/backlog-scheduler/internal/persistence/sqlite/migration"
)

// SQLiteHarness provides repository access backed by a temporary SQLite storage
// instance for integration-style persistence tests.
type SQLiteHarness struct {
	Storage      *sqlite.Storage
	Users        persistence.UserRepository
	Games        persistence.GameRepository
	Preferences  persistence.PreferenceRepository
	PlaySessions persistence.PlaySessionRepository
	AuthSessions persistence.AuthSessionRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "backlog.db")
	storage, err := sqlite.OpenWithConfig(migration.TempFileTestSQLiteConfig(path))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if _, err := storage.Migrate(context.Background(), logging.Discard()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Storage:      storage,
		Users:        storage,
		Games:        storage,
		Preferences:  storage,
		PlaySessions: storage,
		AuthSessions: storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedUser stores a user and returns it.
func (h *SQLiteHarness) SeedUser(tb testing.TB, opts ...UserOption) UserFixture {
	tb.Helper()
	user := NewUserFixture(opts...)
	if err := h.Users.CreateUser(context.Background(), user.Persistence()); err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return user
}

// SeedGame stores a game and returns it.
func (h *SQLiteHarness) SeedGame(tb testing.TB, userID string, opts ...GameOption) GameFixture {
	tb.Helper()
	game := NewGameFixture(userID, opts...)
	if err := h.Games.CreateGame(context.Background(), game.Persistence()); err != nil {
		tb.Fatalf("seed game: %v", err)
	}
	return game
}
