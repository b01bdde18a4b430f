package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/backlog-scheduler/internal/persistence"
	"github.com/example/backlog-scheduler/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Storage bundles the SQLite repositories over one connection pool.
type Storage struct {
	pool *ConnectionPool

	*UserRepository
	*GameRepository
	*PreferenceRepository
	*PlaySessionRepository
	*AuthSessionRepository
}

var (
	_ persistence.UserRepository        = (*Storage)(nil)
	_ persistence.GameRepository        = (*Storage)(nil)
	_ persistence.PreferenceRepository  = (*Storage)(nil)
	_ persistence.PlaySessionRepository = (*Storage)(nil)
	_ persistence.AuthSessionRepository = (*Storage)(nil)
)

// Open opens the database file at path with production settings.
func Open(path string) (*Storage, error) {
	return OpenWithConfig(migration.DefaultSQLiteConfig(path))
}

// OpenWithConfig opens a database with explicit connection settings.
func OpenWithConfig(config migration.SQLiteConfig) (*Storage, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	return NewStorage(pool), nil
}

// NewStorage wires every repository to pool.
func NewStorage(pool *ConnectionPool) *Storage {
	return &Storage{
		pool:                  pool,
		UserRepository:        NewUserRepository(pool),
		GameRepository:        NewGameRepository(pool),
		PreferenceRepository:  NewPreferenceRepository(pool),
		PlaySessionRepository: NewPlaySessionRepository(pool),
		AuthSessionRepository: NewAuthSessionRepository(pool),
	}
}

// Pool exposes the underlying connection pool.
func (s *Storage) Pool() *ConnectionPool {
	return s.pool
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context, logger *slog.Logger) ([]migration.Migration, error) {
	manager := migration.NewManager(
		migration.NewScanner(migrationsFS, "migrations"),
		migration.NewExecutor(s.pool.DB()),
		logger,
	)
	applied, err := manager.Run(ctx)
	if err != nil {
		return applied, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return applied, nil
}

// MigrationStatus reports applied and pending embedded migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (migration.Status, error) {
	manager := migration.NewManager(
		migration.NewScanner(migrationsFS, "migrations"),
		migration.NewExecutor(s.pool.DB()),
		nil,
	)
	return manager.Status(ctx)
}
