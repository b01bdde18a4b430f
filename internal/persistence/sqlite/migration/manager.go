package migration

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Manager brings a database up to the latest migration.
type Manager struct {
	scanner  *Scanner
	executor *Executor
	logger   *slog.Logger
}

// NewManager wires a scanner and executor. A nil logger falls back to slog.Default.
func NewManager(scanner *Scanner, executor *Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{scanner: scanner, executor: executor, logger: logger.With("component", "migration")}
}

// Run applies every pending migration in version order and returns what it applied.
func (m *Manager) Run(ctx context.Context) ([]Migration, error) {
	started := time.Now()
	status, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	m.logger.InfoContext(ctx, "checking database schema",
		"current_version", status.CurrentVersion,
		"pending", len(status.Pending),
	)

	for i, migration := range status.Pending {
		m.logger.InfoContext(ctx, "applying migration",
			"version", migration.Version,
			"description", migration.Description,
			"position", i+1,
			"total", len(status.Pending),
		)
		if err := m.executor.Execute(ctx, migration); err != nil {
			m.logger.ErrorContext(ctx, "migration failed", "version", migration.Version, "error", err)
			return status.Pending[:i], err
		}
	}

	if len(status.Pending) > 0 {
		m.logger.InfoContext(ctx, "database migrations completed",
			"applied", len(status.Pending),
			"duration", time.Since(started),
		)
	}
	return status.Pending, nil
}

// Status compares the migration files with the schema_migrations table.
//
// It fails when the file sequence has gaps, when an applied version has no file,
// or when an applied file's checksum changed.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, err
	}
	available, err := m.scanner.Scan()
	if err != nil {
		return Status{}, err
	}
	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return Status{}, err
	}
	if err := validateSequence(available); err != nil {
		return Status{}, err
	}

	byVersion := make(map[int]Migration, len(available))
	for _, migration := range available {
		byVersion[versionNumber(migration.Version)] = migration
	}

	status := Status{Applied: applied}
	done := make(map[int]bool, len(applied))
	for _, row := range applied {
		version := versionNumber(row.Version)
		file, ok := byVersion[version]
		if !ok {
			return Status{}, fmt.Errorf("%w: applied migration %s has no file", ErrVersionConflict, row.Version)
		}
		if row.Checksum != file.Checksum {
			return Status{}, newMigrationError(file, "verify checksum",
				fmt.Errorf("%w: recorded %s, file %s", ErrChecksumMismatch, row.Checksum, file.Checksum))
		}
		done[version] = true
		status.CurrentVersion = row.Version
	}
	for _, migration := range available {
		if !done[versionNumber(migration.Version)] {
			status.Pending = append(status.Pending, migration)
		}
	}
	return status, nil
}

func validateSequence(available []Migration) error {
	for i := 1; i < len(available); i++ {
		prev := versionNumber(available[i-1].Version)
		if next := versionNumber(available[i].Version); next != prev+1 {
			return fmt.Errorf("%w: missing migration version %03d", ErrVersionConflict, prev+1)
		}
	}
	return nil
}

func sortApplied(applied []AppliedMigration) {
	sort.Slice(applied, func(i, j int) bool {
		return versionNumber(applied[i].Version) < versionNumber(applied[j].Version)
	})
}
