package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Executor applies migrations and maintains the schema_migrations table.
type Executor struct {
	db  *sql.DB
	now func() time.Time
}

// NewExecutor returns an Executor bound to db.
func NewExecutor(db *sql.DB) *Executor {
	return &Executor{db: db, now: time.Now}
}

// InitializeVersionTable creates schema_migrations when missing.
func (e *Executor) InitializeVersionTable(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum TEXT NOT NULL,
			execution_time_ms INTEGER NOT NULL DEFAULT 0
		)`
	if _, err := e.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

// Execute runs every statement of m and records it in one transaction.
func (e *Executor) Execute(ctx context.Context, m Migration) (err error) {
	started := e.now()
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return newMigrationError(m, "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range splitStatements(m.SQL) {
		if _, execErr := tx.ExecContext(ctx, stmt); execErr != nil {
			return newMigrationError(m, fmt.Sprintf("execute statement %d", i+1),
				fmt.Errorf("%w: %v", ErrMigrationFailed, execErr))
		}
	}

	elapsed := e.now().Sub(started)
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`,
		m.Version, e.now().UTC().Format(time.RFC3339), m.Checksum, elapsed.Milliseconds(),
	); err != nil {
		return newMigrationError(m, "record migration", err)
	}

	if err = tx.Commit(); err != nil {
		return newMigrationError(m, "commit transaction", err)
	}
	return nil
}

// Applied returns the recorded migrations ordered by version.
func (e *Executor) Applied(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT version, applied_at, checksum, execution_time_ms FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			row       AppliedMigration
			appliedAt string
			elapsedMs int64
		)
		if err := rows.Scan(&row.Version, &appliedAt, &row.Checksum, &elapsedMs); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		if row.AppliedAt, err = time.Parse(time.RFC3339, appliedAt); err != nil {
			return nil, fmt.Errorf("parse applied_at for %s: %w", row.Version, err)
		}
		row.ExecutionTime = time.Duration(elapsedMs) * time.Millisecond
		applied = append(applied, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schema_migrations: %w", err)
	}

	sortApplied(applied)
	return applied, nil
}
