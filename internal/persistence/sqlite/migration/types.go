package migration

import "time"

// Migration is one versioned schema change.
type Migration struct {
	Version     string
	Description string
	SQL         string
	FilePath    string
	Checksum    string
}

// AppliedMigration is a row of the schema_migrations table.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Status summarizes the schema state of a database.
type Status struct {
	CurrentVersion string
	Applied        []AppliedMigration
	Pending        []Migration
}
