package migration

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteConfig holds SQLite connection settings.
type SQLiteConfig struct {
	// Path is the database file; ":memory:" opens a private in-memory database.
	Path              string
	BusyTimeout       time.Duration
	EnableForeignKeys bool
	JournalMode       string
	Synchronous       string
	MaxOpenConns      int
	MaxIdleConns      int
	ConnMaxLifetime   time.Duration
}

var (
	validJournalModes = map[string]bool{"DELETE": true, "TRUNCATE": true, "PERSIST": true, "MEMORY": true, "WAL": true, "OFF": true}
	validSyncModes    = map[string]bool{"OFF": true, "NORMAL": true, "FULL": true, "EXTRA": true}
)

// Validate reports configuration values SQLite would reject.
func (c SQLiteConfig) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("sqlite path cannot be empty")
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("busy timeout cannot be negative")
	}
	if c.JournalMode != "" && !validJournalModes[strings.ToUpper(c.JournalMode)] {
		return fmt.Errorf("invalid journal mode: %s", c.JournalMode)
	}
	if c.Synchronous != "" && !validSyncModes[strings.ToUpper(c.Synchronous)] {
		return fmt.Errorf("invalid synchronous mode: %s", c.Synchronous)
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 || c.ConnMaxLifetime < 0 {
		return fmt.Errorf("connection pool limits cannot be negative")
	}
	return nil
}

// DSN renders the modernc.org/sqlite connection string. Pragmas are passed in the
// DSN so that every pooled connection gets them, and write transactions begin
// IMMEDIATE so read-then-write sequences cannot deadlock on lock upgrade.
func (c SQLiteConfig) DSN() string {
	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	if c.EnableForeignKeys {
		params.Add("_pragma", "foreign_keys(1)")
	}
	if c.JournalMode != "" {
		params.Add("_pragma", fmt.Sprintf("journal_mode(%s)", strings.ToUpper(c.JournalMode)))
	}
	if c.Synchronous != "" {
		params.Add("_pragma", fmt.Sprintf("synchronous(%s)", strings.ToUpper(c.Synchronous)))
	}
	params.Set("_txlock", "immediate")
	return "file:" + c.Path + "?" + params.Encode()
}

// Open creates the database directory if needed, opens the pool and pings it.
func Open(c SQLiteConfig) (*sql.DB, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite configuration: %w", err)
	}
	if c.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", c.DSN())
	if err != nil {
		return nil, fmt.Errorf("open SQLite database: %w", err)
	}
	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(c.ConnMaxLifetime)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping SQLite database: %w", err)
	}
	return db, nil
}

// DefaultSQLiteConfig returns production settings for a database file.
func DefaultSQLiteConfig(path string) SQLiteConfig {
	return SQLiteConfig{
		Path:              path,
		BusyTimeout:       30 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "WAL",
		Synchronous:       "NORMAL",
		MaxOpenConns:      8,
		MaxIdleConns:      4,
		ConnMaxLifetime:   5 * time.Minute,
	}
}

// TempFileTestSQLiteConfig returns fast settings for a throwaway database file.
func TempFileTestSQLiteConfig(path string) SQLiteConfig {
	return SQLiteConfig{
		Path:              path,
		BusyTimeout:       5 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "MEMORY",
		Synchronous:       "OFF",
		MaxOpenConns:      1,
		MaxIdleConns:      1,
		ConnMaxLifetime:   time.Minute,
	}
}
