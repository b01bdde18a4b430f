package migration

import (
	"errors"
	"fmt"
)

var (
	// ErrMigrationFailed indicates that a migration execution failed.
	ErrMigrationFailed = errors.New("migration execution failed")
	// ErrInvalidMigrationFile indicates that a migration file is malformed.
	ErrInvalidMigrationFile = errors.New("invalid migration file format")
	// ErrDuplicateVersion indicates that multiple migrations share a version.
	ErrDuplicateVersion = errors.New("duplicate migration version")
	// ErrVersionConflict indicates a gap in the sequence or an applied version with no file.
	ErrVersionConflict = errors.New("migration version conflict")
	// ErrChecksumMismatch indicates an applied migration file was edited afterwards.
	ErrChecksumMismatch = errors.New("migration checksum mismatch")
)

// MigrationError wraps migration failures with the file and step involved.
type MigrationError struct {
	Version   string
	FilePath  string
	Operation string
	Err       error
}

// Error implements the error interface.
func (e *MigrationError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("migration %s (%s): %s: %v", e.Version, e.FilePath, e.Operation, e.Err)
	}
	return fmt.Sprintf("migration error (%s): %s: %v", e.FilePath, e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *MigrationError) Unwrap() error {
	return e.Err
}

func newMigrationError(m Migration, operation string, err error) *MigrationError {
	return &MigrationError{Version: m.Version, FilePath: m.FilePath, Operation: operation, Err: err}
}
