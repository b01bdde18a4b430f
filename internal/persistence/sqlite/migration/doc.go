// Package migration applies versioned SQL schema changes to a SQLite database.
//
// Migration files are named {version}_{description}.sql and are read from an
// fs.FS, usually an embedded directory. Applied versions are tracked in the
// schema_migrations table together with the sha256 checksum of the file, so an
// edited migration that was already applied is detected instead of silently
// diverging.
package migration
