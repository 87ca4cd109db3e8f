package storage

import (
	"database/sql"
	"fmt"
)

// schemaVersion is bumped whenever schema changes.
const schemaVersion = 1

// InitDB initializes the database schema.
// PRE: db is a valid database connection
// POST: All tables exist, WAL mode enabled, user_version == schemaVersion
func InitDB(db *sql.DB) error {
	// WAL lets the page handlers read while a visitor's session is written
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS local_storage (
		visitor_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (visitor_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_local_storage_updated_at ON local_storage(updated_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than this binary (%d)", version, schemaVersion)
	}
	if version < schemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}
	return nil
}
