package state

import (
	"database/sql"
)

const currentSchemaVersion = 2

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS resume_state (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS loaded_tracks (
			extension_id TEXT NOT NULL,
			track_id TEXT NOT NULL,
			data BLOB NOT NULL,
			expires_at INTEGER NOT NULL DEFAULT 0,
			cached_at INTEGER NOT NULL,
			PRIMARY KEY (extension_id, track_id)
		);

		CREATE INDEX IF NOT EXISTS idx_loaded_tracks_cached_at ON loaded_tracks(cached_at);
	`)
	if err != nil {
		return err
	}

	// Set initial version if not exists
	_, err = db.Exec(`
		INSERT OR IGNORE INTO schema_version (version) VALUES (?)
	`, currentSchemaVersion)
	if err != nil {
		return err
	}

	// Migration: add updated_at column if missing
	_, _ = db.Exec(`ALTER TABLE resume_state ADD COLUMN updated_at INTEGER NOT NULL DEFAULT 0`)

	return nil
}
