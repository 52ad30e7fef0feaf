package storage

import (
	"fmt"
)

func (d *Database) runMigrations() error {
	migrations := []string{
		createTables,
		createIndexes,
	}

	for i, migration := range migrations {
		if _, err := d.db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

const createTables = `
CREATE TABLE IF NOT EXISTS kv_store (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS downloads (
	song_id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	stream_url TEXT NOT NULL,
	local_path TEXT NOT NULL,
	size INTEGER DEFAULT 0,
	accessed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

const createIndexes = `
CREATE INDEX IF NOT EXISTS idx_kv_store_updated_at ON kv_store(updated_at);
CREATE INDEX IF NOT EXISTS idx_downloads_accessed_at ON downloads(accessed_at);
`
