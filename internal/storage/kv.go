package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Get returns the value stored under key. The boolean is false when the key
// has never been written.
func (d *Database) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()

	if err := d.checkClosed(); err != nil {
		return "", false, err
	}

	var value string
	err := d.db.QueryRowContext(ctx, "SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		d.debugLog("Get", err, time.Since(start))
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}

	return value, true, nil
}

// Set upserts value under key.
func (d *Database) Set(ctx context.Context, key, value string) error {
	start := time.Now()

	if err := d.checkClosed(); err != nil {
		return err
	}

	query := `
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`

	if _, err := d.db.ExecContext(ctx, query, key, value, time.Now()); err != nil {
		d.debugLog("Set", err, time.Since(start))
		return fmt.Errorf("set %q: %w", key, err)
	}

	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (d *Database) Delete(ctx context.Context, key string) error {
	start := time.Now()

	if err := d.checkClosed(); err != nil {
		return err
	}

	if _, err := d.db.ExecContext(ctx, "DELETE FROM kv_store WHERE key = ?", key); err != nil {
		d.debugLog("Delete", err, time.Since(start))
		return fmt.Errorf("delete %q: %w", key, err)
	}

	return nil
}
