package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"
)

// DownloadRecord is one finished download on disk.
type DownloadRecord struct {
	SongID    string
	Title     string
	StreamURL string
	LocalPath string
	Size      int64
	CreatedAt time.Time
}

// GetDownload returns the local path of a previous download of songID, or ""
// if there is none. Records whose file has gone missing are dropped.
func (d *Database) GetDownload(ctx context.Context, songID string) (string, error) {
	start := time.Now()

	if err := d.checkClosed(); err != nil {
		return "", err
	}

	var localPath string
	err := d.db.QueryRowContext(ctx, "SELECT local_path FROM downloads WHERE song_id = ?", songID).Scan(&localPath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		d.debugLog("GetDownload", err, time.Since(start))
		return "", fmt.Errorf("get download: %w", err)
	}

	if _, err := os.Stat(localPath); os.IsNotExist(err) {
		_, _ = d.db.ExecContext(ctx, "DELETE FROM downloads WHERE song_id = ?", songID)
		return "", nil
	}

	_, _ = d.db.ExecContext(ctx, "UPDATE downloads SET accessed_at = ? WHERE song_id = ?", time.Now(), songID)

	return localPath, nil
}

// SaveDownload records a finished download, replacing any earlier one.
func (d *Database) SaveDownload(ctx context.Context, rec DownloadRecord) error {
	start := time.Now()

	if err := d.checkClosed(); err != nil {
		return err
	}

	query := `
		INSERT OR REPLACE INTO downloads (
			song_id, title, stream_url, local_path, size, accessed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	if _, err := d.db.ExecContext(ctx, query,
		rec.SongID, rec.Title, rec.StreamURL, rec.LocalPath, rec.Size, now, now,
	); err != nil {
		d.debugLog("SaveDownload", err, time.Since(start))
		return fmt.Errorf("save download: %w", err)
	}

	return nil
}

// ListDownloads returns every recorded download, newest first.
func (d *Database) ListDownloads(ctx context.Context) ([]DownloadRecord, error) {
	start := time.Now()

	if err := d.checkClosed(); err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT song_id, title, stream_url, local_path, size, created_at
		FROM downloads
		ORDER BY created_at DESC
	`)
	if err != nil {
		d.debugLog("ListDownloads", err, time.Since(start))
		return nil, fmt.Errorf("query downloads: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			d.logger.Debug().Err(closeErr).Msg("failed to close rows")
		}
	}()

	var records []DownloadRecord
	for rows.Next() {
		var rec DownloadRecord
		if err := rows.Scan(&rec.SongID, &rec.Title, &rec.StreamURL, &rec.LocalPath, &rec.Size, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return records, nil
}
