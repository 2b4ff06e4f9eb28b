package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SetThumbnailCache records a generated thumbnail for (sessionID, filename).
// It returns ErrSessionNotFound, writing nothing, when the session row is
// gone.
func (d *Database) SetThumbnailCache(ctx context.Context, entry ThumbnailCacheEntry) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_thumbnail_cache", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var preview sql.NullString
	if entry.PreviewPath != "" {
		preview = sql.NullString{String: entry.PreviewPath, Valid: true}
	}

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO thumbnail_cache (session_id, filename, cache_path, preview_path, original_modified, created_at)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM sessions WHERE id = ?)
		ON CONFLICT(session_id, filename) DO UPDATE SET
			cache_path = excluded.cache_path,
			preview_path = excluded.preview_path,
			original_modified = excluded.original_modified,
			created_at = excluded.created_at
	`, entry.SessionID, entry.Filename, entry.CachePath, preview, entry.OriginalModified.Unix(), time.Now().Unix(), entry.SessionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// GetThumbnailCache returns the cache entry for one file. ok is false when
// none is recorded.
func (d *Database) GetThumbnailCache(ctx context.Context, sessionID, filename string) (entry ThumbnailCacheEntry, ok bool, err error) {
	start := time.Now()
	defer func() { recordQuery("get_thumbnail_cache", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var preview sql.NullString
	var modified, created int64
	err = d.db.QueryRowContext(ctx, `
		SELECT session_id, filename, cache_path, preview_path, original_modified, created_at
		FROM thumbnail_cache WHERE session_id = ? AND filename = ?
	`, sessionID, filename).Scan(&entry.SessionID, &entry.Filename, &entry.CachePath, &preview, &modified, &created)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return ThumbnailCacheEntry{}, false, nil
	}
	if err != nil {
		return ThumbnailCacheEntry{}, false, err
	}

	entry.PreviewPath = preview.String
	entry.OriginalModified = time.Unix(modified, 0)
	entry.CreatedAt = time.Unix(created, 0)
	return entry, true, nil
}
