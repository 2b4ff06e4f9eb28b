package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const sessionColumns = `id, folder_path, last_opened, last_selected_index, total_files, created_at`

// GetOrCreateSession inserts the session for folderPath or refreshes the
// existing row's last_opened and total_files in a single statement.
func (d *Database) GetOrCreateSession(ctx context.Context, folderPath string, totalFiles int) (*Session, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_or_create_session", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id := SessionID(folderPath)
	now := time.Now().Unix()

	row := d.db.QueryRowContext(ctx, `
		INSERT INTO sessions (id, folder_path, last_opened, last_selected_index, total_files, created_at)
		VALUES (?, ?, ?, 0, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			folder_path = excluded.folder_path,
			last_opened = excluded.last_opened,
			total_files = excluded.total_files
		RETURNING `+sessionColumns,
		id, folderPath, now, totalFiles, now,
	)

	var s *Session
	s, err = scanSession(row)
	return s, err
}

// GetSession returns the session with the given id, or ErrSessionNotFound.
func (d *Database) GetSession(ctx context.Context, id string) (*Session, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_session", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var s *Session
	s, err = scanSession(d.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrSessionNotFound
	}
	return s, err
}

// ListSessions returns all sessions, most recently opened first.
func (d *Database) ListSessions(ctx context.Context) ([]Session, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_sessions", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY last_opened DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s *Session
		s, err = scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	err = rows.Err()
	return sessions, err
}

// UpdateLastSelectedIndex stores the viewer position and refreshes
// last_opened. It returns ErrSessionNotFound for an unknown session.
func (d *Database) UpdateLastSelectedIndex(ctx context.Context, sessionID string, index int) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_last_selected", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = d.db.ExecContext(ctx,
		`UPDATE sessions SET last_selected_index = ?, last_opened = ? WHERE id = ?`,
		index, time.Now().Unix(), sessionID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrSessionNotFound
	}
	return err
}

// DeleteSessionCache drops the thumbnail_cache rows of one session. The
// session row and its labels are kept.
func (d *Database) DeleteSessionCache(ctx context.Context, sessionID string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_session", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `DELETE FROM thumbnail_cache WHERE session_id = ?`, sessionID)
	return err
}

// ClearAllSessions removes every session and thumbnail_cache row in one
// transaction. Labels survive; session ids are derived from the folder
// path, so reopening a folder finds its labels again.
func (d *Database) ClearAllSessions(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("clear_all_sessions", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM thumbnail_cache`); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		_ = tx.Rollback()
		return err
	}
	err = tx.Commit()
	return err
}

// SessionCount returns the number of stored sessions.
func (d *Database) SessionCount(ctx context.Context) (int64, error) {
	return d.count(ctx, "count_sessions", `SELECT COUNT(*) FROM sessions`)
}

func (d *Database) count(ctx context.Context, op, query string, args ...any) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(op, start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int64
	err = d.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var s Session
	var lastOpened, createdAt int64
	if err := row.Scan(&s.ID, &s.FolderPath, &lastOpened, &s.LastSelectedIndex, &s.TotalFiles, &createdAt); err != nil {
		return nil, err
	}
	s.LastOpened = time.Unix(lastOpened, 0)
	s.CreatedAt = time.Unix(createdAt, 0)
	return &s, nil
}
