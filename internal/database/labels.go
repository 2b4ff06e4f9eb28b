package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SetLabel upserts the label for (sessionID, filename). LabelNone deletes the
// row, so a cleared label is indistinguishable from one never set.
func (d *Database) SetLabel(ctx context.Context, sessionID, filename string, label Label) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_label", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if label == LabelNone {
		_, err = d.db.ExecContext(ctx,
			`DELETE FROM labels WHERE session_id = ? AND filename = ?`,
			sessionID, filename,
		)
		return err
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO labels (session_id, filename, label, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, filename) DO UPDATE SET
			label = excluded.label,
			updated_at = excluded.updated_at
	`, sessionID, filename, string(label), time.Now().Unix())
	return err
}

// GetLabel returns the label for one file, or LabelNone.
func (d *Database) GetLabel(ctx context.Context, sessionID, filename string) (Label, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_label", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var label string
	err = d.db.QueryRowContext(ctx,
		`SELECT label FROM labels WHERE session_id = ? AND filename = ?`,
		sessionID, filename,
	).Scan(&label)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return LabelNone, nil
	}
	return Label(label), err
}

// GetLabels returns every label of a session ordered by filename.
func (d *Database) GetLabels(ctx context.Context, sessionID string) ([]FileLabel, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_labels", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		`SELECT filename, label, updated_at FROM labels WHERE session_id = ? ORDER BY filename`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	labels := []FileLabel{}
	for rows.Next() {
		var fl FileLabel
		var label string
		var updatedAt int64
		if err = rows.Scan(&fl.Filename, &label, &updatedAt); err != nil {
			return nil, err
		}
		fl.Label = Label(label)
		fl.UpdatedAt = time.Unix(updatedAt, 0)
		labels = append(labels, fl)
	}
	err = rows.Err()
	return labels, err
}

// GetRejectedFilenames returns the set of filenames labeled rejected.
func (d *Database) GetRejectedFilenames(ctx context.Context, sessionID string) (map[string]bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_rejected", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		`SELECT filename FROM labels WHERE session_id = ? AND label = ?`,
		sessionID, string(LabelRejected),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rejected := make(map[string]bool)
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, err
		}
		rejected[name] = true
	}
	err = rows.Err()
	return rejected, err
}

// ClearAllLabels deletes every label row and returns how many were removed.
func (d *Database) ClearAllLabels(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("clear_all_labels", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `DELETE FROM labels`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LabelCount returns the total number of label rows.
func (d *Database) LabelCount(ctx context.Context) (int64, error) {
	return d.count(ctx, "count_labels", `SELECT COUNT(*) FROM labels`)
}
