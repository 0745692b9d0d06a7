package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/inkwell-app/inkwell/internal/entity"
)

const captureColumns = `id, date, content, status, created_at, updated_at,
	remote_file_id, synced_at, sync_status`

// PutCapture inserts or updates a capture.
func (s *Store) PutCapture(ctx context.Context, c *entity.Capture) error {
	if err := putCapture(ctx, s.conn, c); err != nil {
		return err
	}
	s.notify(entity.KindCapture)
	return nil
}

// PutCapture inserts or updates a capture within the transaction.
func (t *Tx) PutCapture(ctx context.Context, c *entity.Capture) error {
	if err := putCapture(ctx, t.tx, c); err != nil {
		return err
	}
	t.mark(entity.KindCapture)
	return nil
}

func putCapture(ctx context.Context, db execer, c *entity.Capture) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid capture: %w", err)
	}

	query := `
	INSERT INTO captures (
		id, date, content, status, created_at, updated_at,
		remote_file_id, synced_at, sync_status
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		date = excluded.date,
		content = excluded.content,
		status = excluded.status,
		updated_at = excluded.updated_at,
		remote_file_id = excluded.remote_file_id,
		synced_at = excluded.synced_at,
		sync_status = excluded.sync_status
	`

	_, err := db.ExecContext(ctx, query,
		c.ID, c.Date, c.Content, string(c.Status),
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
		c.RemoteFileID, timeToNullString(c.SyncedAt), string(c.SyncStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert capture %s: %w", c.ID, err)
	}
	return nil
}

// GetCapture retrieves a capture by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetCapture(ctx context.Context, id string) (*entity.Capture, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+captureColumns+" FROM captures WHERE id = ?", id)
	return scanCapture(row)
}

// CapturesByDate returns every capture sharing the given calendar day,
// ordered by creation time. This is the day-group used for aggregation.
func (s *Store) CapturesByDate(ctx context.Context, date string) ([]*entity.Capture, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT "+captureColumns+" FROM captures WHERE date = ? ORDER BY created_at ASC", date)
	if err != nil {
		return nil, fmt.Errorf("failed to query captures for %s: %w", date, err)
	}
	defer rows.Close()

	return scanCaptures(rows)
}

// CapturesByRemoteFile returns the captures stamped with the given remote
// file ID, ordered by creation time. Day-group members share one remote
// file, so this recovers the surviving group when a member's local row is
// already gone.
func (s *Store) CapturesByRemoteFile(ctx context.Context, remoteFileID string) ([]*entity.Capture, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT "+captureColumns+" FROM captures WHERE remote_file_id = ? ORDER BY created_at ASC",
		remoteFileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query captures for remote file %s: %w", remoteFileID, err)
	}
	defer rows.Close()

	return scanCaptures(rows)
}

// CapturesSince returns captures on or after the given day, newest first,
// optionally limited.
func (s *Store) CapturesSince(ctx context.Context, date string, limit int) ([]*entity.Capture, error) {
	query := "SELECT " + captureColumns + ` FROM captures
		WHERE date >= ? ORDER BY date DESC, created_at DESC`
	args := []any{date}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query captures since %s: %w", date, err)
	}
	defer rows.Close()

	return scanCaptures(rows)
}

// DeleteCapture removes a capture. Idempotent.
func (s *Store) DeleteCapture(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM captures WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete capture %s: %w", id, err)
	}
	s.notify(entity.KindCapture)
	return nil
}

// DeleteCapture removes a capture within the transaction.
func (t *Tx) DeleteCapture(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM captures WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete capture %s: %w", id, err)
	}
	t.mark(entity.KindCapture)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCapture(row rowScanner) (*entity.Capture, error) {
	var c entity.Capture
	var status, createdAt, updatedAt, syncStatus string
	var syncedAt sql.NullString

	err := row.Scan(
		&c.ID, &c.Date, &c.Content, &status,
		&createdAt, &updatedAt,
		&c.RemoteFileID, &syncedAt, &syncStatus,
	)
	if err != nil {
		return nil, err
	}

	c.Status = entity.CaptureStatus(status)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	c.SyncedAt = nullStringToTime(syncedAt)
	c.SyncStatus = entity.SyncStatus(syncStatus)
	return &c, nil
}

func scanCaptures(rows *sql.Rows) ([]*entity.Capture, error) {
	var captures []*entity.Capture
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		captures = append(captures, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating captures: %w", err)
	}
	return captures, nil
}
