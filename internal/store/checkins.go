package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/inkwell-app/inkwell/internal/entity"
)

const checkinColumns = `id, date, time_of_day, stage, entries, created_at, updated_at,
	remote_file_id, synced_at, sync_status`

// qaJSON is the stored form of a question/response pair.
type qaJSON struct {
	Question string `json:"question"`
	Response string `json:"response,omitempty"`
}

func marshalQAs(entries []entity.QA) (string, error) {
	out := make([]qaJSON, len(entries))
	for i, e := range entries {
		out[i] = qaJSON{Question: e.Question, Response: e.Response}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to marshal entries: %w", err)
	}
	return string(data), nil
}

func unmarshalQAs(data string) ([]entity.QA, error) {
	if data == "" || data == "null" {
		return nil, nil
	}
	var raw []qaJSON
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entries: %w", err)
	}
	entries := make([]entity.QA, len(raw))
	for i, e := range raw {
		entries[i] = entity.QA{Question: e.Question, Response: e.Response}
	}
	return entries, nil
}

// PutCheckin inserts or updates a check-in.
func (s *Store) PutCheckin(ctx context.Context, c *entity.Checkin) error {
	if err := putCheckin(ctx, s.conn, c); err != nil {
		return err
	}
	s.notify(entity.KindCheckin)
	return nil
}

// PutCheckin inserts or updates a check-in within the transaction.
func (t *Tx) PutCheckin(ctx context.Context, c *entity.Checkin) error {
	if err := putCheckin(ctx, t.tx, c); err != nil {
		return err
	}
	t.mark(entity.KindCheckin)
	return nil
}

func putCheckin(ctx context.Context, db execer, c *entity.Checkin) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid checkin: %w", err)
	}

	entries, err := marshalQAs(c.Entries)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO checkins (
		id, date, time_of_day, stage, entries, created_at, updated_at,
		remote_file_id, synced_at, sync_status
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		stage = excluded.stage,
		entries = excluded.entries,
		updated_at = excluded.updated_at,
		remote_file_id = excluded.remote_file_id,
		synced_at = excluded.synced_at,
		sync_status = excluded.sync_status
	`

	_, err = db.ExecContext(ctx, query,
		c.ID, c.Date, string(c.TimeOfDay), string(c.Stage), entries,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
		c.RemoteFileID, timeToNullString(c.SyncedAt), string(c.SyncStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert checkin %s: %w", c.ID, err)
	}
	return nil
}

// GetCheckin retrieves a check-in by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetCheckin(ctx context.Context, id string) (*entity.Checkin, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+checkinColumns+" FROM checkins WHERE id = ?", id)
	return scanCheckin(row)
}

// CheckinForSlot retrieves the check-in for a given day and time-of-day.
// Returns sql.ErrNoRows if the slot has no check-in yet.
func (s *Store) CheckinForSlot(ctx context.Context, date string, tod entity.TimeOfDay) (*entity.Checkin, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+checkinColumns+" FROM checkins WHERE date = ? AND time_of_day = ?",
		date, string(tod))
	return scanCheckin(row)
}

// RecentCheckins returns the most recent check-ins, newest first.
func (s *Store) RecentCheckins(ctx context.Context, limit int) ([]*entity.Checkin, error) {
	query := "SELECT " + checkinColumns + " FROM checkins ORDER BY date DESC, time_of_day DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent checkins: %w", err)
	}
	defer rows.Close()

	var checkins []*entity.Checkin
	for rows.Next() {
		c, err := scanCheckin(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkin: %w", err)
		}
		checkins = append(checkins, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkins: %w", err)
	}
	return checkins, nil
}

// DeleteCheckin removes a check-in. Idempotent.
func (s *Store) DeleteCheckin(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM checkins WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete checkin %s: %w", id, err)
	}
	s.notify(entity.KindCheckin)
	return nil
}

func scanCheckin(row rowScanner) (*entity.Checkin, error) {
	var c entity.Checkin
	var tod, stage, entriesJSON, createdAt, updatedAt, syncStatus string
	var syncedAt sql.NullString

	err := row.Scan(
		&c.ID, &c.Date, &tod, &stage, &entriesJSON,
		&createdAt, &updatedAt,
		&c.RemoteFileID, &syncedAt, &syncStatus,
	)
	if err != nil {
		return nil, err
	}

	c.TimeOfDay = entity.TimeOfDay(tod)
	c.Stage = entity.ParseCheckinStage(stage)
	entries, err := unmarshalQAs(entriesJSON)
	if err != nil {
		return nil, err
	}
	c.Entries = entries
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	c.SyncedAt = nullStringToTime(syncedAt)
	c.SyncStatus = entity.SyncStatus(syncStatus)
	return &c, nil
}
