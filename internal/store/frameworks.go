package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/inkwell-app/inkwell/internal/entity"
)

const frameworkColumns = `id, framework_type, start_date, stage, entries, created_at, updated_at,
	remote_file_id, synced_at, sync_status`

// PutFrameworkSession inserts or updates a framework session.
func (s *Store) PutFrameworkSession(ctx context.Context, f *entity.FrameworkSession) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("invalid framework session: %w", err)
	}

	entries, err := marshalQAs(f.Entries)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO framework_sessions (
		id, framework_type, start_date, stage, entries, created_at, updated_at,
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

	_, err = s.conn.ExecContext(ctx, query,
		f.ID, f.FrameworkType, f.StartDate, string(f.Stage), entries,
		formatTime(f.CreatedAt), formatTime(f.UpdatedAt),
		f.RemoteFileID, timeToNullString(f.SyncedAt), string(f.SyncStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert framework session %s: %w", f.ID, err)
	}
	s.notify(entity.KindFrameworkSession)
	return nil
}

// GetFrameworkSession retrieves a framework session by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetFrameworkSession(ctx context.Context, id string) (*entity.FrameworkSession, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+frameworkColumns+" FROM framework_sessions WHERE id = ?", id)
	return scanFrameworkSession(row)
}

// FrameworkSessionFor retrieves the session for a framework type and start
// date. Returns sql.ErrNoRows if none exists.
func (s *Store) FrameworkSessionFor(ctx context.Context, frameworkType, startDate string) (*entity.FrameworkSession, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+frameworkColumns+" FROM framework_sessions WHERE framework_type = ? AND start_date = ?",
		frameworkType, startDate)
	return scanFrameworkSession(row)
}

// DeleteFrameworkSession removes a framework session. Idempotent.
func (s *Store) DeleteFrameworkSession(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM framework_sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete framework session %s: %w", id, err)
	}
	s.notify(entity.KindFrameworkSession)
	return nil
}

func scanFrameworkSession(row rowScanner) (*entity.FrameworkSession, error) {
	var f entity.FrameworkSession
	var stage, entriesJSON, createdAt, updatedAt, syncStatus string
	var syncedAt sql.NullString

	err := row.Scan(
		&f.ID, &f.FrameworkType, &f.StartDate, &stage, &entriesJSON,
		&createdAt, &updatedAt,
		&f.RemoteFileID, &syncedAt, &syncStatus,
	)
	if err != nil {
		return nil, err
	}

	f.Stage = entity.ParseFrameworkStage(stage)
	entries, err := unmarshalQAs(entriesJSON)
	if err != nil {
		return nil, err
	}
	f.Entries = entries
	f.CreatedAt = parseTime(createdAt)
	f.UpdatedAt = parseTime(updatedAt)
	f.SyncedAt = nullStringToTime(syncedAt)
	f.SyncStatus = entity.SyncStatus(syncStatus)
	return &f, nil
}
