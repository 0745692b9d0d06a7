package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/inkwell-app/inkwell/internal/entity"
)

const reviewColumns = `id, period, period_start, period_end, sections, created_at, updated_at,
	remote_file_id, synced_at, sync_status`

// PutReview inserts or updates a review.
func (s *Store) PutReview(ctx context.Context, r *entity.Review) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid review: %w", err)
	}

	sections, err := marshalQAs(r.Sections)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO reviews (
		id, period, period_start, period_end, sections, created_at, updated_at,
		remote_file_id, synced_at, sync_status
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		sections = excluded.sections,
		updated_at = excluded.updated_at,
		remote_file_id = excluded.remote_file_id,
		synced_at = excluded.synced_at,
		sync_status = excluded.sync_status
	`

	_, err = s.conn.ExecContext(ctx, query,
		r.ID, string(r.Period), formatTime(r.PeriodStart), formatTime(r.PeriodEnd), sections,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
		r.RemoteFileID, timeToNullString(r.SyncedAt), string(r.SyncStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert review %s: %w", r.ID, err)
	}
	s.notify(entity.KindReview)
	return nil
}

// GetReview retrieves a review by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetReview(ctx context.Context, id string) (*entity.Review, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+reviewColumns+" FROM reviews WHERE id = ?", id)
	return scanReview(row)
}

// ReviewForPeriod retrieves the review for a cadence and period start.
// Returns sql.ErrNoRows if none exists.
func (s *Store) ReviewForPeriod(ctx context.Context, period entity.ReviewPeriod, start time.Time) (*entity.Review, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+reviewColumns+" FROM reviews WHERE period = ? AND period_start = ?",
		string(period), formatTime(start))
	return scanReview(row)
}

// DeleteReview removes a review. Idempotent.
func (s *Store) DeleteReview(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM reviews WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete review %s: %w", id, err)
	}
	s.notify(entity.KindReview)
	return nil
}

func scanReview(row rowScanner) (*entity.Review, error) {
	var r entity.Review
	var period, periodStart, periodEnd, sectionsJSON, createdAt, updatedAt, syncStatus string
	var syncedAt sql.NullString

	err := row.Scan(
		&r.ID, &period, &periodStart, &periodEnd, &sectionsJSON,
		&createdAt, &updatedAt,
		&r.RemoteFileID, &syncedAt, &syncStatus,
	)
	if err != nil {
		return nil, err
	}

	r.Period = entity.ReviewPeriod(period)
	r.PeriodStart = parseTime(periodStart)
	r.PeriodEnd = parseTime(periodEnd)
	sections, err := unmarshalQAs(sectionsJSON)
	if err != nil {
		return nil, err
	}
	r.Sections = sections
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	r.SyncedAt = nullStringToTime(syncedAt)
	r.SyncStatus = entity.SyncStatus(syncStatus)
	return &r, nil
}
