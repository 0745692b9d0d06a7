package store

import (
	"context"
	"fmt"
	"time"

	"github.com/inkwell-app/inkwell/internal/entity"
)

// tableFor maps an entity kind to its table. The switch is exhaustive over
// entity.Kinds so a new kind fails loudly here rather than silently syncing
// nothing.
func tableFor(kind entity.Kind) (string, error) {
	switch kind {
	case entity.KindCapture:
		return "captures", nil
	case entity.KindCheckin:
		return "checkins", nil
	case entity.KindChat:
		return "chats", nil
	case entity.KindMemory:
		return "memory", nil
	case entity.KindNorthstar:
		return "northstar", nil
	case entity.KindReview:
		return "reviews", nil
	case entity.KindFrameworkSession:
		return "framework_sessions", nil
	default:
		return "", fmt.Errorf("no table for kind %v", kind)
	}
}

// StampSynced writes the remote file ID and a successful sync timestamp
// onto an entity without touching its content columns.
func (s *Store) StampSynced(ctx context.Context, kind entity.Kind, id, remoteFileID string, at time.Time) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		"UPDATE %s SET remote_file_id = ?, synced_at = ?, sync_status = ? WHERE id = ?", table)
	if _, err := s.conn.ExecContext(ctx, query,
		remoteFileID, formatTime(at), string(entity.SyncSynced), id); err != nil {
		return fmt.Errorf("failed to stamp %s %s synced: %w", kind, id, err)
	}
	s.notify(kind)
	return nil
}

// SetSyncStatus updates only the sync status column for an entity.
// Used to flag exhausted-retry failures so they surface in the UI.
func (s *Store) SetSyncStatus(ctx context.Context, kind entity.Kind, id string, status entity.SyncStatus) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("UPDATE %s SET sync_status = ? WHERE id = ?", table)
	if _, err := s.conn.ExecContext(ctx, query, string(status), id); err != nil {
		return fmt.Errorf("failed to set %s %s sync status: %w", kind, id, err)
	}
	s.notify(kind)
	return nil
}

// PendingSyncCount returns how many entities of the kind are flagged with
// the given sync status.
func (s *Store) PendingSyncCount(ctx context.Context, kind entity.Kind, status entity.SyncStatus) (int, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}

	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE sync_status = ?", table)
	if err := s.conn.QueryRowContext(ctx, query, string(status)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s by status: %w", kind, err)
	}
	return count, nil
}
