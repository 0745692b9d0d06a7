// Package queue implements the durable write-ahead mutation queue.
//
// Every local mutation that must reach the remote archive is recorded as a
// queue entry before the sync processor picks it up. Entries are
// deduplicated per (kind, entity id): enqueueing while an entry is pending
// updates at most the entry's operation, never creates a duplicate. A
// delete always wins over a pending create or update; otherwise the first
// recorded operation stands, since processing always re-reads current
// entity state anyway.
package queue

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/inkwell-app/inkwell/internal/entity"
)

// Op is the kind of mutation recorded in a queue entry.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Entry is one pending mutation.
type Entry struct {
	Seq        int64
	Kind       entity.Kind
	EntityID   string
	Op         Op
	EnqueuedAt time.Time
	Retries    int

	// RemoteFileID is the last-known remote id, captured when a delete is
	// enqueued so the processor can remove a file whose local entity row is
	// already gone.
	RemoteFileID string
}

// Queue is the durable mutation queue, backed by the sync_queue table of
// the local database.
type Queue struct {
	db     *sql.DB
	logger *log.Logger
}

// New creates a Queue over the given database connection. The schema must
// already be initialized (store.InitSchema creates sync_queue). A nil
// logger falls back to stderr.
func New(db *sql.DB, logger *log.Logger) *Queue {
	if logger == nil {
		logger = log.New(os.Stderr, "[queue] ", log.LstdFlags)
	}
	return &Queue{db: db, logger: logger}
}

// dbtx abstracts *sql.DB and *sql.Tx so enqueues can join a store
// transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Enqueue records a create or update mutation for an entity.
func (q *Queue) Enqueue(ctx context.Context, kind entity.Kind, entityID string, op Op) error {
	return enqueue(ctx, q.db, kind, entityID, op, "")
}

// EnqueueTx records a mutation inside an open transaction, so an entity
// write and its queue entry commit together.
func (q *Queue) EnqueueTx(ctx context.Context, tx *sql.Tx, kind entity.Kind, entityID string, op Op) error {
	return enqueue(ctx, tx, kind, entityID, op, "")
}

// EnqueueDelete records a delete mutation, carrying the entity's last-known
// remote file id since the local row will not survive to processing time.
func (q *Queue) EnqueueDelete(ctx context.Context, kind entity.Kind, entityID, remoteFileID string) error {
	return enqueue(ctx, q.db, kind, entityID, OpDelete, remoteFileID)
}

// EnqueueDeleteTx is EnqueueDelete inside an open transaction.
func (q *Queue) EnqueueDeleteTx(ctx context.Context, tx *sql.Tx, kind entity.Kind, entityID, remoteFileID string) error {
	return enqueue(ctx, tx, kind, entityID, OpDelete, remoteFileID)
}

func enqueue(ctx context.Context, db dbtx, kind entity.Kind, entityID string, op Op, remoteFileID string) error {
	switch op {
	case OpCreate, OpUpdate, OpDelete:
	default:
		return fmt.Errorf("invalid queue op %q", op)
	}

	// Delete dominates an existing entry; create/update leave it untouched.
	// EnqueuedAt is never rewritten so a coalesced entry keeps its original
	// position in the drain order.
	query := `
	INSERT INTO sync_queue (kind, entity_id, op, remote_file_id, enqueued_at, retries)
	VALUES (?, ?, ?, ?, ?, 0)
	ON CONFLICT(kind, entity_id) DO UPDATE SET
		op = CASE WHEN excluded.op = 'delete' THEN 'delete' ELSE sync_queue.op END,
		remote_file_id = CASE WHEN excluded.op = 'delete'
			THEN excluded.remote_file_id ELSE sync_queue.remote_file_id END
	`

	_, err := db.ExecContext(ctx, query,
		kind.String(), entityID, string(op), remoteFileID,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to enqueue %s %s %s: %w", op, kind, entityID, err)
	}
	return nil
}

// DequeueAll returns a snapshot of every pending entry in FIFO enqueue
// order. The entries stay queued; callers Remove them after processing.
func (q *Queue) DequeueAll(ctx context.Context) ([]Entry, error) {
	rows, err := q.db.QueryContext(ctx, `
	SELECT seq, kind, entity_id, op, remote_file_id, enqueued_at, retries
	FROM sync_queue
	ORDER BY enqueued_at ASC, seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to read sync queue: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind, op, enqueuedAt string
		if err := rows.Scan(&e.Seq, &kind, &e.EntityID, &op, &e.RemoteFileID, &enqueuedAt, &e.Retries); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		k, err := entity.ParseKind(kind)
		if err != nil {
			// One bad row must not wedge the whole queue.
			q.logger.Printf("Skipping malformed queue entry %d: %v", e.Seq, err)
			continue
		}
		e.Kind = k
		e.Op = Op(op)
		if t, err := time.Parse(time.RFC3339Nano, enqueuedAt); err == nil {
			e.EnqueuedAt = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue: %w", err)
	}
	return entries, nil
}

// Remove deletes a processed entry. Idempotent.
func (q *Queue) Remove(ctx context.Context, seq int64) error {
	if _, err := q.db.ExecContext(ctx, "DELETE FROM sync_queue WHERE seq = ?", seq); err != nil {
		return fmt.Errorf("failed to remove queue entry %d: %w", seq, err)
	}
	return nil
}

// BumpRetry increments an entry's retry counter after a failed attempt.
func (q *Queue) BumpRetry(ctx context.Context, seq int64) error {
	if _, err := q.db.ExecContext(ctx,
		"UPDATE sync_queue SET retries = retries + 1 WHERE seq = ?", seq); err != nil {
		return fmt.Errorf("failed to bump retry for entry %d: %w", seq, err)
	}
	return nil
}

// Count returns the number of pending entries, for status surfacing.
func (q *Queue) Count(ctx context.Context) (int, error) {
	var count int
	if err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_queue").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sync queue: %w", err)
	}
	return count, nil
}
