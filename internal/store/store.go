// Package store provides the local SQLite database backing the journal.
//
// The database is the authoritative source of truth for the running app;
// the remote archive is a mirror. It runs in embedded mode with WAL for
// concurrent reads.
//
// Schema: one table per entity kind, plus sync_queue (pending mutations),
// folder_cache is persisted separately by the drive client, and metadata
// (key/value bookkeeping such as the hydration marker).
//
// Writers can observe the store: Subscribe registers a callback for a kind
// and the store invokes it after any committed write touching that kind's
// table. This replaces ad-hoc polling for views that need to refresh.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/inkwell-app/inkwell/internal/entity"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection with journal-specific accessors.
type Store struct {
	conn *sql.DB
	path string

	subMu   sync.Mutex
	nextSub int
	subs    map[entity.Kind]map[int]func()
}

// Open creates a database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// The caller MUST call Close() when done.
//
// Example:
//
//	db, err := store.Open(filepath.Join(dataDir, "inkwell.db"))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		conn: conn,
		path: path,
		subs: make(map[entity.Kind]map[int]func()),
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := s.conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	return s, nil
}

// RawDB returns the underlying sql.DB connection.
// Useful for components that manage their own tables, like the sync queue.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Close closes the database connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// Idempotent - safe to call multiple times.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS captures (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		content TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		remote_file_id TEXT NOT NULL DEFAULT '',
		synced_at TEXT,
		sync_status TEXT NOT NULL DEFAULT 'pending'
	);

	CREATE TABLE IF NOT EXISTS checkins (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		time_of_day TEXT NOT NULL,
		stage TEXT NOT NULL DEFAULT 'opening',
		entries TEXT NOT NULL DEFAULT '[]',  -- JSON array of {question, response}
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		remote_file_id TEXT NOT NULL DEFAULT '',
		synced_at TEXT,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		UNIQUE (date, time_of_day)
	);

	CREATE TABLE IF NOT EXISTS chats (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL UNIQUE,
		messages TEXT NOT NULL DEFAULT '[]',  -- JSON array of {role, content, at}
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		remote_file_id TEXT NOT NULL DEFAULT '',
		synced_at TEXT,
		sync_status TEXT NOT NULL DEFAULT 'pending'
	);

	CREATE TABLE IF NOT EXISTS memory (
		id TEXT PRIMARY KEY,
		sections TEXT NOT NULL DEFAULT '[]',  -- JSON array of {heading, body}
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		remote_file_id TEXT NOT NULL DEFAULT '',
		synced_at TEXT,
		sync_status TEXT NOT NULL DEFAULT 'pending'
	);

	CREATE TABLE IF NOT EXISTS northstar (
		id TEXT PRIMARY KEY,
		statement TEXT NOT NULL DEFAULT '',
		core_values TEXT NOT NULL DEFAULT '[]',  -- JSON array of strings
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		remote_file_id TEXT NOT NULL DEFAULT '',
		synced_at TEXT,
		sync_status TEXT NOT NULL DEFAULT 'pending'
	);

	CREATE TABLE IF NOT EXISTS reviews (
		id TEXT PRIMARY KEY,
		period TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		sections TEXT NOT NULL DEFAULT '[]',  -- JSON array of {question, response}
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		remote_file_id TEXT NOT NULL DEFAULT '',
		synced_at TEXT,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		UNIQUE (period, period_start)
	);

	CREATE TABLE IF NOT EXISTS framework_sessions (
		id TEXT PRIMARY KEY,
		framework_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		stage TEXT NOT NULL DEFAULT 'intro',
		entries TEXT NOT NULL DEFAULT '[]',  -- JSON array of {question, response}
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		remote_file_id TEXT NOT NULL DEFAULT '',
		synced_at TEXT,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		UNIQUE (framework_type, start_date)
	);

	CREATE TABLE IF NOT EXISTS sync_queue (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		op TEXT NOT NULL,
		remote_file_id TEXT NOT NULL DEFAULT '',  -- last-known remote id, kept for deletes
		enqueued_at TEXT NOT NULL,
		retries INTEGER NOT NULL DEFAULT 0,
		UNIQUE (kind, entity_id)
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_captures_date ON captures(date);
	CREATE INDEX IF NOT EXISTS idx_captures_status ON captures(status);
	CREATE INDEX IF NOT EXISTS idx_checkins_date ON checkins(date);
	CREATE INDEX IF NOT EXISTS idx_chats_date ON chats(date);
	CREATE INDEX IF NOT EXISTS idx_reviews_start ON reviews(period_start);
	CREATE INDEX IF NOT EXISTS idx_frameworks_date ON framework_sessions(start_date);
	CREATE INDEX IF NOT EXISTS idx_queue_order ON sync_queue(enqueued_at, seq);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// IsEmpty reports whether the primary content tables hold zero rows.
// Hydration uses this to decide whether the store is a fresh install.
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	for _, table := range []string{"captures", "checkins"} {
		var count int
		err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			return false, fmt.Errorf("failed to count %s: %w", table, err)
		}
		if count > 0 {
			return false, nil
		}
	}
	return true, nil
}

// GetMetadata reads a metadata value; missing keys return "".
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read metadata %s: %w", key, err)
	}
	return value, nil
}

// SetMetadata writes a metadata value.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO metadata (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := s.conn.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set metadata %s: %w", key, err)
	}
	return nil
}

// Unsubscribe removes a previously registered observer.
type Unsubscribe func()

// Subscribe registers fn to run after any committed write to the given
// kind's table. Callbacks run synchronously on the writing goroutine and
// must not write back into the store.
func (s *Store) Subscribe(kind entity.Kind, fn func()) Unsubscribe {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.subs[kind] == nil {
		s.subs[kind] = make(map[int]func())
	}
	id := s.nextSub
	s.nextSub++
	s.subs[kind][id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs[kind], id)
	}
}

// notify invokes observers registered for the kind.
func (s *Store) notify(kind entity.Kind) {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subs[kind]))
	for _, fn := range s.subs[kind] {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Tx is an open transaction over the store. Accessor methods mirror the
// Store's; observers fire only after a successful commit.
type Tx struct {
	tx      *sql.Tx
	s       *Store
	touched map[entity.Kind]bool
}

// Raw returns the underlying sql.Tx for components that manage their own
// tables inside the same transaction (the sync queue).
func (t *Tx) Raw() *sql.Tx {
	return t.tx
}

// mark records that a kind's table was written in this transaction.
func (t *Tx) mark(kind entity.Kind) {
	t.touched[kind] = true
}

// InTx runs fn inside a single transaction. If fn returns an error the
// transaction is rolled back; otherwise it is committed and observers for
// every touched kind are notified.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	t := &Tx{tx: sqlTx, s: s, touched: make(map[entity.Kind]bool)}

	if err := fn(t); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	for kind := range t.touched {
		s.notify(kind)
	}
	return nil
}

// execer abstracts *sql.DB and *sql.Tx for shared query implementations.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
// Unparseable values are treated as absent.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// parseTime parses a stored timestamp, returning the zero time on failure.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// formatTime renders a timestamp for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
