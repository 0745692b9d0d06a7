package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/inkwell-app/inkwell/internal/entity"
)

// The memory and northstar tables each hold a single row keyed by a
// constant ID.

type sectionJSON struct {
	Heading string `json:"heading"`
	Body    string `json:"body,omitempty"`
}

func marshalSections(sections []entity.Section) (string, error) {
	out := make([]sectionJSON, len(sections))
	for i, s := range sections {
		out[i] = sectionJSON{Heading: s.Heading, Body: s.Body}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to marshal sections: %w", err)
	}
	return string(data), nil
}

func unmarshalSections(data string) ([]entity.Section, error) {
	if data == "" || data == "null" {
		return nil, nil
	}
	var raw []sectionJSON
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sections: %w", err)
	}
	sections := make([]entity.Section, len(raw))
	for i, s := range raw {
		sections[i] = entity.Section{Heading: s.Heading, Body: s.Body}
	}
	return sections, nil
}

// PutMemory inserts or updates the singleton memory document.
func (s *Store) PutMemory(ctx context.Context, m *entity.Memory) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid memory: %w", err)
	}

	sections, err := marshalSections(m.Sections)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO memory (
		id, sections, created_at, updated_at,
		remote_file_id, synced_at, sync_status
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		sections = excluded.sections,
		updated_at = excluded.updated_at,
		remote_file_id = excluded.remote_file_id,
		synced_at = excluded.synced_at,
		sync_status = excluded.sync_status
	`

	_, err = s.conn.ExecContext(ctx, query,
		m.ID, sections,
		formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
		m.RemoteFileID, timeToNullString(m.SyncedAt), string(m.SyncStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert memory: %w", err)
	}
	s.notify(entity.KindMemory)
	return nil
}

// GetMemory retrieves the singleton memory document.
// Returns sql.ErrNoRows if it has never been written.
func (s *Store) GetMemory(ctx context.Context) (*entity.Memory, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT id, sections, created_at, updated_at,
	       remote_file_id, synced_at, sync_status
	FROM memory WHERE id = ?`, entity.MemoryID)

	var m entity.Memory
	var sectionsJSON, createdAt, updatedAt, syncStatus string
	var syncedAt sql.NullString

	err := row.Scan(&m.ID, &sectionsJSON, &createdAt, &updatedAt,
		&m.RemoteFileID, &syncedAt, &syncStatus)
	if err != nil {
		return nil, err
	}

	sections, err := unmarshalSections(sectionsJSON)
	if err != nil {
		return nil, err
	}
	m.Sections = sections
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	m.SyncedAt = nullStringToTime(syncedAt)
	m.SyncStatus = entity.SyncStatus(syncStatus)
	return &m, nil
}

// PutNorthstar inserts or updates the singleton northstar document.
func (s *Store) PutNorthstar(ctx context.Context, n *entity.Northstar) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("invalid northstar: %w", err)
	}

	values, err := json.Marshal(n.Values)
	if err != nil {
		return fmt.Errorf("failed to marshal values: %w", err)
	}

	query := `
	INSERT INTO northstar (
		id, statement, core_values, created_at, updated_at,
		remote_file_id, synced_at, sync_status
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		statement = excluded.statement,
		core_values = excluded.core_values,
		updated_at = excluded.updated_at,
		remote_file_id = excluded.remote_file_id,
		synced_at = excluded.synced_at,
		sync_status = excluded.sync_status
	`

	_, err = s.conn.ExecContext(ctx, query,
		n.ID, n.Statement, string(values),
		formatTime(n.CreatedAt), formatTime(n.UpdatedAt),
		n.RemoteFileID, timeToNullString(n.SyncedAt), string(n.SyncStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert northstar: %w", err)
	}
	s.notify(entity.KindNorthstar)
	return nil
}

// GetNorthstar retrieves the singleton northstar document.
// Returns sql.ErrNoRows if it has never been written.
func (s *Store) GetNorthstar(ctx context.Context) (*entity.Northstar, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT id, statement, core_values, created_at, updated_at,
	       remote_file_id, synced_at, sync_status
	FROM northstar WHERE id = ?`, entity.NorthstarID)

	var n entity.Northstar
	var valuesJSON, createdAt, updatedAt, syncStatus string
	var syncedAt sql.NullString

	err := row.Scan(&n.ID, &n.Statement, &valuesJSON, &createdAt, &updatedAt,
		&n.RemoteFileID, &syncedAt, &syncStatus)
	if err != nil {
		return nil, err
	}

	if valuesJSON != "" && valuesJSON != "null" {
		if err := json.Unmarshal([]byte(valuesJSON), &n.Values); err != nil {
			return nil, fmt.Errorf("failed to unmarshal values: %w", err)
		}
	}
	n.CreatedAt = parseTime(createdAt)
	n.UpdatedAt = parseTime(updatedAt)
	n.SyncedAt = nullStringToTime(syncedAt)
	n.SyncStatus = entity.SyncStatus(syncStatus)
	return &n, nil
}
