package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/inkwell-app/inkwell/internal/entity"
)

const chatColumns = `id, date, messages, created_at, updated_at,
	remote_file_id, synced_at, sync_status`

type messageJSON struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

func marshalMessages(msgs []entity.ChatMessage) (string, error) {
	out := make([]messageJSON, len(msgs))
	for i, m := range msgs {
		out[i] = messageJSON{Role: string(m.Role), Content: m.Content, At: m.At}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to marshal messages: %w", err)
	}
	return string(data), nil
}

func unmarshalMessages(data string) ([]entity.ChatMessage, error) {
	if data == "" || data == "null" {
		return nil, nil
	}
	var raw []messageJSON
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
	}
	msgs := make([]entity.ChatMessage, len(raw))
	for i, m := range raw {
		msgs[i] = entity.ChatMessage{Role: entity.ChatRole(m.Role), Content: m.Content, At: m.At}
	}
	return msgs, nil
}

// PutChat inserts or updates a chat.
func (s *Store) PutChat(ctx context.Context, c *entity.Chat) error {
	if err := putChat(ctx, s.conn, c); err != nil {
		return err
	}
	s.notify(entity.KindChat)
	return nil
}

// PutChat inserts or updates a chat within the transaction.
func (t *Tx) PutChat(ctx context.Context, c *entity.Chat) error {
	if err := putChat(ctx, t.tx, c); err != nil {
		return err
	}
	t.mark(entity.KindChat)
	return nil
}

func putChat(ctx context.Context, db execer, c *entity.Chat) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid chat: %w", err)
	}

	messages, err := marshalMessages(c.Messages)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO chats (
		id, date, messages, created_at, updated_at,
		remote_file_id, synced_at, sync_status
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		messages = excluded.messages,
		updated_at = excluded.updated_at,
		remote_file_id = excluded.remote_file_id,
		synced_at = excluded.synced_at,
		sync_status = excluded.sync_status
	`

	_, err = db.ExecContext(ctx, query,
		c.ID, c.Date, messages,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
		c.RemoteFileID, timeToNullString(c.SyncedAt), string(c.SyncStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert chat %s: %w", c.ID, err)
	}
	return nil
}

// GetChat retrieves a chat by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetChat(ctx context.Context, id string) (*entity.Chat, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+chatColumns+" FROM chats WHERE id = ?", id)
	return scanChat(row)
}

// ChatForDate retrieves the chat for a calendar day.
// Returns sql.ErrNoRows if the day has no conversation.
func (s *Store) ChatForDate(ctx context.Context, date string) (*entity.Chat, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+chatColumns+" FROM chats WHERE date = ?", date)
	return scanChat(row)
}

// DeleteChat removes a chat. Idempotent.
func (s *Store) DeleteChat(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete chat %s: %w", id, err)
	}
	s.notify(entity.KindChat)
	return nil
}

func scanChat(row rowScanner) (*entity.Chat, error) {
	var c entity.Chat
	var messagesJSON, createdAt, updatedAt, syncStatus string
	var syncedAt sql.NullString

	err := row.Scan(
		&c.ID, &c.Date, &messagesJSON,
		&createdAt, &updatedAt,
		&c.RemoteFileID, &syncedAt, &syncStatus,
	)
	if err != nil {
		return nil, err
	}

	msgs, err := unmarshalMessages(messagesJSON)
	if err != nil {
		return nil, err
	}
	c.Messages = msgs
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	c.SyncedAt = nullStringToTime(syncedAt)
	c.SyncStatus = entity.SyncStatus(syncStatus)
	return &c, nil
}
