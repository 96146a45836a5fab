package message

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLStore implements Store using a database/sql connection.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a new SQLStore.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Append(ctx context.Context, m *Message) (err error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	messageInsert := `
		INSERT INTO messages (id, conversation_id, sender_id, receiver_id, content, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
	`

	if _, err = tx.ExecContext(ctx, messageInsert,
		m.ID, m.ConversationID, m.SenderID, m.ReceiverID, m.Content, m.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	activityUpdate := `
		UPDATE conversations
		SET last_activity_at = GREATEST(last_activity_at, $2)
		WHERE id = $1
	`

	if _, err = tx.ExecContext(ctx, activityUpdate, m.ConversationID, m.CreatedAt); err != nil {
		return fmt.Errorf("failed to update conversation activity: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}

	m.IsRead = false
	return nil
}

func (s *SQLStore) GetByID(ctx context.Context, id string) (*Message, error) {
	if !isUUID(id) {
		return nil, ErrMessageNotFound
	}

	query := `
		SELECT id, conversation_id, sender_id, receiver_id, content, created_at, is_read
		FROM messages
		WHERE id = $1
	`

	var m Message
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt, &m.IsRead,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &m, nil
}

func (s *SQLStore) ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]*Message, error) {
	if !isUUID(conversationID) {
		return []*Message{}, nil
	}

	query := `
		SELECT id, conversation_id, sender_id, receiver_id, content, created_at, is_read
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	messages := make([]*Message, 0)
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt, &m.IsRead,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return messages, nil
}

func (s *SQLStore) CountUnread(ctx context.Context, conversationID string, receiverID int64) (int, error) {
	if !isUUID(conversationID) {
		return 0, nil
	}

	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = $1 AND receiver_id = $2 AND is_read = FALSE
	`

	var count int
	if err := s.db.QueryRowContext(ctx, query, conversationID, receiverID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

func (s *SQLStore) CountUnreadTotal(ctx context.Context, receiverID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE receiver_id = $1 AND is_read = FALSE
	`

	var count int
	if err := s.db.QueryRowContext(ctx, query, receiverID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

func (s *SQLStore) MarkRead(ctx context.Context, id string, receiverID int64) (bool, error) {
	if !isUUID(id) {
		return false, nil
	}

	query := `
		UPDATE messages
		SET is_read = TRUE
		WHERE id = $1 AND receiver_id = $2 AND is_read = FALSE
	`

	result, err := s.db.ExecContext(ctx, query, id, receiverID)
	if err != nil {
		return false, fmt.Errorf("failed to mark message as read: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark message as read: %w", err)
	}
	return affected > 0, nil
}

func (s *SQLStore) MarkConversationRead(ctx context.Context, conversationID string, receiverID int64) (int64, error) {
	if !isUUID(conversationID) {
		return 0, nil
	}

	query := `
		UPDATE messages
		SET is_read = TRUE
		WHERE conversation_id = $1 AND receiver_id = $2 AND is_read = FALSE
	`

	result, err := s.db.ExecContext(ctx, query, conversationID, receiverID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark conversation as read: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to mark conversation as read: %w", err)
	}
	return affected, nil
}

// isUUID filters ids that can never match a uuid column, so they read as
// absent instead of failing the query.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

var _ Store = (*SQLStore)(nil)
