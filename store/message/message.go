package message

import (
	"context"
	"errors"
	"time"
)

// Message is a single entry in a conversation's append-only log.
// Only IsRead ever changes after creation, and only from false to true.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	ReceiverID     int64     `json:"receiver_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	IsRead         bool      `json:"is_read"`
}

var (
	ErrMessageNotFound = errors.New("message not found")
)

// Store defines message persistence operations.
type Store interface {
	// Append stores m and bumps the owning conversation's last activity in
	// the same transaction.
	Append(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	// ListByConversation returns messages oldest first.
	ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]*Message, error)
	CountUnread(ctx context.Context, conversationID string, receiverID int64) (int, error)
	CountUnreadTotal(ctx context.Context, receiverID int64) (int, error)
	// MarkRead flips one unread message addressed to receiverID. It reports
	// whether a row changed.
	MarkRead(ctx context.Context, id string, receiverID int64) (bool, error)
	// MarkConversationRead flips every unread message in the conversation
	// addressed to receiverID and returns how many changed.
	MarkConversationRead(ctx context.Context, conversationID string, receiverID int64) (int64, error)
}
