package messaging

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nexus-im/estatechat/store/conversation"
	"github.com/nexus-im/estatechat/store/message"
)

// readStateManager moves messages from unread to read. Only the receiver of a
// message can do that; nothing ever moves a message back to unread.
type readStateManager struct {
	conversations conversation.Store
	messages      message.Store
	notifier      Notifier
	log           *zap.Logger
}

// markMessageRead returns nil, nil when callerID is not the receiver: the
// operation does not apply to senders or outsiders, which is not an error.
func (m *readStateManager) markMessageRead(ctx context.Context, callerID int64, messageID string) (*message.Message, error) {
	msg, err := m.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, message.ErrMessageNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	if msg.ReceiverID != callerID {
		return nil, nil
	}
	if msg.IsRead {
		return msg, nil
	}

	changed, err := m.messages.MarkRead(ctx, msg.ID, callerID)
	if err != nil {
		return nil, err
	}
	msg.IsRead = true

	if changed {
		m.notifier.Notify(msg.SenderID, Event{
			Type:           EventMessageRead,
			ConversationID: msg.ConversationID,
			MessageID:      msg.ID,
			ReaderID:       callerID,
		})
	}
	return msg, nil
}

// markConversationRead only touches messages addressed to callerID, so a
// non-participant matches nothing and the call is a no-op.
func (m *readStateManager) markConversationRead(ctx context.Context, callerID int64, conversationID string) error {
	convo, err := m.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, conversation.ErrConversationNotFound) {
			return ErrConversationNotFound
		}
		return fmt.Errorf("failed to get conversation: %w", err)
	}

	changed, err := m.messages.MarkConversationRead(ctx, convo.ID, callerID)
	if err != nil {
		return err
	}
	if changed == 0 {
		return nil
	}

	m.log.Debug("conversation marked read",
		zap.String("conversation_id", convo.ID),
		zap.Int64("reader_id", callerID),
		zap.Int64("messages", changed),
	)
	m.notifier.Notify(convo.OtherParticipant(callerID), Event{
		Type:           EventConversationRead,
		ConversationID: convo.ID,
		ReaderID:       callerID,
	})
	return nil
}
