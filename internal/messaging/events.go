package messaging

import "github.com/nexus-im/estatechat/store/message"

// EventType names a realtime event pushed after a write.
type EventType string

const (
	EventMessageCreated   EventType = "message.created"
	EventMessageRead      EventType = "message.read"
	EventConversationRead EventType = "conversation.read"
)

// Event is the payload handed to a Notifier.
type Event struct {
	Type           EventType        `json:"type"`
	ConversationID string           `json:"conversation_id"`
	Message        *message.Message `json:"message,omitempty"`
	MessageID      string           `json:"message_id,omitempty"`
	ReaderID       int64            `json:"reader_id,omitempty"`
}

// Notifier delivers events to a user's live sessions. Delivery is best
// effort: Notify must not block and has nothing to report back.
type Notifier interface {
	Notify(userID int64, event Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(int64, Event) {}
