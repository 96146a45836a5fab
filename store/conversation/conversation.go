package conversation

import (
	"context"
	"errors"
	"time"
)

// Conversation is a thread between exactly two users, optionally scoped to a listing.
//
// ParticipantA and ParticipantB keep the order the thread was opened in (opener first).
// SmallerParticipant and LargerParticipant hold the same two ids normalized for
// uniqueness; together with ListingID they form the conversation's identity key.
type Conversation struct {
	ID                 string    `json:"id"`
	ParticipantA       int64     `json:"participant_a"`
	ParticipantB       int64     `json:"participant_b"`
	SmallerParticipant int64     `json:"-"`
	LargerParticipant  int64     `json:"-"`
	ListingID          *int64    `json:"listing_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	LastActivityAt     time.Time `json:"last_activity_at"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID int64) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// OtherParticipant returns the participant that is not userID.
// The result is meaningless when userID is not a participant.
func (c *Conversation) OtherParticipant(userID int64) int64 {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// Key is the canonical identity of a conversation.
type Key struct {
	Smaller   int64
	Larger    int64
	ListingID *int64
}

// CanonicalKey normalizes an unordered pair of users plus an optional listing.
func CanonicalKey(userA, userB int64, listingID *int64) Key {
	if userB < userA {
		userA, userB = userB, userA
	}
	return Key{Smaller: userA, Larger: userB, ListingID: listingID}
}

// LastMessage is the newest message of a thread as seen by the conversation list.
type LastMessage struct {
	ID         string
	SenderID   int64
	ReceiverID int64
	Content    string
	CreatedAt  time.Time
}

// Thread is a conversation joined with its newest message and the unread
// count of the user the thread was listed for.
type Thread struct {
	Conversation
	LastMessage *LastMessage
	UnreadCount int
}

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationExists   = errors.New("conversation already exists")
)

// Store defines conversation persistence operations.
type Store interface {
	GetByID(ctx context.Context, id string) (*Conversation, error)
	GetByKey(ctx context.Context, key Key) (*Conversation, error)
	// Create inserts convo and returns ErrConversationExists when another
	// conversation already holds the same key.
	Create(ctx context.Context, convo *Conversation) error
	// ListThreads returns the participant's conversations, freshest activity first.
	ListThreads(ctx context.Context, participantID int64, limit, offset int) ([]*Thread, error)
}
