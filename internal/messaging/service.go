// Package messaging is the direct-messaging core: conversation resolution,
// message history, sending, unread accounting and read state.
//
// Every operation takes the verified caller id from the transport and is a
// stateless transformation over the conversation and message stores, so any
// number of service instances can share one database.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/nexus-im/estatechat/store/conversation"
	"github.com/nexus-im/estatechat/store/listing"
	"github.com/nexus-im/estatechat/store/message"
	"github.com/nexus-im/estatechat/store/user"
)

const (
	DefaultMaxContentLength = 1000
	DefaultPageSize         = 20
	DefaultMaxPageSize      = 100
)

// Options tunes limits. Zero values fall back to the defaults above.
type Options struct {
	MaxContentLength int
	DefaultPageSize  int
	MaxPageSize      int
	// Now is the clock used for creation timestamps.
	Now func() time.Time
}

// Deps are the collaborators of the service. Directory, Catalog and Notifier
// are optional.
type Deps struct {
	Conversations conversation.Store
	Messages      message.Store
	Directory     user.Store
	Catalog       listing.Store
	Notifier      Notifier
	Logger        *zap.Logger
}

// Participant identifies the other side of a conversation for display.
type Participant struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// MessagePreview is the newest message of a conversation. For a conversation
// without messages it carries empty content and the conversation's activity time.
type MessagePreview struct {
	ID         string    `json:"id,omitempty"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"sent_at"`
	SenderID   int64     `json:"sender_id,omitempty"`
	ReceiverID int64     `json:"receiver_id,omitempty"`
}

// ConversationSummary is one row of a caller's inbox.
type ConversationSummary struct {
	ConversationID    string         `json:"conversation_id"`
	OtherParticipant  Participant    `json:"other_participant"`
	ListingID         *int64         `json:"listing_id,omitempty"`
	ListingTitle      string         `json:"listing_title,omitempty"`
	LastMessage       MessagePreview `json:"last_message"`
	LastMessageIsMine bool           `json:"last_message_is_mine"`
	UnreadCount       int            `json:"unread_count"`
	LastActivityAt    time.Time      `json:"last_activity_at"`
}

// Service is the only entry point callers use.
type Service struct {
	conversations conversation.Store
	messages      message.Store
	directory     user.Store
	catalog       listing.Store
	notifier      Notifier
	log           *zap.Logger
	opts          Options

	resolver  *resolver
	readState *readStateManager
}

// NewService wires the service and its internal collaborators.
func NewService(deps Deps, opts Options) *Service {
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = DefaultMaxContentLength
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = DefaultPageSize
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = DefaultMaxPageSize
	}
	if opts.DefaultPageSize > opts.MaxPageSize {
		opts.DefaultPageSize = opts.MaxPageSize
	}
	if opts.Now == nil {
		opts.Now = func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		}
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		conversations: deps.Conversations,
		messages:      deps.Messages,
		directory:     deps.Directory,
		catalog:       deps.Catalog,
		notifier:      notifier,
		log:           log,
		opts:          opts,
		resolver: &resolver{
			store: deps.Conversations,
			now:   opts.Now,
			log:   log,
		},
		readState: &readStateManager{
			conversations: deps.Conversations,
			messages:      deps.Messages,
			notifier:      notifier,
			log:           log,
		},
	}
}

// ResolveConversation returns the conversation between the caller and otherID
// for the given listing (nil for none), creating it if needed. created reports
// whether this call inserted it.
func (s *Service) ResolveConversation(ctx context.Context, callerID, otherID int64, listingID *int64) (convo *conversation.Conversation, created bool, err error) {
	return s.resolver.resolve(ctx, callerID, otherID, listingID)
}

// GetConversation returns a conversation the caller participates in.
func (s *Service) GetConversation(ctx context.Context, callerID int64, conversationID string) (*conversation.Conversation, error) {
	return s.participantConversation(ctx, callerID, conversationID)
}

// ListConversations returns one page of the caller's conversations, most
// recent activity first.
func (s *Service) ListConversations(ctx context.Context, callerID int64, page, pageSize int) ([]ConversationSummary, error) {
	limit, offset := s.window(page, pageSize)

	threads, err := s.conversations.ListThreads(ctx, callerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	otherIDs := make([]int64, 0, len(threads))
	listingIDs := make([]int64, 0, len(threads))
	for _, t := range threads {
		otherIDs = append(otherIDs, t.OtherParticipant(callerID))
		if t.ListingID != nil {
			listingIDs = append(listingIDs, *t.ListingID)
		}
	}

	profiles, err := s.profiles(ctx, otherIDs)
	if err != nil {
		return nil, err
	}
	titles, err := s.listingTitles(ctx, listingIDs)
	if err != nil {
		return nil, err
	}

	summaries := make([]ConversationSummary, 0, len(threads))
	for _, t := range threads {
		otherID := t.OtherParticipant(callerID)
		summary := ConversationSummary{
			ConversationID:   t.ID,
			OtherParticipant: Participant{ID: otherID},
			ListingID:        t.ListingID,
			UnreadCount:      t.UnreadCount,
			LastActivityAt:   t.LastActivityAt,
			LastMessage: MessagePreview{
				SentAt: t.LastActivityAt,
			},
		}
		if p, ok := profiles[otherID]; ok {
			summary.OtherParticipant.FirstName = p.FirstName
			summary.OtherParticipant.LastName = p.LastName
			summary.OtherParticipant.AvatarURL = p.AvatarURL
		}
		if t.ListingID != nil {
			summary.ListingTitle = titles[*t.ListingID]
		}
		if lm := t.LastMessage; lm != nil {
			summary.LastMessage = MessagePreview{
				ID:         lm.ID,
				Content:    lm.Content,
				SentAt:     lm.CreatedAt,
				SenderID:   lm.SenderID,
				ReceiverID: lm.ReceiverID,
			}
			summary.LastMessageIsMine = lm.SenderID == callerID
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// ListMessages returns one page of a conversation's history, oldest first.
// Reading does not mark anything read.
func (s *Service) ListMessages(ctx context.Context, callerID int64, conversationID string, page, pageSize int) ([]*message.Message, error) {
	convo, err := s.participantConversation(ctx, callerID, conversationID)
	if err != nil {
		return nil, err
	}

	limit, offset := s.window(page, pageSize)
	messages, err := s.messages.ListByConversation(ctx, convo.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// Send appends a message from the caller to the other participant.
// It is not idempotent: a retried call stores a second message.
func (s *Service) Send(ctx context.Context, callerID int64, conversationID, content string) (*message.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > s.opts.MaxContentLength {
		return nil, fmt.Errorf("%w (max %d characters)", ErrContentTooLong, s.opts.MaxContentLength)
	}

	convo, err := s.participantConversation(ctx, callerID, conversationID)
	if err != nil {
		return nil, err
	}

	msg := &message.Message{
		ConversationID: convo.ID,
		SenderID:       callerID,
		ReceiverID:     convo.OtherParticipant(callerID),
		Content:        content,
		CreatedAt:      s.opts.Now(),
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	s.log.Debug("message sent",
		zap.String("conversation_id", convo.ID),
		zap.String("message_id", msg.ID),
		zap.Int64("sender_id", msg.SenderID),
		zap.Int64("receiver_id", msg.ReceiverID),
	)

	event := Event{Type: EventMessageCreated, ConversationID: convo.ID, Message: msg}
	s.notifier.Notify(msg.ReceiverID, event)
	s.notifier.Notify(msg.SenderID, event)

	return msg, nil
}

// UnreadCount counts the messages in a conversation addressed to the caller
// that the caller has not read. Messages the caller sent never count.
func (s *Service) UnreadCount(ctx context.Context, callerID int64, conversationID string) (int, error) {
	convo, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, conversation.ErrConversationNotFound) {
			return 0, ErrConversationNotFound
		}
		return 0, fmt.Errorf("failed to get conversation: %w", err)
	}

	return s.messages.CountUnread(ctx, convo.ID, callerID)
}

// TotalUnread counts the caller's unread messages across all conversations.
func (s *Service) TotalUnread(ctx context.Context, callerID int64) (int, error) {
	return s.messages.CountUnreadTotal(ctx, callerID)
}

// MarkMessageRead marks one message read for its receiver. It returns nil
// without error when the caller is not the receiver; see readStateManager.
func (s *Service) MarkMessageRead(ctx context.Context, callerID int64, messageID string) (*message.Message, error) {
	return s.readState.markMessageRead(ctx, callerID, messageID)
}

// MarkConversationRead marks every message addressed to the caller in the
// conversation as read.
func (s *Service) MarkConversationRead(ctx context.Context, callerID int64, conversationID string) error {
	return s.readState.markConversationRead(ctx, callerID, conversationID)
}

func (s *Service) participantConversation(ctx context.Context, callerID int64, conversationID string) (*conversation.Conversation, error) {
	convo, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, conversation.ErrConversationNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if !convo.HasParticipant(callerID) {
		return nil, ErrUnauthorized
	}
	return convo, nil
}

func (s *Service) profiles(ctx context.Context, ids []int64) (map[int64]*user.Profile, error) {
	if s.directory == nil || len(ids) == 0 {
		return map[int64]*user.Profile{}, nil
	}
	profiles, err := s.directory.GetBasicProfiles(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to look up participants: %w", err)
	}
	return profiles, nil
}

func (s *Service) listingTitles(ctx context.Context, ids []int64) (map[int64]string, error) {
	if s.catalog == nil || len(ids) == 0 {
		return map[int64]string{}, nil
	}
	titles, err := s.catalog.GetTitles(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to look up listings: %w", err)
	}
	return titles, nil
}

// window turns a 1-indexed page into LIMIT/OFFSET. Pages past the
// representable range clamp to the last one, which is always empty.
func (s *Service) window(page, pageSize int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = s.opts.DefaultPageSize
	case pageSize > s.opts.MaxPageSize:
		pageSize = s.opts.MaxPageSize
	}
	maxOffset := math.MaxInt - pageSize
	if page-1 > maxOffset/pageSize {
		return pageSize, maxOffset
	}
	return pageSize, (page - 1) * pageSize
}
