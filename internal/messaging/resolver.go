package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nexus-im/estatechat/store/conversation"
)

// resolver maps (caller, other, listing) to the single conversation for that
// canonical key, creating it on first use.
type resolver struct {
	store conversation.Store
	now   func() time.Time
	log   *zap.Logger
}

// resolve returns the conversation and whether this call created it.
// Concurrent callers racing on the same key all end up with the row that won
// the insert; the unique index decides, not a lock.
func (r *resolver) resolve(ctx context.Context, callerID, otherID int64, listingID *int64) (*conversation.Conversation, bool, error) {
	if otherID <= 0 {
		return nil, false, ErrMissingParticipant
	}
	if otherID == callerID {
		return nil, false, ErrSelfConversation
	}
	if listingID != nil && *listingID <= 0 {
		return nil, false, ErrInvalidListing
	}

	key := conversation.CanonicalKey(callerID, otherID, listingID)

	existing, err := r.store.GetByKey(ctx, key)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, conversation.ErrConversationNotFound) {
		return nil, false, fmt.Errorf("failed to look up conversation: %w", err)
	}

	now := r.now()
	convo := &conversation.Conversation{
		ParticipantA:   callerID,
		ParticipantB:   otherID,
		ListingID:      listingID,
		CreatedAt:      now,
		LastActivityAt: now,
	}

	err = r.store.Create(ctx, convo)
	if errors.Is(err, conversation.ErrConversationExists) {
		winner, err := r.store.GetByKey(ctx, key)
		if err != nil {
			return nil, false, fmt.Errorf("failed to fetch concurrently created conversation: %w", err)
		}
		r.log.Debug("conversation created concurrently, using existing row",
			zap.String("conversation_id", winner.ID),
			zap.Int64("caller_id", callerID),
		)
		return winner, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create conversation: %w", err)
	}

	r.log.Info("conversation created",
		zap.String("conversation_id", convo.ID),
		zap.Int64("participant_a", convo.ParticipantA),
		zap.Int64("participant_b", convo.ParticipantB),
		listingField(convo.ListingID),
	)
	return convo, true, nil
}

func listingField(listingID *int64) zap.Field {
	if listingID == nil {
		return zap.Skip()
	}
	return zap.Int64("listing_id", *listingID)
}
