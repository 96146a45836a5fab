package messaging

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the service that is not a storage
// failure wraps exactly one of these, so transports can branch with errors.Is.
var (
	ErrValidation   = errors.New("invalid request")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("not a participant of this conversation")
)

var (
	ErrMissingParticipant = fmt.Errorf("%w: other participant is required", ErrValidation)
	ErrSelfConversation   = fmt.Errorf("%w: cannot open a conversation with yourself", ErrValidation)
	ErrInvalidListing     = fmt.Errorf("%w: listing id must be positive", ErrValidation)
	ErrEmptyContent       = fmt.Errorf("%w: message content is empty", ErrValidation)
	ErrContentTooLong     = fmt.Errorf("%w: message content is too long", ErrValidation)

	ErrConversationNotFound = fmt.Errorf("conversation %w", ErrNotFound)
	ErrMessageNotFound      = fmt.Errorf("message %w", ErrNotFound)
)
