package user

import (
	"context"
	"errors"
)

// Profile is the display subset of a user record.
type Profile struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

var (
	ErrUserNotFound = errors.New("user not found")
)

// Store is the read side of the user directory.
type Store interface {
	GetBasicProfile(ctx context.Context, id int64) (*Profile, error)
	// GetBasicProfiles returns the profiles that exist among ids, keyed by id.
	GetBasicProfiles(ctx context.Context, ids []int64) (map[int64]*Profile, error)
}
