package listing

import "context"

// Store is the read side of the listing catalog. Titles are display data only.
type Store interface {
	// GetTitles returns the titles of the listings that exist among ids, keyed by id.
	GetTitles(ctx context.Context, ids []int64) (map[int64]string, error)
}
