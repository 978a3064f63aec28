package contracts

import (
	"context"
	"time"
)

// PresenceStore tracks which identities hold a live, authenticated connection.
type PresenceStore interface {
	// MarkOnline refreshes the identity's online mark for ttl.
	MarkOnline(ctx context.Context, identityID int64, ttl time.Duration) error
	MarkOffline(ctx context.Context, identityID int64) error
	// OnlineAmong reports which of ids are currently online.
	OnlineAmong(ctx context.Context, ids []int64) (map[int64]bool, error)
}
