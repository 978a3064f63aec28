package contracts

import (
	"context"
	"taskpulse/internal/core/domain"
)

// Connection is a single client channel plus its auth attributes.
// Send is serialized per connection; different connections may be written concurrently.
type Connection interface {
	ID() string
	IsOpen() bool
	Send(ctx context.Context, data []byte) error
	// Close sends a close frame with the reason and releases the transport. Idempotent.
	Close(reason domain.CloseReason)

	State() domain.ConnState
	// BeginAuth moves CONNECTED to AWAITING_AUTH.
	BeginAuth() bool
	// MarkAuthenticated sets identity and team (zero for none) in one step.
	MarkAuthenticated(identityID, teamID int64)
	SetTeam(teamID int64)
	Authenticated() bool
	IdentityID() int64
	TeamID() int64
}

// Registry owns the set of open connections and the identities still waiting for a team.
type Registry interface {
	Add(c Connection)
	// Remove drops c from the active set and from the pending map. Safe to repeat.
	Remove(c Connection)
	// MarkPending records c as waiting for a team; last write wins per identity.
	MarkPending(identityID int64, c Connection)
	// ResolvePending atomically takes the pending entry for identityID.
	ResolvePending(identityID int64) (Connection, bool)
	// Pending peeks at the pending entry without taking it.
	Pending(identityID int64) (Connection, bool)
	// Range iterates a point-in-time view; fn returning false stops.
	Range(fn func(c Connection) bool)
	Len() int
	PendingLen() int
}

// Dispatcher serializes an envelope once and fans it out.
type Dispatcher interface {
	BroadcastToAll(ctx context.Context, entityType string, payload any) error
	BroadcastToTeam(ctx context.Context, teamID int64, entityType string, payload any) error
	SendTo(ctx context.Context, c Connection, entityType string, payload any) error
}
