package contracts

import (
	"context"
	"taskpulse/internal/core/domain"
)

// IdentityProvider resolves bearer credentials.
type IdentityProvider interface {
	ValidateToken(ctx context.Context, token string) (bool, error)
	// IdentityFromToken returns nil with no error when a valid token maps to no identity.
	IdentityFromToken(ctx context.Context, token string) (*domain.Identity, error)
}

// TeamDirectory answers team membership questions.
type TeamDirectory interface {
	TeamOf(ctx context.Context, identityID int64) (teamID int64, found bool, err error)
	CurrentMembers(ctx context.Context, teamID int64) ([]domain.Member, error)
}

// SnapshotSource recomputes the authoritative payload for an entity type.
type SnapshotSource interface {
	CurrentEntitiesForTeam(ctx context.Context, teamID int64, entityType string) (any, error)
}

// SnapshotFunc recomputes a notification payload at fire time.
type SnapshotFunc func(ctx context.Context) (any, error)

// UnitOfWork scopes a database transaction and its commit callbacks.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// RunAfterCommit registers fn on the transaction active in ctx. It reports
	// false when there is none; fn is then not registered.
	RunAfterCommit(ctx context.Context, fn func(ctx context.Context)) bool
}

// Notifier is what mutation code uses to reach connected clients.
type Notifier interface {
	NotifyTeam(ctx context.Context, teamID int64, entityType string, snapshot SnapshotFunc)
	BroadcastAll(ctx context.Context, entityType string, payload any)
	AssociateWithTeam(ctx context.Context, identityID, teamID int64)
	ReleaseFromTeam(ctx context.Context, identityID int64)
}
