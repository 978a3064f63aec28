package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"taskpulse/internal/core/contracts"
	"taskpulse/internal/core/domain"
	"taskpulse/pkg/logging"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// NotifyPolicy decides what NotifyTeam does when no transaction is active.
type NotifyPolicy string

const (
	NotifyFire     NotifyPolicy = "fire"
	NotifySuppress NotifyPolicy = "suppress"
)

func ParseNotifyPolicy(s string) NotifyPolicy {
	if NotifyPolicy(s) == NotifySuppress {
		return NotifySuppress
	}
	return NotifyFire
}

// NotificationService binds live pushes to transaction outcome and
// completes team association for pending connections.
type NotificationService struct {
	log        *slog.Logger
	uow        contracts.UnitOfWork
	registry   contracts.Registry
	dispatcher contracts.Dispatcher
	policy     NotifyPolicy
}

func NewNotificationService(
	log *slog.Logger,
	uow contracts.UnitOfWork,
	registry contracts.Registry,
	dispatcher contracts.Dispatcher,
	policy NotifyPolicy,
) *NotificationService {
	return &NotificationService{
		log:        log,
		uow:        uow,
		registry:   registry,
		dispatcher: dispatcher,
		policy:     policy,
	}
}

// NotifyTeam schedules a team broadcast of entityType. Inside a transaction
// it fires only after commit, recomputing the payload at that moment.
func (n *NotificationService) NotifyTeam(
	ctx context.Context,
	teamID int64,
	entityType string,
	snapshot contracts.SnapshotFunc,
) {
	if teamID <= 0 || snapshot == nil {
		return
	}
	fire := func(fireCtx context.Context) {
		fireCtx, span := tracer.Start(fireCtx, "NotificationService.Fire", trace.WithAttributes(
			attribute.Int64("team_id", teamID),
			attribute.String("entity_type", entityType),
		))
		defer span.End()
		payload, err := snapshot(fireCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "snapshot failed")
			n.log.ErrorContext(fireCtx, "notifier - notify team - snapshot failed", logging.Team(teamID), logging.EntityType(entityType), logging.Err(err))
			return
		}
		if err := n.dispatcher.BroadcastToTeam(fireCtx, teamID, entityType, payload); err != nil {
			span.RecordError(err)
		}
	}
	if n.uow.RunAfterCommit(ctx, fire) {
		n.log.DebugContext(ctx, "notifier - notify team - deferred until commit", logging.Team(teamID), logging.EntityType(entityType))
		return
	}
	if n.policy == NotifySuppress {
		n.log.WarnContext(ctx, "notifier - notify team - no active transaction, suppressed", logging.Team(teamID), logging.EntityType(entityType))
		return
	}
	n.log.WarnContext(ctx, "notifier - notify team - no active transaction, firing now", logging.Team(teamID), logging.EntityType(entityType))
	fire(ctx)
}

// BroadcastAll pushes a global event to every authenticated connection right away.
func (n *NotificationService) BroadcastAll(ctx context.Context, entityType string, payload any) {
	if err := n.dispatcher.BroadcastToAll(ctx, entityType, payload); err != nil {
		n.log.ErrorContext(ctx, "notifier - broadcast all - failed", logging.EntityType(entityType), logging.Err(err))
	}
}

// AssociateWithTeam completes a connection that authenticated before its
// identity had a team. Unknown or closed identities are a no-op.
func (n *NotificationService) AssociateWithTeam(ctx context.Context, identityID, teamID int64) {
	if teamID <= 0 {
		return
	}
	conn, ok := n.registry.ResolvePending(identityID)
	if !ok {
		n.log.DebugContext(ctx, "notifier - associate - no pending connection", logging.Identity(identityID))
		return
	}
	// The pending map holds one connection per identity; other open
	// connections of the identity still without a team are bound too.
	targets := make([]contracts.Connection, 0, 1)
	if conn.IsOpen() {
		targets = append(targets, conn)
	} else {
		n.log.DebugContext(ctx, "notifier - associate - pending connection already closed", logging.Identity(identityID), logging.Connection(conn.ID()))
	}
	n.registry.Range(func(c contracts.Connection) bool {
		if c != conn && c.Authenticated() && c.IdentityID() == identityID && c.TeamID() == 0 && c.IsOpen() {
			targets = append(targets, c)
		}
		return true
	})
	data, _ := json.Marshal(domain.TeamAssociationComplete{Type: domain.TypeTeamAssociationComplete, TeamID: teamID})
	for _, c := range targets {
		c.SetTeam(teamID)
		if err := c.Send(ctx, data); err != nil {
			// Team state is already updated; the client will see it on its next message.
			n.log.WarnContext(ctx, "notifier - associate - confirmation not delivered", logging.Identity(identityID), logging.Team(teamID), logging.Connection(c.ID()), logging.Err(err))
			continue
		}
		n.log.InfoContext(ctx, "notifier - associate - team association complete", logging.Identity(identityID), logging.Team(teamID), logging.Connection(c.ID()))
	}
}

// ReleaseFromTeam unbinds every open connection of identityID after it left
// its team and parks them as pending again.
func (n *NotificationService) ReleaseFromTeam(ctx context.Context, identityID int64) {
	n.registry.Range(func(c contracts.Connection) bool {
		if c.Authenticated() && c.IdentityID() == identityID && c.IsOpen() {
			c.SetTeam(0)
			n.registry.MarkPending(identityID, c)
			n.log.InfoContext(ctx, "notifier - release - connection unbound from team", logging.Identity(identityID), logging.Connection(c.ID()))
		}
		return true
	})
}
