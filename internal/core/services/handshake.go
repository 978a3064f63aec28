package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"taskpulse/internal/core/contracts"
	"taskpulse/internal/core/domain"
	"taskpulse/pkg/logging"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HandshakeService runs the in-band authentication every connection must
// complete before it is eligible for notifications.
type HandshakeService struct {
	log         *slog.Logger
	registry    contracts.Registry
	identity    contracts.IdentityProvider
	teams       contracts.TeamDirectory
	snapshots   contracts.SnapshotSource
	dispatcher  contracts.Dispatcher
	notifier    contracts.Notifier
	presence    contracts.PresenceStore
	presenceTTL time.Duration
}

func NewHandshakeService(
	log *slog.Logger,
	registry contracts.Registry,
	identity contracts.IdentityProvider,
	teams contracts.TeamDirectory,
	snapshots contracts.SnapshotSource,
	dispatcher contracts.Dispatcher,
	notifier contracts.Notifier,
	presence contracts.PresenceStore,
	presenceTTL time.Duration,
) *HandshakeService {
	return &HandshakeService{
		log:         log,
		registry:    registry,
		identity:    identity,
		teams:       teams,
		snapshots:   snapshots,
		dispatcher:  dispatcher,
		notifier:    notifier,
		presence:    presence,
		presenceTTL: presenceTTL,
	}
}

// Open registers a fresh connection and moves it to AWAITING_AUTH.
func (h *HandshakeService) Open(ctx context.Context, conn contracts.Connection) {
	h.registry.Add(conn)
	conn.BeginAuth()
	h.log.DebugContext(ctx, "handshake - open - awaiting auth", logging.Connection(conn.ID()))
}

// Closed forgets a connection. Must run on every close path.
func (h *HandshakeService) Closed(ctx context.Context, conn contracts.Connection) {
	h.registry.Remove(conn)
	if !conn.Authenticated() {
		return
	}
	identityID := conn.IdentityID()
	stillOnline := false
	var unbound contracts.Connection
	h.registry.Range(func(c contracts.Connection) bool {
		if c.IdentityID() != identityID || !c.IsOpen() {
			return true
		}
		stillOnline = true
		if unbound == nil && c.Authenticated() && c.TeamID() == 0 {
			unbound = c
		}
		return true
	})
	if unbound != nil {
		if _, ok := h.registry.Pending(identityID); !ok {
			h.registry.MarkPending(identityID, unbound)
			h.log.DebugContext(ctx, "handshake - closed - sibling connection parked as pending", logging.Identity(identityID), logging.Connection(unbound.ID()))
		}
	}
	if stillOnline || h.presence == nil {
		return
	}
	if err := h.presence.MarkOffline(ctx, identityID); err != nil {
		h.log.WarnContext(ctx, "handshake - closed - mark offline failed", logging.Identity(identityID), logging.Err(err))
	}
}

// Authenticate processes the first inbound frame. It returns true when the
// connection reached AUTHENTICATED; otherwise the connection is closed.
func (h *HandshakeService) Authenticate(ctx context.Context, conn contracts.Connection, data []byte) (ok bool) {
	ctx, span := tracer.Start(ctx, "HandshakeService.Authenticate", trace.WithAttributes(
		attribute.String("conn_id", conn.ID()),
	))
	defer span.End()
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("panic: %v", p)
			span.RecordError(err)
			h.log.ErrorContext(ctx, "handshake - authenticate - unexpected failure", logging.Connection(conn.ID()), logging.Err(err))
			h.reject(ctx, conn, domain.CloseAuthError)
			ok = false
		}
	}()

	token, err := domain.ParseAuthMessage(data)
	if err != nil {
		span.SetStatus(codes.Error, "protocol violation")
		h.log.WarnContext(ctx, "handshake - authenticate - protocol violation", logging.Connection(conn.ID()), logging.Err(err))
		h.reject(ctx, conn, domain.CloseReasonFor(err))
		return false
	}
	valid, err := h.identity.ValidateToken(ctx, token)
	if err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "handshake - authenticate - validate token failed", logging.Connection(conn.ID()), logging.Err(err))
		h.reject(ctx, conn, domain.CloseAuthError)
		return false
	}
	if !valid {
		span.SetStatus(codes.Error, "credential rejected")
		h.log.WarnContext(ctx, "handshake - authenticate - credential rejected", logging.Connection(conn.ID()))
		h.reject(ctx, conn, domain.CloseInvalidToken)
		return false
	}
	ident, err := h.identity.IdentityFromToken(ctx, token)
	if err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "handshake - authenticate - resolve identity failed", logging.Connection(conn.ID()), logging.Err(err))
		h.reject(ctx, conn, domain.CloseAuthError)
		return false
	}
	if ident == nil {
		span.SetStatus(codes.Error, "identity inconsistency")
		h.log.ErrorContext(ctx, "handshake - authenticate - valid token without identity", logging.Connection(conn.ID()))
		h.reject(ctx, conn, domain.CloseAuthInconsistency)
		return false
	}
	teamID, found, err := h.teams.TeamOf(ctx, ident.ID)
	if err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "handshake - authenticate - team lookup failed", logging.Identity(ident.ID), logging.Err(err))
		h.reject(ctx, conn, domain.CloseAuthError)
		return false
	}
	if !found {
		teamID = 0
	}
	span.SetAttributes(attribute.Int64("identity_id", ident.ID), attribute.Int64("team_id", teamID))

	// Broadcasts select on the authenticated flag, so it is published only
	// once auth_success is on the wire.
	ack, _ := json.Marshal(domain.AuthSuccess{Type: domain.TypeAuthSuccess, TeamID: teamID})
	if err := conn.Send(ctx, ack); err != nil {
		h.log.WarnContext(ctx, "handshake - authenticate - auth_success not delivered", logging.Identity(ident.ID), logging.Err(err))
		h.reject(ctx, conn, domain.CloseClientGone)
		return false
	}
	conn.MarkAuthenticated(ident.ID, teamID)
	h.markOnline(ctx, ident.ID)

	if teamID > 0 {
		h.log.InfoContext(ctx, "handshake - authenticate - authenticated with team", logging.Identity(ident.ID), logging.Team(teamID), logging.Connection(conn.ID()))
		h.pushSnapshot(ctx, conn, teamID)
		return true
	}
	h.registry.MarkPending(ident.ID, conn)
	h.log.InfoContext(ctx, "handshake - authenticate - authenticated, team pending", logging.Identity(ident.ID), logging.Connection(conn.ID()))
	// The team may have been assigned while we were registering.
	if teamID, found, err := h.teams.TeamOf(ctx, ident.ID); err == nil && found {
		h.notifier.AssociateWithTeam(ctx, ident.ID, teamID)
	}
	return true
}

// HandleMessage accepts frames after the handshake. They carry no protocol
// meaning yet and are only logged.
func (h *HandshakeService) HandleMessage(ctx context.Context, conn contracts.Connection, data []byte) {
	h.log.DebugContext(ctx, "handshake - handle message - ignored post-auth frame",
		logging.Connection(conn.ID()), logging.Identity(conn.IdentityID()), "size", len(data))
}

// Heartbeat refreshes the presence mark of an authenticated connection.
func (h *HandshakeService) Heartbeat(ctx context.Context, conn contracts.Connection) {
	if conn.Authenticated() && conn.IsOpen() {
		h.markOnline(ctx, conn.IdentityID())
	}
}

// pushSnapshot sends the team's current entities to conn only.
func (h *HandshakeService) pushSnapshot(ctx context.Context, conn contracts.Connection, teamID int64) {
	for _, entityType := range domain.TeamSnapshotTypes {
		payload, err := h.snapshots.CurrentEntitiesForTeam(ctx, teamID, entityType)
		if err != nil {
			h.log.ErrorContext(ctx, "handshake - snapshot push - load failed", logging.Team(teamID), logging.EntityType(entityType), logging.Err(err))
			continue
		}
		if err := h.dispatcher.SendTo(ctx, conn, entityType, payload); err != nil {
			h.log.WarnContext(ctx, "handshake - snapshot push - send failed", logging.Connection(conn.ID()), logging.EntityType(entityType), logging.Err(err))
			return
		}
	}
}

func (h *HandshakeService) markOnline(ctx context.Context, identityID int64) {
	if h.presence == nil {
		return
	}
	if err := h.presence.MarkOnline(ctx, identityID, h.presenceTTL); err != nil {
		h.log.WarnContext(ctx, "handshake - presence - mark online failed", logging.Identity(identityID), logging.Err(err))
	}
}

func (h *HandshakeService) reject(ctx context.Context, conn contracts.Connection, reason domain.CloseReason) {
	conn.Close(reason)
	h.registry.Remove(conn)
	h.log.InfoContext(ctx, "handshake - reject - connection closed", logging.Connection(conn.ID()), "code", reason.Code, "reason", reason.Text)
}
