package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"taskpulse/internal/app/server/ws"
	"taskpulse/internal/config"
	"taskpulse/internal/core/domain"
	"taskpulse/internal/core/services"
	"taskpulse/pkg/logging"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

type WSHandler struct {
	log       *slog.Logger
	handshake *services.HandshakeService
	cfg       config.RealtimeConfig
	upgrader  websocket.Upgrader
}

func NewWSHandler(log *slog.Logger, handshake *services.HandshakeService, cfg config.RealtimeConfig) *WSHandler {
	return &WSHandler{
		log:       log,
		handshake: handshake,
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handler upgrades the request and runs the connection until it closes.
// Credentials arrive in-band as the first frame, not on the upgrade request.
func (h *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), h.log)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade - ws upgrade failed", logging.Err(err))
		return
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	socket := ws.NewWebSocket(conn, h.cfg.WriteTimeout)
	client := ws.NewClient(socket)
	ctx, log = logging.With(ctx, log, logging.Connection(client.ID()))
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("ws.conn_id", client.ID()))

	h.handshake.Open(ctx, client)
	defer h.handshake.Closed(ctx, client)
	defer client.Close(domain.CloseClientGone)
	log.InfoContext(ctx, "ws handler - open - connection established")

	if h.cfg.AuthTimeout > 0 {
		timer := time.AfterFunc(h.cfg.AuthTimeout, func() {
			if client.CloseIfState(domain.StateAwaitingAuth, domain.CloseAuthTimeout) {
				log.WarnContext(ctx, "ws handler - auth timeout - connection closed")
			}
		})
		defer timer.Stop()
	}
	if h.cfg.HeartbeatInterval > 0 {
		go h.heartbeat(ctx, socket, client)
	}

	limit := rate.Inf
	if h.cfg.MessageRate > 0 {
		limit = rate.Limit(h.cfg.MessageRate)
	}
	limiter := rate.NewLimiter(limit, max(h.cfg.MessageBurst, 1))
	first := true
	err = socket.ReadLoop(h.cfg.ReadLimit, 2*h.cfg.HeartbeatInterval, func(data []byte) bool {
		if first {
			first = false
			return h.handshake.Authenticate(ctx, client, data)
		}
		if !limiter.Allow() {
			log.WarnContext(ctx, "ws handler - read loop - rate limited, frame dropped", logging.Identity(client.IdentityID()))
			return true
		}
		h.handshake.HandleMessage(ctx, client, data)
		return true
	})
	if err != nil {
		log.InfoContext(ctx, "ws handler - read loop - connection lost", logging.Err(err))
		return
	}
	log.InfoContext(ctx, "ws handler - close - connection closed", logging.Identity(client.IdentityID()))
}

func (h *WSHandler) heartbeat(ctx context.Context, socket *ws.WebSocket, client *ws.Client) {
	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-socket.Done():
			return
		case <-ticker.C:
			if err := socket.WritePing(); err != nil {
				client.Close(domain.CloseClientGone)
				return
			}
			h.handshake.Heartbeat(ctx, client)
		}
	}
}
