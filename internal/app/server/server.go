package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"taskpulse/internal/app/server/handlers"
	"taskpulse/internal/config"
	"taskpulse/internal/core/contracts"
	"taskpulse/internal/core/domain"
	"taskpulse/internal/core/services"
	"taskpulse/pkg/middleware"
	"time"
)

// Services groups what the HTTP surface calls into.
type Services struct {
	Users     *services.UserService
	Tokens    *services.TokenService
	Tasks     *services.TaskService
	Teams     *services.TeamService
	Handshake *services.HandshakeService
}

type Server struct {
	log         *slog.Logger
	name        string
	httpServer  *http.Server
	mux         *http.ServeMux
	registry    contracts.Registry
	tokenSvc    *services.TokenService
	loginLimits *middleware.LimiterStore

	authHandler   *handlers.AuthHandler
	taskHandler   *handlers.TaskHandler
	teamHandler   *handlers.TeamHandler
	healthHandler *handlers.HealthHandler
	wsHandler     *handlers.WSHandler
}

func NewServer(log *slog.Logger, cfg config.Config, registry contracts.Registry, svc Services) *Server {
	s := &Server{
		log:           log,
		name:          cfg.Service.Name,
		mux:           http.NewServeMux(),
		registry:      registry,
		tokenSvc:      svc.Tokens,
		loginLimits:   middleware.NewLimiterStore(cfg.Auth.LoginRate, cfg.Auth.LoginBurst, 10*time.Minute),
		authHandler:   handlers.NewAuthHandler(log, svc.Users, svc.Tokens),
		taskHandler:   handlers.NewTaskHandler(log, svc.Tasks),
		teamHandler:   handlers.NewTeamHandler(log, svc.Teams),
		healthHandler: handlers.NewHealthHandler(registry),
		wsHandler:     handlers.NewWSHandler(log, svc.Handshake, *cfg.Realtime),
	}
	s.routes()
	s.httpServer = &http.Server{
		Addr:              cfg.Service.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	auth := middleware.AuthMiddleware(s.tokenSvc)
	loginLimit := middleware.RateLimit(s.loginLimits)
	protect := func(h http.HandlerFunc) http.Handler { return auth(h) }

	// Public routes
	s.mux.HandleFunc("GET /health", s.healthHandler.Health)
	s.mux.HandleFunc("GET /stats", s.healthHandler.Stats)
	s.mux.HandleFunc("POST /auth/register", s.authHandler.Register)
	s.mux.Handle("POST /auth/login", loginLimit(http.HandlerFunc(s.authHandler.Login)))
	// The websocket authenticates in-band with its first frame.
	s.mux.HandleFunc("GET /ws", s.wsHandler.Handler)

	// Protected routes
	s.mux.Handle("GET /tasks", protect(s.taskHandler.List))
	s.mux.Handle("POST /tasks", protect(s.taskHandler.Create))
	s.mux.Handle("PUT /tasks/{id}", protect(s.taskHandler.Update))
	s.mux.Handle("DELETE /tasks/{id}", protect(s.taskHandler.Delete))
	s.mux.Handle("GET /teams", protect(s.teamHandler.List))
	s.mux.Handle("POST /teams", protect(s.teamHandler.Create))
	s.mux.Handle("POST /teams/join", protect(s.teamHandler.Join))
	s.mux.Handle("POST /teams/leave", protect(s.teamHandler.Leave))
	s.mux.Handle("PUT /teams/{id}", protect(s.teamHandler.Rename))
	s.mux.Handle("GET /teams/{id}/members", protect(s.teamHandler.Members))
}

// Handler returns the routed mux wrapped in the logging and tracing middleware.
func (s *Server) Handler() http.Handler {
	return middleware.TracerMiddleware(s.name)(middleware.RequestLogger(s.log)(s.mux))
}

// Start serves until Shutdown is called. It returns nil on a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	go s.loginLimits.RunJanitor(ctx, time.Minute)
	s.log.Info("server - start - listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes every live websocket with
// a going-away frame. Hijacked connections are not tracked by http.Server.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	closed := 0
	s.registry.Range(func(c contracts.Connection) bool {
		c.Close(domain.CloseShutdown)
		closed++
		return true
	})
	s.log.Info("server - shutdown - websocket connections closed", "count", closed)
	return err
}
