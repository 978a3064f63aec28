package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"taskpulse/internal/app/dispatch"
	"taskpulse/internal/app/registry"
	"taskpulse/internal/app/server"
	"taskpulse/internal/config"
	"taskpulse/internal/core/services"
	"taskpulse/internal/platform/logger"
	"taskpulse/internal/platform/telemetry"
	"taskpulse/internal/plugins/postgres"
	redisPlugin "taskpulse/internal/plugins/redis"
	"taskpulse/pkg/logging"
	"time"
)

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting application")

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", logging.Err(err))
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", logging.Err(err))
		}
	}()

	// Infra
	pdb, err := postgres.New(ctx, cfg.Service.Name, *cfg.Postgres)
	if err != nil {
		log.Error("postgres connection failed", logging.Err(err))
		return
	}
	defer pdb.Close()
	log.Info("postgres connected")
	if cfg.Postgres.AutoMigrate {
		if err := postgres.Migrate(pdb); err != nil {
			log.Error("postgres migration failed", logging.Err(err))
			return
		}
		log.Info("postgres migrated")
	}
	rdb, err := redisPlugin.NewRedisClient(ctx, cfg.Service.Name, *cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "url", cfg.Redis.URL, logging.Err(err))
		return
	}
	defer rdb.Close()
	log.Info("redis connected")

	// Adapters
	userRepo := postgres.NewUserRepository(pdb)
	teamRepo := postgres.NewTeamRepo(pdb)
	taskRepo := postgres.NewTaskRepo(pdb)
	presStore := redisPlugin.NewRedisPresenceStore(rdb)
	txManager := postgres.NewTxManager(log, pdb)

	// Realtime core
	hub := registry.NewRegistry()
	dispatcher := dispatch.NewDispatcher(log, hub)
	notifier := services.NewNotificationService(log, txManager, hub, dispatcher, services.ParseNotifyPolicy(cfg.Realtime.NotifyWithoutTx))

	// Core Services
	tokenSvc := services.NewTokenService(log, *cfg.Auth)
	userSvc := services.NewUserService(log, userRepo)
	identitySvc := services.NewIdentityService(log, tokenSvc, userRepo)
	snapshotSvc := services.NewSnapshotService(log, userRepo, teamRepo, taskRepo, presStore)
	teamSvc := services.NewTeamService(log, userRepo, teamRepo, snapshotSvc, notifier, txManager)
	taskSvc := services.NewTaskService(log, userRepo, taskRepo, snapshotSvc, notifier, txManager)
	presenceTTL := 2 * cfg.Realtime.HeartbeatInterval
	if presenceTTL <= 0 {
		presenceTTL = time.Minute
	}
	handshakeSvc := services.NewHandshakeService(log, hub, identitySvc, teamSvc, snapshotSvc, dispatcher, notifier, presStore, presenceTTL)

	// Server
	srv := server.NewServer(log, *cfg, hub, server.Services{
		Users:     userSvc,
		Tokens:    tokenSvc,
		Tasks:     taskSvc,
		Teams:     teamSvc,
		Handshake: handshakeSvc,
	})
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error("server failed", logging.Err(err))
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", logging.Err(err))
	}
	log.Info("application stopped")
}
