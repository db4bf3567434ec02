// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/mangashelf/internal/api"
	"github.com/tomtom215/mangashelf/internal/audit"
	"github.com/tomtom215/mangashelf/internal/auth"
	"github.com/tomtom215/mangashelf/internal/authz"
	"github.com/tomtom215/mangashelf/internal/config"
	"github.com/tomtom215/mangashelf/internal/database"
	"github.com/tomtom215/mangashelf/internal/events"
	"github.com/tomtom215/mangashelf/internal/logging"
	"github.com/tomtom215/mangashelf/internal/moderation"
	"github.com/tomtom215/mangashelf/internal/notification"
	"github.com/tomtom215/mangashelf/internal/storage"
	"github.com/tomtom215/mangashelf/internal/subscription"
	"github.com/tomtom215/mangashelf/internal/supervisor"
	"github.com/tomtom215/mangashelf/internal/supervisor/services"
	ws "github.com/tomtom215/mangashelf/internal/websocket"
)

// cacheJanitorInterval is how often expired catalog cache entries are swept.
const cacheJanitorInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("version", api.Version).
		Str("db_path", cfg.Database.Path).
		Str("storage", cfg.Storage.Backend).
		Str("events", cfg.Events.Backend).
		Msg("Starting Mangashelf")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server failed")
	}
	logging.Info().Msg("Application stopped gracefully")
}

// run wires every component, serves until SIGINT or SIGTERM, then releases
// resources in reverse order.
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	store, err := storage.New(ctx, &cfg.Storage)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}

	auditLog, err := newAuditLogger(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer func() { _ = auditLog.Close() }()

	enforcer, err := authz.NewEnforcer(&cfg.Security.Casbin)
	if err != nil {
		return fmt.Errorf("initialize authorization: %w", err)
	}

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return fmt.Errorf("initialize jwt: %w", err)
	}
	accounts := auth.NewAccounts(db, jwtManager, cfg.Security.BcryptCost)
	created, err := accounts.EnsureAdmin(ctx, &cfg.Security)
	if err != nil {
		return fmt.Errorf("seed admin account: %w", err)
	}
	if created {
		logging.Info().Str("username", cfg.Security.AdminUsername).Msg("Created initial admin account")
	}

	bus, err := events.New(ctx, &cfg.Events)
	if err != nil {
		return fmt.Errorf("initialize event bus: %w", err)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	hub := ws.NewHub()
	notifications := notification.NewService(db, hub)
	eventRouter, err := events.NewRouter(bus.Subscriber(), events.DefaultRouterConfig())
	if err != nil {
		return fmt.Errorf("initialize event router: %w", err)
	}
	notifications.Register(eventRouter)

	plans := subscription.PlansFromConfig(cfg.Subscription.Plans)
	handler := api.NewHandler(api.Dependencies{
		Config:        cfg,
		DB:            db,
		Store:         store,
		Accounts:      accounts,
		Enforcer:      enforcer,
		Subscriptions: subscription.NewService(db, plans, bus, auditLog),
		Moderation:    moderation.NewService(db, enforcer, bus, auditLog),
		Notifications: notifications,
		Publisher:     bus,
		Hub:           hub,
		Audit:         auditLog,
	})
	router := api.NewRouter(handler, api.NewAuthMiddleware(jwtManager, db))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})

	tree.AddDataService(services.NewRunnerService("catalog-cache-janitor", cacheJanitor{handler}))
	if cfg.Audit.Enabled {
		tree.AddDataService(services.NewPeriodicService("audit-prune", cfg.Audit.PruneInterval, true,
			func(ctx context.Context) error {
				n, err := auditLog.Prune(ctx, time.Now())
				if err == nil && n > 0 {
					logging.Info().Int64("deleted", n).Msg("Pruned audit events")
				}
				return err
			}))
	}

	tree.AddMessagingService(services.NewHubService(hub))
	tree.AddMessagingService(services.NewRunnerService("event-router", eventRouter))
	if cfg.Subscription.Enabled {
		scheduler := subscription.NewScheduler(db, bus, &cfg.Subscription)
		tree.AddMessagingService(services.NewStartStopService("subscription-scheduler", scheduler))
	}

	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	for err := range tree.ServeBackground(ctx) {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return nil
}

// newAuditLogger persists audit events to DuckDB.
func newAuditLogger(ctx context.Context, cfg *config.Config, db *database.DB) (*audit.Logger, error) {
	store := audit.NewDuckDBStore(db.Conn())
	if err := store.CreateTable(ctx); err != nil {
		return nil, fmt.Errorf("initialize audit store: %w", err)
	}
	return audit.NewLogger(store, &audit.Config{
		Enabled:       cfg.Audit.Enabled,
		RetentionDays: cfg.Audit.RetentionDays,
		BufferSize:    1000,
		LogToStdout:   !cfg.Server.IsProduction(),
	}), nil
}

// cacheJanitor adapts the catalog cache's sweep loop to services.Runner.
type cacheJanitor struct {
	handler *api.Handler
}

func (c cacheJanitor) Serve(ctx context.Context) error {
	c.handler.Cache().Run(ctx, cacheJanitorInterval)
	return ctx.Err()
}
