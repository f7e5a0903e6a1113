// Package main - entry point for the FleetCheck Engage Hub service.
//
// Engage Hub decides when the fleet web app should surface a popup: feedback
// surveys, plan upgrade prompts, onboarding nudges. Frontends report sessions
// and triggers over the REST API; the engine evaluates the rule catalog
// against per-account usage signals and exposes a single popup slot per
// session.
//
// The layout follows Clean Architecture:
// - Domain: rule catalog, evaluator, state machine - no external dependencies
// - Application: per-session engines behind the session manager
// - Infrastructure: PostgreSQL aggregation, Redis caches, trigger bus
// - Interface: HTTP endpoints
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fleetcheck/engage-hub/config"

	// Domain & application layers
	appengagement "github.com/fleetcheck/engage-hub/internal/application/engagement"
	"github.com/fleetcheck/engage-hub/internal/domain/engagement"
	"github.com/fleetcheck/engage-hub/internal/domain/rule"
	"github.com/fleetcheck/engage-hub/internal/domain/shared"

	// Infrastructure layer
	"github.com/fleetcheck/engage-hub/internal/infrastructure/persistence/postgres"
	"github.com/fleetcheck/engage-hub/internal/infrastructure/persistence/redis"
	"github.com/fleetcheck/engage-hub/internal/infrastructure/service"

	// Interface layer
	httpserver "github.com/fleetcheck/engage-hub/internal/interface/http"
	"github.com/fleetcheck/engage-hub/internal/interface/http/handlers"

	// Packages
	"github.com/fleetcheck/engage-hub/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting FleetCheck Engage Hub",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}

	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. MIGRATIONS
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.MigrateOnStart {
		log.Info("running database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("migrations completed")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var visitTracker *redis.VisitTracker
	var snapshotCache *redis.SnapshotCache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCache, err = connectRedis(cfg)
		if err != nil {
			// Degraded mode: every evaluation reads the database and the
			// visits signal is absent.
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
		} else {
			defer redisCache.Close()
			visitTracker = redis.NewVisitTracker(redisCache)
			snapshotCache = redis.NewSnapshotCache(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. REPOSITORIES & SIGNAL STORE
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing signal store...")
	signalRepo := postgres.NewSignalRepository(dbConn)
	displayRepo := postgres.NewDisplayRepository(dbConn)

	signalStore, err := service.NewCompositeSignalStore(service.CompositeSignalStoreConfig{
		Aggregator: signalRepo,
		Displays:   displayRepo,
		Visits:     visitTracker,
		Snapshots:  snapshotCache,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("failed to build signal store: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. RULE CATALOG
	// ─────────────────────────────────────────────────────────────────────────
	var catalog *rule.Catalog
	if cfg.Catalog.Path != "" {
		log.Info("loading rule catalog", "path", cfg.Catalog.Path)
		catalog, err = rule.LoadFile(cfg.Catalog.Path, log)
	} else {
		log.Info("using built-in rule catalog")
		catalog, err = rule.DefaultCatalog(log)
	}
	if err != nil {
		return fmt.Errorf("failed to load rule catalog: %w", err)
	}
	log.Info("rule catalog loaded", "rules", catalog.Len())

	// ─────────────────────────────────────────────────────────────────────────
	// 8. SESSION MANAGER
	// ─────────────────────────────────────────────────────────────────────────
	var visits engagement.VisitTracker
	if visitTracker != nil {
		visits = visitTracker
	}

	manager, err := appengagement.NewManager(appengagement.ManagerConfig{
		Catalog:     catalog,
		Store:       signalStore,
		Visits:      visits,
		Logger:      log,
		EvalTimeout: cfg.Engine.EvalTimeout,
		SessionTTL:  cfg.Engine.SessionTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	// Session reaper; exits when the root context is canceled.
	go func() {
		ticker := time.NewTicker(cfg.Engine.ReapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if reaped := manager.ReapExpired(); reaped > 0 {
					log.Info("reaped expired sessions", "count", reaped)
				}
			}
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 9. AUTHENTICATION
	// ─────────────────────────────────────────────────────────────────────────
	var auth httpserver.Authenticator
	if len(cfg.Auth.Keys) > 0 {
		keys := make([]service.APIKey, 0, len(cfg.Auth.Keys))
		for _, k := range cfg.Auth.Keys {
			role := shared.Role(k.Role)
			if !role.IsValid() {
				return fmt.Errorf("API key %q has unknown role %q", k.ID, k.Role)
			}
			keys = append(keys, service.APIKey{
				ID:         k.ID,
				SecretHash: k.SecretHash,
				Role:       role,
			})
		}
		keyAuth, err := service.NewKeyAuthenticator(keys)
		if err != nil {
			return fmt.Errorf("failed to build authenticator: %w", err)
		}
		auth = keyAuth
		log.Info("API key authentication enabled", "keys", len(keys))
	} else {
		log.Warn("API key authentication disabled - development mode only")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	if redisCache != nil {
		healthChecker.AddCheck("cache", handlers.NewCacheCheck(redisCache))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server...")

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.EnableCORS = cfg.HTTP.EnableCORS
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpConfig.APIKeyHeader = cfg.HTTP.APIKeyHeader

	httpServer := httpserver.NewServer(httpConfig, httpserver.Dependencies{
		Manager:       manager,
		Feedback:      displayRepo,
		Auth:          auth,
		Logger:        logger.Default(),
		HealthChecker: healthChecker,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 12. START & GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "address", httpServer.Address())
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	log.Info("FleetCheck Engage Hub is running", "http_address", httpServer.Address())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		log.Error("service error", "error", err)
		return err
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error

	// 1. Stop accepting requests
	log.Info("stopping HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		shutdownErr = err
	}

	// 2. Close all sessions and their trigger buses
	log.Info("closing sessions...")
	manager.Shutdown()

	// 3. Database and Redis close via defer; the reaper exits with the
	//    root context.

	if shutdownErr != nil {
		log.Warn("shutdown completed with errors")
	} else {
		log.Info("shutdown completed successfully")
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger configures structured logging per environment.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Observability.LogLevel),
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" || cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// connectRedis builds the cache from URL or discrete settings.
func connectRedis(cfg *config.Config) (*redis.Cache, error) {
	if cfg.Redis.URL != "" {
		return redis.NewCacheFromURL(cfg.Redis.URL)
	}

	redisCfg := redis.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout
	return redis.NewCache(redisCfg)
}
