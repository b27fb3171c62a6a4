package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"pushnami/api/config"
	"pushnami/api/database"
	"pushnami/api/handlers"
	"pushnami/api/logger"
	"pushnami/api/server"
	"pushnami/api/services"
	"pushnami/api/store"
	"pushnami/api/telemetry"
)

// backends holds the stores chosen by STORE_DRIVER and EVENT_STORE.
type backends struct {
	experiments services.ExperimentStore
	assignments services.AssignmentStore
	toggles     services.ToggleStore
	admins      services.AdminStore
	events      services.EventStore
	cache       services.AssignmentCache
	checks      map[string]handlers.Pinger
	closers     []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg *config.Config, log *logger.Logger) (*backends, error) {
	b := &backends{checks: map[string]handlers.Pinger{}}

	if cfg.StoreDriver == "memory" {
		mem := store.NewMemoryStore()
		b.experiments, b.assignments, b.toggles, b.admins, b.events = mem, mem, mem, mem, mem
		log.Warn("Using in-memory store; data is lost on restart")
	} else {
		dbClient, err := database.NewPostgresDB(cfg, log)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, dbClient.Close)
		b.checks["postgres"] = dbClient.DB

		if cfg.AutoMigrate {
			if _, err := database.MigrateUp(ctx, dbClient.DB, log); err != nil {
				b.close()
				return nil, err
			}
		}
		b.experiments = store.NewExperimentStore(dbClient.DB)
		b.assignments = store.NewAssignmentStore(dbClient.DB)
		b.toggles = store.NewToggleStore(dbClient.DB)
		b.admins = store.NewAdminStore(dbClient.DB)
		b.events = store.NewEventStore(dbClient.DB)
	}

	if cfg.EventStore == "clickhouse" {
		chClient, err := database.NewClickHouseDB(cfg.ClickHouse, log)
		if err != nil {
			b.close()
			return nil, err
		}
		b.closers = append(b.closers, chClient.Close)
		if err := chClient.EnsureEventsTable(ctx); err != nil {
			b.close()
			return nil, err
		}
		b.checks["clickhouse"] = handlers.PingFunc(chClient.Conn.Ping)
		b.events = store.NewClickHouseEventStore(chClient)
	}

	if cfg.RedisAddr != "" {
		rdb, err := database.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, log)
		if err != nil {
			b.close()
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = rdb.Close() })
		b.checks["redis"] = handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		b.cache = store.NewRedisAssignmentCache(rdb, cfg.AssignmentCacheTTL)
	}
	return b, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()
	shutdownTracing := telemetry.Init(ctx, log, telemetry.Config{
		Enabled:     cfg.OtelEnabled,
		Endpoint:    cfg.OtelEndpoint,
		Insecure:    cfg.OtelInsecure,
		SampleRatio: cfg.OtelSampleRatio,
		Environment: cfg.AppEnv,
	})

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize storage", "error", err)
	}
	defer b.close()

	toggles := services.NewToggles(b.toggles, log)
	seedCtx, cancelSeed := context.WithTimeout(ctx, 10*time.Second)
	if _, err := toggles.Seed(seedCtx, services.DefaultToggles); err != nil {
		log.Warn("Failed to seed default toggles", "error", err)
	}
	cancelSeed()

	svc := server.Services{
		Registry:   services.NewRegistry(b.experiments, b.cache, log),
		Resolver:   services.NewResolver(b.experiments, b.assignments, b.cache, log),
		Toggles:    toggles,
		Ingestor:   services.NewIngestor(b.events, log),
		Aggregator: services.NewAggregator(b.events, b.experiments, log),
		Auth:       services.NewAuth(b.admins, cfg.JWTSecret, cfg.JWTTTL, log),
	}
	if !cfg.AuthEnabled() {
		log.Warn("Admin routes are unprotected: neither JWT_SECRET_KEY nor ADMIN_API_KEY is set")
	}

	r := server.NewRouter(svc, server.Options{
		AllowedOrigins:  cfg.AllowedOrigins,
		JWTSecret:       cfg.JWTSecret,
		AdminAPIKey:     cfg.AdminAPIKey,
		SecureCookies:   cfg.IsProduction(),
		RequestTimeout:  cfg.RequestTimeout,
		EventsRateLimit: cfg.EventsRateLimit,
		EventsRateBurst: cfg.EventsRateBurst,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		Tracing:         cfg.OtelEnabled,
		HealthChecks:    b.checks,
	}, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("API server starting", "port", cfg.Port, "store", cfg.StoreDriver, "event_store", cfg.EventStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("API server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("Tracer shutdown failed", "error", err)
	}
	log.Info("Server exiting.")
}
