package main

import (
	"context"
	"fmt"
	"ms-headcount/internal/config"
	"ms-headcount/internal/database"
	"ms-headcount/internal/database/migrations"
	"ms-headcount/internal/ledger"
	"ms-headcount/internal/ledger/db"
	"ms-headcount/internal/ledger/ledger_api"
	"ms-headcount/internal/ledger/memstore"
	nightlock "ms-headcount/internal/ledger/redis"
	"ms-headcount/internal/ledger/service"
	"ms-headcount/internal/night"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/coder/quartz"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"ms-headcount/internal/logger"
)

type pingStore interface {
	ledger.Store
	Ping(ctx context.Context) error
}

// openStore picks the entry store for the configured driver. The returned
// func releases it.
func openStore(ctx context.Context, cfg *config.Config, logger *logger.Logger) (pingStore, func(), error) {
	if cfg.Database.Driver == database.DriverMemory {
		logger.Warn("DATABASE", "Using in-memory store, entries are lost on restart")
		return memstore.New(), func() {}, nil
	}

	bunDB, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	store := &db.DB{Bun: bunDB}

	switch cfg.Database.Driver {
	case database.DriverPostgres:
		if cfg.Database.AutoMigrate {
			opts := migrations.DefaultOptions()
			opts.MigrationsDir = cfg.Database.MigrationsDir
			// the runner shares bunDB, so it is not closed here
			if err := migrations.NewRunner(bunDB, opts, logger).MigrateUp(); err != nil {
				bunDB.Close()
				return nil, nil, err
			}
		}
	default:
		if err := store.CreateSchema(ctx); err != nil {
			bunDB.Close()
			return nil, nil, err
		}
	}

	return store, func() { bunDB.Close() }, nil
}

// openLock connects the Redis night lock. Without REDIS_ADDR submissions are
// only serialized by the store's unique slot index.
func openLock(ctx context.Context, cfg config.RedisConfig, logger *logger.Logger) (ledger.NightLock, func()) {
	if cfg.Addr == "" {
		logger.Warn("REDIS", "REDIS_ADDR not set, night locking disabled")
		return nil, func() {}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	logger.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))

	return nightlock.NewNightLock(redisClient, cfg.LockTTL, logger), func() { redisClient.Close() }
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	logger := logger.NewLogger(logger.Options{
		Dir:      cfg.Log.Dir,
		Name:     "headcount",
		NoColor:  cfg.Log.NoColor,
		MinLevel: logger.ParseLevel(cfg.Log.Level),
	})
	defer logger.Close()

	logger.Info("APP", "Starting Headcount Ledger initialization")
	if envErr != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	resolver, err := night.NewResolver(cfg.Venue.Timezone)
	if err != nil {
		logger.Fatal("CONFIG", err.Error())
	}
	logger.Info("CONFIG", fmt.Sprintf("Nights resolved in %s, cut-over at %02d:00", resolver.Location, night.CutoverHour))

	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to prepare store: %v", err))
	}
	defer closeStore()

	lock, closeLock := openLock(ctx, cfg.Redis, logger)
	defer closeLock()

	ledgerService := service.NewLedgerService(store, lock, resolver, logger)
	handler := ledger_api.NewHandler(ledgerService, store, logger, quartz.NewReal())

	logger.Info("HTTP", "Setting up router and middleware")
	r := ledger_api.NewRouter(handler, ledger_api.RouterOptions{
		AllowedOrigins:     cfg.Server.AllowedOrigins,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
	})
	logger.Info("ROUTER", "Ledger routes registered under /api/ledger")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Headcount Ledger running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Headcount Ledger shutdown complete")
	}
}
