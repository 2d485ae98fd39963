package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"tpv-haido/internal/config"
	"tpv-haido/internal/logger"
	"tpv-haido/internal/server"
	"tpv-haido/internal/storage"
	"tpv-haido/internal/storage/httpapi"
	"tpv-haido/internal/storage/rediskv"
	"tpv-haido/internal/storage/sqlite"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *server.Server, logger *zap.Logger, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")

	done <- true
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting tpv-haido API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("storage_mode", string(cfg.Storage.Mode)),
	)

	if !cfg.Storage.Mode.Valid() {
		log.Fatal("Unknown storage mode", zap.String("mode", string(cfg.Storage.Mode)))
	}

	// SQLite backend, always available.
	sqliteAdapter, err := sqlite.Open(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatal("Failed to open sqlite database", zap.Error(err))
	}
	defer sqliteAdapter.Close()

	if err := sqlite.RunMigrations(sqliteAdapter.DB()); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database migrations completed successfully")

	// Redis backend, also reused for rate limiting.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	redisAdapter := rediskv.New(redisClient)

	// Remote http backend.
	httpAdapter := httpapi.New(cfg.API.BaseURL, httpapi.WithClient(&http.Client{
		Timeout: time.Duration(cfg.API.TimeoutSeconds) * time.Second,
	}))

	backends := map[storage.Mode]storage.Adapter{
		storage.ModeSQLite: sqliteAdapter,
		storage.ModeRedis:  redisAdapter,
		storage.ModeHTTP:   httpAdapter,
	}
	adapter := backends[cfg.Storage.Mode]

	// Rate limiting needs a reachable redis; without one the middleware
	// would only add noise, so it is left off.
	var rateLimitClient *redis.Client
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err == nil {
		rateLimitClient = redisClient
	} else {
		log.Warn("Redis unreachable, rate limiting disabled", zap.Error(err))
	}
	cancel()

	srv := server.NewServer(cfg, log, adapter, backends, rateLimitClient)

	done := make(chan bool, 1)
	go gracefulShutdown(srv, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	log.Info("Graceful shutdown complete")
}
