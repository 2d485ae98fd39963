package server

import (
	"fmt"
	"net/http"
	"time"

	"tpv-haido/internal/config"
	custommiddleware "tpv-haido/internal/middleware"
	"tpv-haido/internal/migration"
	"tpv-haido/internal/service"
	"tpv-haido/internal/storage"
	"tpv-haido/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
}

// NewServer assembles the HTTP surface over the active storage adapter.
// backends maps every configured mode to its adapter for migrations;
// redisClient is optional and enables rate limiting when present.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	adapter storage.Adapter,
	backends map[storage.Mode]storage.Adapter,
	redisClient *redis.Client,
) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.Server.Env == "development"))

	if redisClient != nil {
		router.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: 300,
			Window:            time.Minute,
			KeyPrefix:         "tpv_rate_limit",
		}, logger))
	}

	migrator := migration.New(logger)

	// Health check endpoint, probing the active backend.
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if !migrator.Probe(r.Context(), adapter) {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, code, map[string]string{
			"status":  status,
			"backend": string(cfg.Storage.Mode),
		})
	})

	authService := service.NewAuthService(adapter, cfg.JWT.Secret)
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)

	catalogHandler := transport.NewCatalogHandler(adapter, logger)
	orderHandler := transport.NewOrderHandler(adapter, logger)
	authHandler := transport.NewAuthHandler(authService, adapter, logger)
	dataHandler := transport.NewDataHandler(adapter, backends, migrator, logger)

	catalogHandler.RegisterRoutes(router)
	orderHandler.RegisterRoutes(router)
	authHandler.RegisterRoutes(router)
	dataHandler.RegisterRoutes(router, authMiddleware)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")
	s.logger.Sync()
	return nil
}
