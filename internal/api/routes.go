// Package api provides the HTTP API for the Hearth server.
package api

import (
	"context"
	"time"

	"github.com/MacJediWizard/hearth/internal/api/handlers"
	"github.com/MacJediWizard/hearth/internal/api/middleware"
	"github.com/MacJediWizard/hearth/internal/config"
	"github.com/MacJediWizard/hearth/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Config holds configuration for the API router.
type Config struct {
	// AllowedOrigins for CORS. Empty means all origins allowed outside production.
	AllowedOrigins []string
	Environment    config.Environment
	// RateLimitRequests is the number of /api requests allowed per period and client.
	RateLimitRequests int64
	RateLimitPeriod   time.Duration
	// MaxImportBytes caps the import request body.
	MaxImportBytes int64
	// Version information for the version endpoint.
	Version   string
	Commit    string
	BuildDate string
}

// DefaultConfig returns a Config with sensible defaults for development.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins:    []string{},
		Environment:       config.EnvDevelopment,
		RateLimitRequests: config.DefaultRateLimitRequests,
		RateLimitPeriod:   config.DefaultRateLimitPeriod,
		MaxImportBytes:    config.DefaultMaxImportBytes,
		Version:           "dev",
		Commit:            "unknown",
		BuildDate:         "unknown",
	}
}

// Database is the part of the store the router needs.
type Database interface {
	Ping(ctx context.Context) error
	Health() map[string]any
	ListBackupRecords(ctx context.Context, limit int) ([]*models.BackupRecord, error)
}

// Dependencies are the services the routes are served from.
type Dependencies struct {
	Database Database
	Exporter handlers.BackupExporter
	Importer handlers.BackupImporter
	// Archiver is nil when no archive sink is configured.
	Archiver handlers.BackupArchiver
	Gatherer prometheus.Gatherer
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine *gin.Engine
	logger zerolog.Logger
}

// NewRouter creates a new Router with the given dependencies.
func NewRouter(cfg Config, deps Dependencies, logger zerolog.Logger) (*Router, error) {
	r := &Router{
		Engine: gin.New(),
		logger: logger.With().Str("component", "router").Logger(),
	}

	cors, err := middleware.CORS(cfg.AllowedOrigins, cfg.Environment, r.logger)
	if err != nil {
		return nil, err
	}

	// Global middleware
	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestLogger(logger))
	r.Engine.Use(middleware.SecurityHeaders())
	r.Engine.Use(cors)

	// Health check endpoints
	healthHandler := handlers.NewHealthHandler(deps.Database, deps.Archiver, logger)
	healthHandler.RegisterPublicRoutes(r.Engine)

	// Prometheus metrics endpoint
	if deps.Gatherer != nil {
		metricsHandler := handlers.NewMetricsHandler(deps.Gatherer, logger)
		metricsHandler.RegisterPublicRoutes(r.Engine)
	}

	versionHandler := handlers.NewVersionHandler(cfg.Version, cfg.Commit, cfg.BuildDate, logger)
	versionHandler.RegisterPublicRoutes(r.Engine)

	// API routes, rate limited per client
	rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitPeriod)
	if err != nil {
		return nil, err
	}
	api := r.Engine.Group("/api")
	api.Use(rateLimiter)

	versionHandler.RegisterRoutes(api)

	backupHandler := handlers.NewBackupHandler(
		deps.Exporter,
		deps.Importer,
		deps.Database,
		deps.Archiver,
		cfg.MaxImportBytes,
		logger,
	)
	backupHandler.RegisterRoutes(api)

	r.logger.Info().
		Bool("archive", deps.Archiver != nil).
		Int64("rate_limit", cfg.RateLimitRequests).
		Dur("rate_period", cfg.RateLimitPeriod).
		Msg("API routes registered")

	return r, nil
}
