// Package main is the entrypoint for the Hearth server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MacJediWizard/hearth/internal/api"
	"github.com/MacJediWizard/hearth/internal/archive"
	"github.com/MacJediWizard/hearth/internal/config"
	"github.com/MacJediWizard/hearth/internal/db"
	"github.com/MacJediWizard/hearth/internal/export"
	"github.com/MacJediWizard/hearth/internal/maintenance"
	"github.com/MacJediWizard/hearth/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("version", Version).Logger()
	if os.Getenv("ENV") != string(config.EnvProduction) {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	logger.Info().
		Str("commit", Commit).
		Str("build_date", BuildDate).
		Msg("Starting Hearth server")

	cfg := config.LoadServerConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("Invalid configuration")
		return 1
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.New(ctx, db.DefaultConfig(cfg.DatabaseURL), logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to connect to database")
		return 1
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to run database migrations")
		return 1
	}

	// Metrics
	registry := metrics.NewRegistry()
	promMetrics, err := metrics.NewPrometheusMetrics(registry)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to register metrics")
		return 1
	}
	registry.MustRegister(metrics.NewPoolCollector(database, logger))

	// Backup services
	exporter := export.NewExporter(database, logger)
	exporter.SetRecorder(promMetrics)

	importer := export.NewImporter(database, export.ImporterOptions{
		StrictReferences: cfg.StrictReferences,
	}, logger)
	importer.SetRecorder(promMetrics)

	deps := api.Dependencies{
		Database: database,
		Exporter: exporter,
		Importer: importer,
		Gatherer: registry,
	}

	var scheduler *maintenance.BackupScheduler
	sink, err := archive.OpenSink(ctx, cfg.ArchiveDir, cfg.S3)
	switch {
	case errors.Is(err, archive.ErrNotConfigured):
		logger.Info().Msg("Backup archive not configured")
	case err != nil:
		logger.Error().Err(err).Msg("Failed to open backup archive")
		return 1
	default:
		archiver := archive.NewArchiver(sink, exporter, importer, logger)
		archiver.SetRecorder(promMetrics)
		deps.Archiver = archiver
		logger.Info().Str("sink", sink.Kind()).Msg("Backup archive enabled")

		if cfg.BackupSchedule != "" {
			scheduler = maintenance.NewBackupScheduler(archiver, maintenance.BackupScheduleConfig{
				Schedule:  cfg.BackupSchedule,
				Retention: cfg.Retention(),
			}, logger)
		}
	}

	router, err := api.NewRouter(api.Config{
		AllowedOrigins:    cfg.CORSOrigins,
		Environment:       cfg.Environment,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitPeriod:   cfg.RateLimitPeriod,
		MaxImportBytes:    cfg.MaxImportBytes,
		Version:           Version,
		Commit:            Commit,
		BuildDate:         BuildDate,
	}, deps, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize router")
		return 1
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      5 * time.Minute,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if scheduler != nil {
		if err := scheduler.Start(); err != nil {
			logger.Error().Err(err).Msg("Failed to start backup scheduler")
		}
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down server")
	case err := <-serverErr:
		logger.Error().Err(err).Msg("HTTP server error")
		exitCode = 1
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
		exitCode = 1
	}

	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
			logger.Warn().Msg("Backup still running at shutdown")
		}
	}

	logger.Info().Msg("Server stopped")
	return exitCode
}
