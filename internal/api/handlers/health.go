package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MacJediWizard/hearth/internal/archive"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// Component names used as keys of HealthResponse.Checks.
const (
	ComponentDatabase = "database"
	ComponentArchive  = "archive"
)

const healthCheckTimeout = 5 * time.Second

// HealthCheckResult is the outcome of probing one component.
type HealthCheckResult struct {
	Status   HealthStatus   `json:"status"`
	Duration string         `json:"duration,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// HealthResponse is the body of every /health endpoint.
type HealthResponse struct {
	Status HealthStatus                  `json:"status"`
	Checks map[string]*HealthCheckResult `json:"checks,omitempty"`
	Error  string                        `json:"error,omitempty"`
}

// DatabaseHealthChecker pings the database and reports pool stats.
type DatabaseHealthChecker interface {
	Ping(ctx context.Context) error
	Health() map[string]any
}

// ArchiveHealthChecker lists the backup archive.
type ArchiveHealthChecker interface {
	Kind() string
	List(ctx context.Context) ([]archive.Object, error)
}

// HealthHandler serves liveness checks for the database and the archive.
type HealthHandler struct {
	db     DatabaseHealthChecker
	sink   ArchiveHealthChecker
	logger zerolog.Logger
}

// NewHealthHandler creates a new HealthHandler. sink may be nil when no
// archive is configured.
func NewHealthHandler(db DatabaseHealthChecker, sink ArchiveHealthChecker, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		sink:   sink,
		logger: logger.With().Str("component", "health_handler").Logger(),
	}
}

// RegisterPublicRoutes registers the health routes on the engine root.
func (h *HealthHandler) RegisterPublicRoutes(r *gin.Engine) {
	r.GET("/health", h.serve(ComponentDatabase, ComponentArchive))
	r.GET("/health/db", h.serve(ComponentDatabase))
	r.GET("/health/archive", h.serve(ComponentArchive))
}

// serve answers 200 when every listed component is healthy and 503 otherwise.
func (h *HealthHandler) serve(components ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		resp := h.report(ctx, components)
		if resp.Status == HealthStatusUnhealthy {
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (h *HealthHandler) report(ctx context.Context, components []string) *HealthResponse {
	resp := &HealthResponse{
		Status: HealthStatusHealthy,
		Checks: make(map[string]*HealthCheckResult, len(components)),
	}

	for _, name := range components {
		start := time.Now()
		var result *HealthCheckResult
		switch name {
		case ComponentDatabase:
			result = h.checkDatabase(ctx)
		case ComponentArchive:
			result = h.checkArchive(ctx)
		}
		result.Duration = time.Since(start).String()
		resp.Checks[name] = result

		if result.Status == HealthStatusUnhealthy {
			resp.Status = HealthStatusUnhealthy
			// A single-component endpoint surfaces the failure at the top level.
			if len(components) == 1 {
				resp.Error = result.Error
			}
		}
	}
	return resp
}

func unhealthy(msg string) *HealthCheckResult {
	return &HealthCheckResult{Status: HealthStatusUnhealthy, Error: msg}
}

func (h *HealthHandler) checkDatabase(ctx context.Context) *HealthCheckResult {
	if h.db == nil {
		return unhealthy("database not configured")
	}
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("database health check failed")
		return unhealthy("database ping failed")
	}
	return &HealthCheckResult{Status: HealthStatusHealthy, Details: h.db.Health()}
}

// checkArchive lists the sink to prove it is reachable. No sink is healthy.
func (h *HealthHandler) checkArchive(ctx context.Context) *HealthCheckResult {
	if h.sink == nil {
		return &HealthCheckResult{
			Status:  HealthStatusHealthy,
			Details: map[string]any{"configured": false},
		}
	}

	objects, err := h.sink.List(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Str("sink", h.sink.Kind()).Msg("archive health check failed")
		return unhealthy("backup archive unreachable")
	}

	details := map[string]any{
		"configured": true,
		"sink":       h.sink.Kind(),
		"archives":   len(objects),
	}
	if len(objects) > 0 {
		details["latest"] = objects[0].Name
	}
	return &HealthCheckResult{Status: HealthStatusHealthy, Details: details}
}
