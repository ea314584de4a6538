package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// MetricsHandler serves the Prometheus exposition endpoint.
type MetricsHandler struct {
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
}

// NewMetricsHandler creates a new MetricsHandler over gatherer.
func NewMetricsHandler(gatherer prometheus.Gatherer, logger zerolog.Logger) *MetricsHandler {
	return &MetricsHandler{
		gatherer: gatherer,
		logger:   logger.With().Str("component", "metrics_handler").Logger(),
	}
}

// RegisterPublicRoutes registers metrics routes that don't require authentication.
func (h *MetricsHandler) RegisterPublicRoutes(r *gin.Engine) {
	r.GET("/metrics", h.Metrics())
}

// Metrics returns a handler that writes metrics in Prometheus exposition format.
// GET /metrics
func (h *MetricsHandler) Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{
		ErrorLog:      promLogger{h.logger},
		ErrorHandling: promhttp.ContinueOnError,
	}))
}

// promLogger adapts zerolog to promhttp.Logger.
type promLogger struct {
	logger zerolog.Logger
}

func (l promLogger) Println(v ...any) {
	l.logger.Error().Msgf("%v", v)
}
