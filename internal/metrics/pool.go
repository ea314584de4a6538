package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// PoolSource exposes database reachability and connection pool statistics.
type PoolSource interface {
	Ping(ctx context.Context) error
	Health() map[string]any
}

// PoolCollector reports database reachability and pool usage at scrape time.
type PoolCollector struct {
	source  PoolSource
	timeout time.Duration
	logger  zerolog.Logger

	up    *prometheus.Desc
	conns *prometheus.Desc
}

var _ prometheus.Collector = (*PoolCollector)(nil)

// poolStates maps Health() keys to the state label of hearth_db_connections.
var poolStates = map[string]string{
	"total_conns":    "total",
	"acquired_conns": "acquired",
	"idle_conns":     "idle",
	"max_conns":      "max",
}

// NewPoolCollector creates a collector over source.
func NewPoolCollector(source PoolSource, logger zerolog.Logger) *PoolCollector {
	return &PoolCollector{
		source:  source,
		timeout: 2 * time.Second,
		logger:  logger.With().Str("component", "pool_collector").Logger(),
		up: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "up"),
			"Whether the database answered a ping (1 = healthy, 0 = unhealthy).",
			nil, nil,
		),
		conns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db", "connections"),
			"Database pool connections by state.",
			[]string{"state"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.up
	ch <- c.conns
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	up := 1.0
	if err := c.source.Ping(ctx); err != nil {
		up = 0
		c.logger.Warn().Err(err).Msg("database ping failed for metrics")
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, up)

	for key, value := range c.source.Health() {
		state, ok := poolStates[key]
		if !ok {
			continue
		}
		if v, ok := toFloat(value); ok {
			ch <- prometheus.MustNewConstMetric(c.conns, prometheus.GaugeValue, v, state)
		}
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
