// Package metrics provides Prometheus metrics for Hearth.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/MacJediWizard/hearth/internal/export"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "hearth"

// PrometheusMetrics holds the backup metrics and records export, import and
// archive outcomes into them.
type PrometheusMetrics struct {
	ExportCounter  *prometheus.CounterVec
	ImportCounter  *prometheus.CounterVec
	ImportDuration *prometheus.HistogramVec
	ImportedRows   *prometheus.CounterVec
	ArchiveCounter *prometheus.CounterVec
}

var _ export.Recorder = (*PrometheusMetrics)(nil)

// NewRegistry returns a registry with the Go runtime and process collectors
// already registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewPrometheusMetrics creates the backup metrics and registers them with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		ExportCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "exports_total",
			Help:      "Backup exports by result.",
		}, []string{"result"}),
		ImportCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "imports_total",
			Help:      "Backup imports by result.",
		}, []string{"result"}),
		ImportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "import_duration_seconds",
			Help:      "Time taken to validate and restore a backup.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"result"}),
		ImportedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "imported_rows_total",
			Help:      "Rows inserted by successful imports, by table.",
		}, []string{"table"}),
		ArchiveCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "archives_total",
			Help:      "Archived backups by result.",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{
		m.ExportCounter, m.ImportCounter, m.ImportDuration, m.ImportedRows, m.ArchiveCounter,
	} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				return nil, fmt.Errorf("metric already registered: %w", err)
			}
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}

	return m, nil
}

// RecordExport counts one export.
func (m *PrometheusMetrics) RecordExport(result string) {
	m.ExportCounter.WithLabelValues(result).Inc()
}

// RecordImport counts one import, observes its duration and, for successful
// imports, adds the inserted rows per table.
func (m *PrometheusMetrics) RecordImport(result string, duration time.Duration, counts export.ImportedCounts) {
	m.ImportCounter.WithLabelValues(result).Inc()
	m.ImportDuration.WithLabelValues(result).Observe(duration.Seconds())
	if result != export.ResultSuccess {
		return
	}
	m.ImportedRows.WithLabelValues(export.TableRooms).Add(float64(counts.Rooms))
	m.ImportedRows.WithLabelValues(export.TableDevices).Add(float64(counts.Devices))
	m.ImportedRows.WithLabelValues(export.TableAudioLevels).Add(float64(counts.AudioLevels))
	m.ImportedRows.WithLabelValues(export.TableWeatherSettings).Add(float64(counts.WeatherSettings))
	m.ImportedRows.WithLabelValues(export.TableAppearanceSettings).Add(float64(counts.AppearanceSettings))
}

// RecordArchive counts one archive creation.
func (m *PrometheusMetrics) RecordArchive(result string) {
	m.ArchiveCounter.WithLabelValues(result).Inc()
}
