package export

import (
	"context"
	"fmt"

	"github.com/MacJediWizard/hearth/internal/models"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// ExporterStore defines the interface for data access needed by the exporter.
type ExporterStore interface {
	// ReadTableSet returns every row of every backed-up table.
	ReadTableSet(ctx context.Context) (*models.TableSet, error)
	CreateBackupRecord(ctx context.Context, record *models.BackupRecord) error
}

// Exporter produces backup documents.
type Exporter struct {
	store    ExporterStore
	recorder Recorder
	logger   zerolog.Logger
}

// NewExporter creates a new Exporter.
func NewExporter(store ExporterStore, logger zerolog.Logger) *Exporter {
	return &Exporter{
		store:    store,
		recorder: nopRecorder{},
		logger:   logger.With().Str("component", "backup_exporter").Logger(),
	}
}

// SetRecorder sets the recorder notified of every export.
func (e *Exporter) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	e.recorder = r
}

// Export reads the full table set and appends a backup record.
// Nothing is returned unless both steps succeed.
func (e *Exporter) Export(ctx context.Context) (*Document, error) {
	tables, err := e.store.ReadTableSet(ctx)
	if err != nil {
		e.recorder.RecordExport(ResultFailed)
		return nil, fmt.Errorf("read tables: %w", err)
	}
	normalizeTableSet(tables)

	record := models.NewBackupRecord()
	if err := e.store.CreateBackupRecord(ctx, record); err != nil {
		e.recorder.RecordExport(ResultFailed)
		return nil, fmt.Errorf("record backup: %w", err)
	}

	e.recorder.RecordExport(ResultSuccess)
	e.logger.Info().
		Int64("backup_id", record.ID).
		Int("rooms", len(tables.Rooms)).
		Int("devices", len(tables.Devices)).
		Int("audio_levels", len(tables.AudioLevels)).
		Int("weather_settings", len(tables.WeatherSettings)).
		Int("appearance_settings", len(tables.AppearanceSettings)).
		Msg("backup exported")

	return &Document{Tables: tables}, nil
}

// ExportJSON exports the table set and renders it as indented JSON.
func (e *Exporter) ExportJSON(ctx context.Context) ([]byte, error) {
	doc, err := e.Export(ctx)
	if err != nil {
		return nil, err
	}
	return MarshalDocument(doc)
}

// MarshalDocument renders a document as human-readable JSON.
func MarshalDocument(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal backup: %w", err)
	}
	return data, nil
}

// normalizeTableSet replaces nil tables with empty ones.
func normalizeTableSet(t *models.TableSet) {
	if t.Rooms == nil {
		t.Rooms = []models.Room{}
	}
	if t.Devices == nil {
		t.Devices = []models.Device{}
	}
	if t.AudioLevels == nil {
		t.AudioLevels = []models.AudioLevel{}
	}
	if t.WeatherSettings == nil {
		t.WeatherSettings = []models.WeatherSettings{}
	}
	if t.AppearanceSettings == nil {
		t.AppearanceSettings = []models.AppearanceSettings{}
	}
}
