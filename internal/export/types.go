// Package export provides backup export and import (restore) of the dashboard table set.
package export

import (
	"time"

	"github.com/MacJediWizard/hearth/internal/models"
)

// Document is the backup file format. It is plain JSON with no version field.
type Document struct {
	Tables *models.TableSet `json:"tables"`
}

// Table keys used inside Document.Tables.
const (
	TableRooms              = "rooms"
	TableDevices            = "devices"
	TableAudioLevels        = "audioLevels"
	TableWeatherSettings    = "weatherSettings"
	TableAppearanceSettings = "appearanceSettings"
)

// RequiredTables lists the keys that every backup document must carry, in restore order.
var RequiredTables = []string{
	TableRooms,
	TableDevices,
	TableAudioLevels,
	TableWeatherSettings,
	TableAppearanceSettings,
}

// ImportedCounts holds the number of rows inserted per table by an import.
type ImportedCounts struct {
	Rooms              int64 `json:"rooms"`
	Devices            int64 `json:"devices"`
	AudioLevels        int64 `json:"audioLevels"`
	WeatherSettings    int64 `json:"weatherSettings"`
	AppearanceSettings int64 `json:"appearanceSettings"`
}

// Total returns the number of rows inserted across all tables.
func (c ImportedCounts) Total() int64 {
	return c.Rooms + c.Devices + c.AudioLevels + c.WeatherSettings + c.AppearanceSettings
}

// ImportResult contains the results of a committed import.
type ImportResult struct {
	Counts ImportedCounts `json:"importedCounts"`
	// AuditRecorded is false when the backup record could not be appended
	// after the restore transaction committed.
	AuditRecorded bool `json:"-"`
}

// Result labels passed to a Recorder.
const (
	ResultSuccess = "success"
	ResultInvalid = "invalid"
	ResultFailed  = "failed"
)

// Recorder receives the outcome of export and import operations.
type Recorder interface {
	RecordExport(result string)
	RecordImport(result string, duration time.Duration, counts ImportedCounts)
}

type nopRecorder struct{}

func (nopRecorder) RecordExport(string)                                {}
func (nopRecorder) RecordImport(string, time.Duration, ImportedCounts) {}
