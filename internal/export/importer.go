package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MacJediWizard/hearth/internal/models"
	"github.com/rs/zerolog"
)

// RestoreTx is the set of writes performed inside the restore transaction.
// Insert methods for parent tables return the generated ids in input order.
type RestoreTx interface {
	// DeleteTableSet removes every row of the backed-up tables, children first.
	DeleteTableSet(ctx context.Context) error
	InsertRooms(ctx context.Context, rooms []models.Room) ([]int64, error)
	InsertDevices(ctx context.Context, devices []models.Device) ([]int64, error)
	InsertAudioLevels(ctx context.Context, levels []models.AudioLevel) (int64, error)
	InsertWeatherSettings(ctx context.Context, rows []models.WeatherSettings) (int64, error)
	InsertAppearanceSettings(ctx context.Context, rows []models.AppearanceSettings) (int64, error)
}

// ImporterStore defines the interface for data access needed by the importer.
type ImporterStore interface {
	// RestoreTableSet runs fn inside a single transaction. The transaction is
	// committed only if fn returns nil.
	RestoreTableSet(ctx context.Context, fn func(tx RestoreTx) error) error
	CreateBackupRecord(ctx context.Context, record *models.BackupRecord) error
}

// ImporterOptions configures an Importer.
type ImporterOptions struct {
	// StrictReferences rejects devices and audio levels whose parent id does
	// not appear in the same document. When false, such ids are written
	// unchanged and left to the database's foreign keys.
	StrictReferences bool
}

// Importer restores backup documents.
type Importer struct {
	store    ImporterStore
	opts     ImporterOptions
	recorder Recorder
	now      func() time.Time
	logger   zerolog.Logger
}

// NewImporter creates a new Importer.
func NewImporter(store ImporterStore, opts ImporterOptions, logger zerolog.Logger) *Importer {
	return &Importer{
		store:    store,
		opts:     opts,
		recorder: nopRecorder{},
		now:      time.Now,
		logger:   logger.With().Str("component", "backup_importer").Logger(),
	}
}

// SetRecorder sets the recorder notified of every import.
func (i *Importer) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	i.recorder = r
}

// Import validates a raw backup document and restores it.
func (i *Importer) Import(ctx context.Context, body []byte) (*ImportResult, error) {
	start := i.now()
	payload, err := ParseDocument(body)
	if err != nil {
		i.recorder.RecordImport(ResultInvalid, i.now().Sub(start), ImportedCounts{})
		return nil, err
	}
	return i.restore(ctx, payload, start)
}

// ImportPayload restores an already validated payload.
func (i *Importer) ImportPayload(ctx context.Context, payload *Payload) (*ImportResult, error) {
	return i.restore(ctx, payload, i.now())
}

func (i *Importer) restore(ctx context.Context, payload *Payload, start time.Time) (*ImportResult, error) {
	plan, err := i.buildPlan(payload)
	if err != nil {
		i.recorder.RecordImport(ResultInvalid, i.now().Sub(start), ImportedCounts{})
		return nil, err
	}

	var counts ImportedCounts
	err = i.store.RestoreTableSet(ctx, func(tx RestoreTx) error {
		counts, err = plan.apply(ctx, tx)
		return err
	})
	if err != nil {
		i.recorder.RecordImport(ResultFailed, i.now().Sub(start), ImportedCounts{})
		return nil, fmt.Errorf("restore tables: %w", err)
	}

	result := &ImportResult{Counts: counts, AuditRecorded: true}
	if err := i.store.CreateBackupRecord(ctx, models.NewBackupRecord()); err != nil {
		result.AuditRecorded = false
		i.logger.Warn().Err(err).Msg("backup imported but audit record could not be written")
	}

	i.recorder.RecordImport(ResultSuccess, i.now().Sub(start), counts)
	i.logger.Info().
		Int64("rooms", counts.Rooms).
		Int64("devices", counts.Devices).
		Int64("audio_levels", counts.AudioLevels).
		Int64("weather_settings", counts.WeatherSettings).
		Int64("appearance_settings", counts.AppearanceSettings).
		Dur("duration", i.now().Sub(start)).
		Msg("backup imported")

	return result, nil
}

// restorePlan holds the rows to insert with defaults applied. Device.RoomID and
// AudioLevel.DeviceID still carry the ids from the document until apply
// rewrites them.
type restorePlan struct {
	rooms       []models.Room
	roomKeys    []*int64
	devices     []models.Device
	deviceKeys  []*int64
	audioLevels []models.AudioLevel
	weather     []models.WeatherSettings
	appearance  []models.AppearanceSettings
}

func (i *Importer) buildPlan(p *Payload) (*restorePlan, error) {
	now := i.now()
	plan := &restorePlan{
		rooms:       make([]models.Room, len(p.Rooms)),
		roomKeys:    make([]*int64, len(p.Rooms)),
		devices:     make([]models.Device, len(p.Devices)),
		deviceKeys:  make([]*int64, len(p.Devices)),
		audioLevels: make([]models.AudioLevel, len(p.AudioLevels)),
		weather:     make([]models.WeatherSettings, len(p.WeatherSettings)),
		appearance:  make([]models.AppearanceSettings, len(p.AppearanceSettings)),
	}

	roomIDs := make(map[int64]struct{}, len(p.Rooms))
	for k, r := range p.Rooms {
		plan.rooms[k] = models.Room{
			Name:      *r.Name,
			CreatedAt: timeOr(r.CreatedAt, now),
		}
		plan.roomKeys[k] = r.ID
		if r.ID != nil {
			roomIDs[*r.ID] = struct{}{}
		}
	}

	deviceIDs := make(map[int64]struct{}, len(p.Devices))
	for k, d := range p.Devices {
		if _, ok := roomIDs[*d.RoomID]; !ok && i.opts.StrictReferences {
			return nil, invalid(CodeInvalidDeviceData, "%s[%d]: roomId %d does not match any room in the backup", TableDevices, k, *d.RoomID)
		}
		status := false
		if d.Status != nil {
			status = *d.Status
		}
		plan.devices[k] = models.Device{
			RoomID:      *d.RoomID,
			Name:        *d.Name,
			Type:        *d.Type,
			Status:      status,
			LastUpdated: timeOr(d.LastUpdated, now),
		}
		plan.deviceKeys[k] = d.ID
		if d.ID != nil {
			deviceIDs[*d.ID] = struct{}{}
		}
	}

	for k, a := range p.AudioLevels {
		if _, ok := deviceIDs[*a.DeviceID]; !ok && i.opts.StrictReferences {
			return nil, invalid(CodeInvalidAudioLevelData, "%s[%d]: deviceId %d does not match any device in the backup", TableAudioLevels, k, *a.DeviceID)
		}
		if a.Timestamp == nil || a.Timestamp.IsZero() {
			return nil, invalid(CodeInvalidAudioLevelData, "%s[%d]: field \"timestamp\" is required", TableAudioLevels, k)
		}
		plan.audioLevels[k] = models.AudioLevel{
			DeviceID:  *a.DeviceID,
			Level:     *a.Level,
			Timestamp: a.Timestamp.Time,
		}
	}

	for k, w := range p.WeatherSettings {
		plan.weather[k] = models.WeatherSettings{
			Provider:  *w.Provider,
			APIKey:    w.APIKey,
			Latitude:  w.Latitude,
			Longitude: w.Longitude,
			Units:     *w.Units,
			City:      w.City,
			Country:   w.Country,
			Zip:       w.Zip,
			UpdatedAt: timeOr(w.UpdatedAt, now),
		}
	}

	for k, a := range p.AppearanceSettings {
		plan.appearance[k] = models.AppearanceSettings{
			Mode:            stringOr(a.Mode, models.DefaultAppearanceMode),
			ScreenSize:      stringOr(a.ScreenSize, models.DefaultAppearanceScreenSize),
			Width:           intOr(a.Width, models.DefaultAppearanceWidth),
			Height:          intOr(a.Height, models.DefaultAppearanceHeight),
			BackgroundColor: stringOr(a.BackgroundColor, models.DefaultBackgroundColor),
			UpdatedAt:       timeOr(a.UpdatedAt, now),
		}
	}

	return plan, nil
}

// apply writes the plan: clear, then parents before children, rewriting
// foreign keys through the id maps built from each parent insert.
func (p *restorePlan) apply(ctx context.Context, tx RestoreTx) (ImportedCounts, error) {
	var counts ImportedCounts

	if err := tx.DeleteTableSet(ctx); err != nil {
		return counts, fmt.Errorf("clear tables: %w", err)
	}

	newRoomIDs, err := tx.InsertRooms(ctx, p.rooms)
	if err != nil {
		return counts, fmt.Errorf("insert rooms: %w", err)
	}
	roomMap, err := buildIDMap(p.roomKeys, newRoomIDs)
	if err != nil {
		return counts, fmt.Errorf("insert rooms: %w", err)
	}
	counts.Rooms = int64(len(newRoomIDs))

	for k := range p.devices {
		p.devices[k].RoomID = resolveID(roomMap, p.devices[k].RoomID)
	}
	newDeviceIDs, err := tx.InsertDevices(ctx, p.devices)
	if err != nil {
		return counts, fmt.Errorf("insert devices: %w", err)
	}
	deviceMap, err := buildIDMap(p.deviceKeys, newDeviceIDs)
	if err != nil {
		return counts, fmt.Errorf("insert devices: %w", err)
	}
	counts.Devices = int64(len(newDeviceIDs))

	for k := range p.audioLevels {
		p.audioLevels[k].DeviceID = resolveID(deviceMap, p.audioLevels[k].DeviceID)
	}
	if counts.AudioLevels, err = tx.InsertAudioLevels(ctx, p.audioLevels); err != nil {
		return counts, fmt.Errorf("insert audio levels: %w", err)
	}

	if counts.WeatherSettings, err = tx.InsertWeatherSettings(ctx, p.weather); err != nil {
		return counts, fmt.Errorf("insert weather settings: %w", err)
	}

	if counts.AppearanceSettings, err = tx.InsertAppearanceSettings(ctx, p.appearance); err != nil {
		return counts, fmt.Errorf("insert appearance settings: %w", err)
	}

	return counts, nil
}

var errIDCountMismatch = errors.New("store returned a different number of ids than rows inserted")

// buildIDMap maps document ids to generated ids. Rows without a document id
// are skipped; a repeated document id maps to the last row carrying it.
func buildIDMap(oldIDs []*int64, newIDs []int64) (map[int64]int64, error) {
	if len(oldIDs) != len(newIDs) {
		return nil, errIDCountMismatch
	}
	m := make(map[int64]int64, len(newIDs))
	for k, old := range oldIDs {
		if old != nil {
			m[*old] = newIDs[k]
		}
	}
	return m, nil
}

func resolveID(m map[int64]int64, id int64) int64 {
	if mapped, ok := m[id]; ok {
		return mapped
	}
	return id
}

func timeOr(t *Timestamp, def time.Time) time.Time {
	if t == nil || t.IsZero() {
		return def
	}
	return t.Time
}

func stringOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

func intOr(n *int, def int) int {
	if n == nil {
		return def
	}
	return *n
}
