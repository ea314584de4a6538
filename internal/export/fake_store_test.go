package export

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MacJediWizard/hearth/internal/models"
)

// fakeStore keeps the table set in memory and restores a snapshot when a
// restore callback fails, mimicking a transaction rollback.
type fakeStore struct {
	mu sync.Mutex

	tables  *models.TableSet
	backups []*models.BackupRecord

	nextRoomID   int64
	nextDeviceID int64

	readErr   error
	backupErr error
	// failInsert names the table whose insert should fail.
	failInsert string
	// shortIDs makes InsertRooms return one id fewer than requested.
	shortIDs bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables:       models.NewTableSet(),
		nextRoomID:   100,
		nextDeviceID: 500,
	}
}

func (s *fakeStore) ReadTableSet(_ context.Context) (*models.TableSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	return cloneTableSet(s.tables), nil
}

func (s *fakeStore) CreateBackupRecord(_ context.Context, record *models.BackupRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backupErr != nil {
		return s.backupErr
	}
	record.ID = int64(len(s.backups) + 1)
	s.backups = append(s.backups, record)
	return nil
}

func (s *fakeStore) RestoreTableSet(ctx context.Context, fn func(tx RestoreTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := cloneTableSet(s.tables)
	nextRoom, nextDevice := s.nextRoomID, s.nextDeviceID
	if err := fn(&fakeTx{store: s}); err != nil {
		s.tables = snapshot
		s.nextRoomID, s.nextDeviceID = nextRoom, nextDevice
		return err
	}
	return nil
}

func (s *fakeStore) backupCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.backups)
}

var errInjected = errors.New("injected failure")

type fakeTx struct {
	store *fakeStore
}

func (tx *fakeTx) DeleteTableSet(_ context.Context) error {
	tx.store.tables = models.NewTableSet()
	return nil
}

func (tx *fakeTx) InsertRooms(_ context.Context, rooms []models.Room) ([]int64, error) {
	if tx.store.failInsert == TableRooms {
		return nil, errInjected
	}
	ids := make([]int64, 0, len(rooms))
	for _, r := range rooms {
		tx.store.nextRoomID++
		r.ID = tx.store.nextRoomID
		tx.store.tables.Rooms = append(tx.store.tables.Rooms, r)
		ids = append(ids, r.ID)
	}
	if tx.store.shortIDs && len(ids) > 0 {
		ids = ids[:len(ids)-1]
	}
	return ids, nil
}

func (tx *fakeTx) InsertDevices(_ context.Context, devices []models.Device) ([]int64, error) {
	if tx.store.failInsert == TableDevices {
		return nil, errInjected
	}
	ids := make([]int64, 0, len(devices))
	for _, d := range devices {
		tx.store.nextDeviceID++
		d.ID = tx.store.nextDeviceID
		tx.store.tables.Devices = append(tx.store.tables.Devices, d)
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (tx *fakeTx) InsertAudioLevels(_ context.Context, levels []models.AudioLevel) (int64, error) {
	if tx.store.failInsert == TableAudioLevels {
		return 0, errInjected
	}
	for k, l := range levels {
		l.ID = int64(k + 1)
		tx.store.tables.AudioLevels = append(tx.store.tables.AudioLevels, l)
	}
	return int64(len(levels)), nil
}

func (tx *fakeTx) InsertWeatherSettings(_ context.Context, rows []models.WeatherSettings) (int64, error) {
	if tx.store.failInsert == TableWeatherSettings {
		return 0, errInjected
	}
	for k, w := range rows {
		w.ID = int64(k + 1)
		tx.store.tables.WeatherSettings = append(tx.store.tables.WeatherSettings, w)
	}
	return int64(len(rows)), nil
}

func (tx *fakeTx) InsertAppearanceSettings(_ context.Context, rows []models.AppearanceSettings) (int64, error) {
	if tx.store.failInsert == TableAppearanceSettings {
		return 0, errInjected
	}
	for k, a := range rows {
		a.ID = int64(k + 1)
		tx.store.tables.AppearanceSettings = append(tx.store.tables.AppearanceSettings, a)
	}
	return int64(len(rows)), nil
}

func cloneTableSet(t *models.TableSet) *models.TableSet {
	return &models.TableSet{
		Rooms:              append([]models.Room{}, t.Rooms...),
		Devices:            append([]models.Device{}, t.Devices...),
		AudioLevels:        append([]models.AudioLevel{}, t.AudioLevels...),
		WeatherSettings:    append([]models.WeatherSettings{}, t.WeatherSettings...),
		AppearanceSettings: append([]models.AppearanceSettings{}, t.AppearanceSettings...),
	}
}

type recordedImport struct {
	result string
	counts ImportedCounts
}

type fakeRecorder struct {
	exports []string
	imports []recordedImport
}

func (r *fakeRecorder) RecordExport(result string) {
	r.exports = append(r.exports, result)
}

func (r *fakeRecorder) RecordImport(result string, _ time.Duration, counts ImportedCounts) {
	r.imports = append(r.imports, recordedImport{result: result, counts: counts})
}
