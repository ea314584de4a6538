package db

import (
	"context"
	"fmt"

	"github.com/MacJediWizard/hearth/internal/export"
	"github.com/MacJediWizard/hearth/internal/models"
	"github.com/jackc/pgx/v5"
)

// Backup methods

// ReadTableSet reads every backed-up table from a single read-only snapshot,
// so devices and audio levels always reference rows in the same result.
func (db *DB) ReadTableSet(ctx context.Context) (*models.TableSet, error) {
	tables := models.NewTableSet()
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}

	err := db.ExecTxWithOptions(ctx, opts, func(tx pgx.Tx) error {
		var err error
		if tables.Rooms, err = listRooms(ctx, tx); err != nil {
			return err
		}
		if tables.Devices, err = listDevices(ctx, tx); err != nil {
			return err
		}
		if tables.AudioLevels, err = listAudioLevels(ctx, tx); err != nil {
			return err
		}
		if tables.WeatherSettings, err = listWeatherSettings(ctx, tx); err != nil {
			return err
		}
		if tables.AppearanceSettings, err = listAppearanceSettings(ctx, tx); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read table set: %w", err)
	}
	return tables, nil
}

// CreateBackupRecord appends an audit entry and sets record.ID.
func (db *DB) CreateBackupRecord(ctx context.Context, record *models.BackupRecord) error {
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO backups (created_at)
		VALUES ($1)
		RETURNING id
	`, record.CreatedAt).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("create backup record: %w", err)
	}
	return nil
}

// ListBackupRecords returns the most recent backup records, newest first.
// If limit is 0, returns all records.
func (db *DB) ListBackupRecords(ctx context.Context, limit int) ([]*models.BackupRecord, error) {
	query := `
		SELECT id, created_at
		FROM backups
		ORDER BY created_at DESC, id DESC
	`

	var rows pgx.Rows
	var err error
	if limit > 0 {
		rows, err = db.Pool.Query(ctx, query+` LIMIT $1`, limit)
	} else {
		rows, err = db.Pool.Query(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("list backup records: %w", err)
	}
	defer rows.Close()

	records := []*models.BackupRecord{}
	for rows.Next() {
		var r models.BackupRecord
		if err := rows.Scan(&r.ID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan backup record: %w", err)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backup records: %w", err)
	}
	return records, nil
}

// RestoreTableSet runs fn in a single transaction against the backed-up
// tables. Nothing fn writes is visible to other sessions unless fn returns nil.
func (db *DB) RestoreTableSet(ctx context.Context, fn func(tx export.RestoreTx) error) error {
	return db.ExecTx(ctx, func(tx pgx.Tx) error {
		return fn(&tableWriter{tx: tx})
	})
}

// tableWriter implements export.RestoreTx on top of a pgx transaction.
type tableWriter struct {
	tx pgx.Tx
}

var _ export.RestoreTx = (*tableWriter)(nil)

// DeleteTableSet deletes children before parents so foreign keys hold
// throughout.
func (w *tableWriter) DeleteTableSet(ctx context.Context) error {
	for _, table := range []string{"audio_levels", "devices", "rooms", "weather_settings", "appearance_settings"} {
		if _, err := w.tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}

// InsertRooms inserts rooms in one round trip and returns their ids in input order.
func (w *tableWriter) InsertRooms(ctx context.Context, rooms []models.Room) ([]int64, error) {
	batch := &pgx.Batch{}
	for _, r := range rooms {
		batch.Queue(`
			INSERT INTO rooms (name, created_at)
			VALUES ($1, $2)
			RETURNING id
		`, r.Name, r.CreatedAt)
	}
	return w.sendInsertBatch(ctx, batch)
}

// InsertDevices inserts devices in one round trip and returns their ids in input order.
func (w *tableWriter) InsertDevices(ctx context.Context, devices []models.Device) ([]int64, error) {
	batch := &pgx.Batch{}
	for _, d := range devices {
		batch.Queue(`
			INSERT INTO devices (room_id, name, type, status, last_updated)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, d.RoomID, d.Name, d.Type, d.Status, d.LastUpdated)
	}
	return w.sendInsertBatch(ctx, batch)
}

func (w *tableWriter) sendInsertBatch(ctx context.Context, batch *pgx.Batch) ([]int64, error) {
	if batch.Len() == 0 {
		return []int64{}, nil
	}

	results := w.tx.SendBatch(ctx, batch)
	ids := make([]int64, 0, batch.Len())
	for i := 0; i < batch.Len(); i++ {
		var id int64
		if err := results.QueryRow().Scan(&id); err != nil {
			_ = results.Close()
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("close batch: %w", err)
	}
	return ids, nil
}

// InsertAudioLevels bulk-loads audio levels with COPY.
func (w *tableWriter) InsertAudioLevels(ctx context.Context, levels []models.AudioLevel) (int64, error) {
	if len(levels) == 0 {
		return 0, nil
	}
	return w.tx.CopyFrom(ctx,
		pgx.Identifier{"audio_levels"},
		[]string{"device_id", "level", "timestamp"},
		pgx.CopyFromSlice(len(levels), func(i int) ([]any, error) {
			a := levels[i]
			return []any{a.DeviceID, a.Level, a.Timestamp}, nil
		}),
	)
}

// InsertWeatherSettings bulk-loads weather settings with COPY.
func (w *tableWriter) InsertWeatherSettings(ctx context.Context, rows []models.WeatherSettings) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	return w.tx.CopyFrom(ctx,
		pgx.Identifier{"weather_settings"},
		[]string{"provider", "api_key", "latitude", "longitude", "units", "city", "country", "zip", "updated_at"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			s := rows[i]
			return []any{s.Provider, s.APIKey, s.Latitude, s.Longitude, s.Units, s.City, s.Country, s.Zip, s.UpdatedAt}, nil
		}),
	)
}

// InsertAppearanceSettings bulk-loads appearance settings with COPY.
func (w *tableWriter) InsertAppearanceSettings(ctx context.Context, rows []models.AppearanceSettings) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	return w.tx.CopyFrom(ctx,
		pgx.Identifier{"appearance_settings"},
		[]string{"mode", "screen_size", "width", "height", "background_color", "updated_at"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			s := rows[i]
			return []any{s.Mode, s.ScreenSize, s.Width, s.Height, s.BackgroundColor, s.UpdatedAt}, nil
		}),
	)
}
