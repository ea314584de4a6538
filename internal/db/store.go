package db

import (
	"context"
	"fmt"

	"github.com/MacJediWizard/hearth/internal/models"
	"github.com/jackc/pgx/v5"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Room methods

func listRooms(ctx context.Context, q querier) ([]models.Room, error) {
	rows, err := q.Query(ctx, `
		SELECT id, name, created_at
		FROM rooms
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	rooms := []models.Room{}
	for rows.Next() {
		var r models.Room
		if err := rows.Scan(&r.ID, &r.Name, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return rooms, nil
}

// Device methods

func listDevices(ctx context.Context, q querier) ([]models.Device, error) {
	rows, err := q.Query(ctx, `
		SELECT id, room_id, name, type, status, last_updated
		FROM devices
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	devices := []models.Device{}
	for rows.Next() {
		var d models.Device
		if err := rows.Scan(&d.ID, &d.RoomID, &d.Name, &d.Type, &d.Status, &d.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate devices: %w", err)
	}
	return devices, nil
}

// Audio level methods

func listAudioLevels(ctx context.Context, q querier) ([]models.AudioLevel, error) {
	rows, err := q.Query(ctx, `
		SELECT id, device_id, level, "timestamp"
		FROM audio_levels
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list audio levels: %w", err)
	}
	defer rows.Close()

	levels := []models.AudioLevel{}
	for rows.Next() {
		var a models.AudioLevel
		if err := rows.Scan(&a.ID, &a.DeviceID, &a.Level, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audio level: %w", err)
		}
		levels = append(levels, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audio levels: %w", err)
	}
	return levels, nil
}

// Settings methods

func listWeatherSettings(ctx context.Context, q querier) ([]models.WeatherSettings, error) {
	rows, err := q.Query(ctx, `
		SELECT id, provider, api_key, latitude, longitude, units,
		       city, country, zip, updated_at
		FROM weather_settings
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list weather settings: %w", err)
	}
	defer rows.Close()

	settings := []models.WeatherSettings{}
	for rows.Next() {
		var w models.WeatherSettings
		if err := rows.Scan(
			&w.ID, &w.Provider, &w.APIKey, &w.Latitude, &w.Longitude, &w.Units,
			&w.City, &w.Country, &w.Zip, &w.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan weather settings: %w", err)
		}
		settings = append(settings, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weather settings: %w", err)
	}
	return settings, nil
}

func listAppearanceSettings(ctx context.Context, q querier) ([]models.AppearanceSettings, error) {
	rows, err := q.Query(ctx, `
		SELECT id, mode, screen_size, width, height, background_color, updated_at
		FROM appearance_settings
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list appearance settings: %w", err)
	}
	defer rows.Close()

	settings := []models.AppearanceSettings{}
	for rows.Next() {
		var a models.AppearanceSettings
		if err := rows.Scan(
			&a.ID, &a.Mode, &a.ScreenSize, &a.Width, &a.Height, &a.BackgroundColor, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan appearance settings: %w", err)
		}
		settings = append(settings, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appearance settings: %w", err)
	}
	return settings, nil
}
