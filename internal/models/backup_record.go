package models

import "time"

// BackupRecord is an audit entry appended every time a backup is exported or imported.
type BackupRecord struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewBackupRecord creates a BackupRecord stamped with the current time.
func NewBackupRecord() *BackupRecord {
	return &BackupRecord{CreatedAt: time.Now()}
}

// TableSet holds the full contents of every table covered by backups.
type TableSet struct {
	Rooms              []Room               `json:"rooms"`
	Devices            []Device             `json:"devices"`
	AudioLevels        []AudioLevel         `json:"audioLevels"`
	WeatherSettings    []WeatherSettings    `json:"weatherSettings"`
	AppearanceSettings []AppearanceSettings `json:"appearanceSettings"`
}

// NewTableSet returns a TableSet whose tables are empty rather than nil,
// so that empty tables serialize as [] instead of null.
func NewTableSet() *TableSet {
	return &TableSet{
		Rooms:              []Room{},
		Devices:            []Device{},
		AudioLevels:        []AudioLevel{},
		WeatherSettings:    []WeatherSettings{},
		AppearanceSettings: []AppearanceSettings{},
	}
}
