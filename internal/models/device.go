package models

import "time"

// Device is a controllable device placed in a room.
type Device struct {
	ID          int64     `json:"id"`
	RoomID      int64     `json:"roomId"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Status      bool      `json:"status"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// NewDevice creates a new Device in the given room. New devices start switched off.
func NewDevice(roomID int64, name, deviceType string) *Device {
	return &Device{
		RoomID:      roomID,
		Name:        name,
		Type:        deviceType,
		LastUpdated: time.Now(),
	}
}

// AudioLevel is a volume sample reported by a device.
type AudioLevel struct {
	ID        int64     `json:"id"`
	DeviceID  int64     `json:"deviceId"`
	Level     int       `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

// MinAudioLevel and MaxAudioLevel bound AudioLevel.Level.
const (
	MinAudioLevel = 0
	MaxAudioLevel = 100
)
