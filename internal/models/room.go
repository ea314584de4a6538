// Package models defines the domain models for Hearth.
package models

import "time"

// Room is a physical room of the home. Rooms own devices.
type Room struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewRoom creates a new Room with the given name.
func NewRoom(name string) *Room {
	return &Room{
		Name:      name,
		CreatedAt: time.Now(),
	}
}
