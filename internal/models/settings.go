package models

import "time"

// WeatherSettings configures the weather provider shown on the dashboard.
// The dashboard reads at most one row; the table itself is not constrained.
type WeatherSettings struct {
	ID        int64     `json:"id"`
	Provider  string    `json:"provider"`
	APIKey    *string   `json:"apiKey"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	Units     string    `json:"units"`
	City      *string   `json:"city"`
	Country   *string   `json:"country"`
	Zip       *string   `json:"zip"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AppearanceSettings configures the dashboard theme and layout.
type AppearanceSettings struct {
	ID              int64     `json:"id"`
	Mode            string    `json:"mode"`
	ScreenSize      string    `json:"screenSize"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	BackgroundColor string    `json:"backgroundColor"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Appearance defaults applied when a row leaves a field unset.
const (
	DefaultAppearanceMode       = "auto"
	DefaultAppearanceScreenSize = "desktop"
	DefaultAppearanceWidth      = 1200
	DefaultAppearanceHeight     = 800
	DefaultBackgroundColor      = "#ffffff"
)
