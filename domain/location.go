package domain

import "time"

// LocationSnapshot is a single position report. The hub keeps it only for the
// duration of one fan-out; durable history lives behind the history writer.
type LocationSnapshot struct {
	UserID       string
	Latitude     float64
	Longitude    float64
	Accuracy     float64
	Address      string
	PlaceLabel   string
	BatteryLevel *int
	At           time.Time
}

// GeoPoint is an optional position attached to an alert.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
	Address   string
}
