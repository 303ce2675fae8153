package model

import "time"

// Snapshot is the read-only view of tracking state handed to presentation
// consumers once per frame. Pointer fields are nil when the value is absent.
type Snapshot struct {
	Satellite        string         `json:"satellite"`
	At               time.Time      `json:"at"`
	Canvas           Canvas         `json:"canvas"`
	Position         *PixelPoint    `json:"position,omitempty"`
	Coords           *GeoCoordinate `json:"coords,omitempty"`
	ClosestCity      string         `json:"closest_city"`
	Notification     *string        `json:"notification,omitempty"`
	HasEverSucceeded bool           `json:"has_ever_succeeded"`
}

// Fetching reports whether the presentation layer should show a "fetching"
// placeholder instead of position data.
func (s Snapshot) Fetching() bool {
	return s.Position == nil && !s.HasEverSucceeded
}
