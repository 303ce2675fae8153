package model

import (
	"fmt"
	"time"
)

// GeoCoordinate is a WGS84 latitude/longitude pair in degrees.
type GeoCoordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate lies within [-90,90] x [-180,180].
func (c GeoCoordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

func (c GeoCoordinate) String() string {
	return fmt.Sprintf("Lat: %.2f, Lon: %.2f", c.Lat, c.Lon)
}

// PixelPoint is a position on the presentation canvas. It is always derived
// from a GeoCoordinate and a Canvas, never stored on its own.
type PixelPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Canvas is the fixed-size drawing surface the presentation layer renders to.
type Canvas struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Fix is one successfully fetched position.
type Fix struct {
	Coord  GeoCoordinate `json:"coord"`
	At     time.Time     `json:"at"`
	Source string        `json:"source"`
}
