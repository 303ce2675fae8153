package core

import "github.com/soupbadger/rpi-space/model"

// Project maps a geographic coordinate onto a canvas using an
// equirectangular projection. Longitude -180 maps to x=0 and +180 to
// x=width; latitude +90 maps to y=0 and -90 to y=height.
//
// The result is recomputed on every call so a canvas resize can never leave
// a stale pixel position behind.
func Project(c model.GeoCoordinate, width, height int) model.PixelPoint {
	return model.PixelPoint{
		X: (c.Lon + 180) * float64(width) / 360,
		Y: (90 - c.Lat) * float64(height) / 180,
	}
}

// Unproject is the inverse of Project. A zero-sized canvas yields the
// coordinate at the projection origin (lat 90, lon -180).
func Unproject(p model.PixelPoint, width, height int) model.GeoCoordinate {
	c := model.GeoCoordinate{Lat: 90, Lon: -180}
	if width > 0 {
		c.Lon = p.X*360/float64(width) - 180
	}
	if height > 0 {
		c.Lat = 90 - p.Y*180/float64(height)
	}
	return c
}
