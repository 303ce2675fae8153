package core

//go:generate mockgen -destination=mocks/mock_sources.go -package=mocks -source=sources.go

import (
	"context"
	"time"

	"github.com/soupbadger/rpi-space/internal/fetch"
	"github.com/soupbadger/rpi-space/model"
)

// PositionSource yields the satellite's current sub-satellite point.
type PositionSource interface {
	FetchPosition(ctx context.Context) (model.GeoCoordinate, error)
	// Source names where positions come from, e.g. "api" or "tle".
	Source() string
}

// CityResolver maps a coordinate to the nearest named place.
type CityResolver interface {
	ResolveCity(ctx context.Context, coord model.GeoCoordinate) (fetch.City, error)
}

// FixRecorder receives every successful position fix.
type FixRecorder interface {
	Record(fix model.Fix) error
}

// Metrics is the subset of the Prometheus collector the scheduler reports to.
type Metrics interface {
	ObserveFetch(name, outcome string, d time.Duration)
	SetNotificationActive(active bool)
	SetPosition(coord model.GeoCoordinate)
}

type noopMetrics struct{}

func (noopMetrics) ObserveFetch(string, string, time.Duration) {}
func (noopMetrics) SetNotificationActive(bool)                 {}
func (noopMetrics) SetPosition(model.GeoCoordinate)            {}
