package core

import (
	"context"
	"fmt"
	"time"

	"github.com/soupbadger/rpi-space/internal/fetch"
	"github.com/soupbadger/rpi-space/internal/logging"
	"github.com/soupbadger/rpi-space/model"
)

const (
	DefaultPositionInterval     = 2 * time.Second
	DefaultCityInterval         = 10 * time.Second
	DefaultNotificationDuration = 5 * time.Second
)

// Fetch names reported to Metrics.
const (
	fetchPosition = "position"
	fetchCity     = "city"
)

// Timer gates a periodic fetch. A zero LastFire means the timer has never
// fired, so it is due on the first tick.
type Timer struct {
	LastFire time.Time
	Interval time.Duration
}

// Due reports whether strictly more than Interval has elapsed since LastFire.
func (t Timer) Due(now time.Time) bool {
	return t.LastFire.IsZero() || now.Sub(t.LastFire) > t.Interval
}

// Scheduler decides on every tick which fetches to issue and reconciles their
// results into TrackingState. It is not safe for concurrent use; the tracker
// loop is its only caller.
type Scheduler struct {
	satellite string
	positions PositionSource
	cities    CityResolver
	track     FixRecorder
	metrics   Metrics
	log       logging.Logger

	notificationDuration time.Duration

	positionTimer Timer
	cityTimer     Timer
	state         TrackingState
}

// SchedulerOption customises a Scheduler.
type SchedulerOption func(*Scheduler)

// WithPositionInterval sets the minimum gap between position fetches.
func WithPositionInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.positionTimer.Interval = d
		}
	}
}

// WithCityInterval sets the minimum gap between city lookups.
func WithCityInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.cityTimer.Interval = d
		}
	}
}

// WithNotificationDuration sets how long a notification stays visible.
func WithNotificationDuration(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.notificationDuration = d
		}
	}
}

// WithFixRecorder forwards successful fixes to r.
func WithFixRecorder(r FixRecorder) SchedulerOption {
	return func(s *Scheduler) { s.track = r }
}

// WithMetrics reports fetch outcomes and state gauges to m.
func WithMetrics(m Metrics) SchedulerOption {
	return func(s *Scheduler) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l logging.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// NewScheduler builds a scheduler for the named satellite. cities may be nil,
// in which case the closest city stays at its placeholder.
func NewScheduler(satellite string, positions PositionSource, cities CityResolver, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		satellite:            satellite,
		positions:            positions,
		cities:               cities,
		metrics:              noopMetrics{},
		log:                  logging.Noop(),
		notificationDuration: DefaultNotificationDuration,
		positionTimer:        Timer{Interval: DefaultPositionInterval},
		cityTimer:            Timer{Interval: DefaultCityInterval},
		state:                newTrackingState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logging.String("satellite", satellite))
	return s
}

// Satellite returns the tracked satellite's display name.
func (s *Scheduler) Satellite() string { return s.satellite }

// State returns a copy of the current tracking state.
func (s *Scheduler) State() TrackingState { return s.state.clone() }

// Timers returns copies of the position and city timers.
func (s *Scheduler) Timers() (position, city Timer) {
	return s.positionTimer, s.cityTimer
}

// Tick runs one scheduling pass at time now: a position fetch if due, then a
// city lookup if due and a position is known, then notification expiry.
// Fetch failures are absorbed into the state; Tick never fails.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	if s.positions != nil && s.positionTimer.Due(now) {
		s.positionTimer.LastFire = now
		s.refreshPosition(ctx, now)
	}

	if coord, ok := s.state.Position(); ok && s.cities != nil && s.cityTimer.Due(now) {
		s.cityTimer.LastFire = now
		s.refreshCity(ctx, coord)
	}

	if s.state.expireNotification(now, s.notificationDuration) {
		s.log.Debug(ctx, "notification expired")
		s.metrics.SetNotificationActive(false)
	}
}

func (s *Scheduler) refreshPosition(ctx context.Context, now time.Time) {
	ctx, log := logging.WithFetchLogger(ctx, s.log)

	start := time.Now()
	coord, err := s.positions.FetchPosition(ctx)
	elapsed := time.Since(start)

	if err != nil {
		s.metrics.ObserveFetch(fetchPosition, fetch.KindOf(err).String(), elapsed)
		log.Warn(ctx, "position fetch failed",
			logging.String("source", s.positions.Source()),
			logging.String("kind", fetch.KindOf(err).String()),
			logging.Err(err),
		)
		msg := fmt.Sprintf("Network/API Error: Unable to fetch %s location", s.satellite)
		if s.state.raiseNetworkError(msg, now) {
			s.metrics.SetNotificationActive(true)
		}
		return
	}

	s.metrics.ObserveFetch(fetchPosition, "success", elapsed)
	s.state.position = &coord
	s.state.hasEverSucceeded = true
	if s.state.clearNetworkError() {
		s.metrics.SetNotificationActive(false)
	}
	s.metrics.SetPosition(coord)
	log.Debug(ctx, "position updated",
		logging.Float("lat", coord.Lat),
		logging.Float("lon", coord.Lon),
		logging.Duration("elapsed", elapsed),
	)

	if s.track != nil {
		fix := model.Fix{Coord: coord, At: now, Source: s.positions.Source()}
		if err := s.track.Record(fix); err != nil {
			log.Warn(ctx, "record fix failed", logging.Err(err))
		}
	}
}

func (s *Scheduler) refreshCity(ctx context.Context, coord model.GeoCoordinate) {
	ctx, log := logging.WithFetchLogger(ctx, s.log)

	start := time.Now()
	city, err := s.cities.ResolveCity(ctx, coord)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		kind := fetch.KindOf(err)
		s.metrics.ObserveFetch(fetchCity, kind.String(), elapsed)
		if kind == fetch.KindParse {
			s.state.closestCity = CityParseError
		} else {
			s.state.closestCity = CityAPIError
		}
		log.Warn(ctx, "city lookup failed", logging.String("kind", kind.String()), logging.Err(err))
	case !city.Found:
		s.metrics.ObserveFetch(fetchCity, "unresolved", elapsed)
		s.state.closestCity = CityUnnamed
	default:
		s.metrics.ObserveFetch(fetchCity, "success", elapsed)
		s.state.closestCity = city.Name
		log.Debug(ctx, "city resolved", logging.String("city", city.Name))
	}
}
