package core

import (
	"time"

	"github.com/soupbadger/rpi-space/model"
)

// City strings shown in place of a resolved name.
const (
	CityPending    = "..."
	CityUnnamed    = "Over Ocean or Unnamed Area"
	CityAPIError   = "API Error"
	CityParseError = "Parsing Error"
)

// TrackingState is the single record the scheduler mutates. Copies handed out
// by Scheduler.State share nothing with the live record.
type TrackingState struct {
	position         *model.GeoCoordinate
	hasEverSucceeded bool
	closestCity      string
	notification     *model.Notification
}

func newTrackingState() TrackingState {
	return TrackingState{closestCity: CityPending}
}

// Position returns the last known position, if any.
func (s TrackingState) Position() (model.GeoCoordinate, bool) {
	if s.position == nil {
		return model.GeoCoordinate{}, false
	}
	return *s.position, true
}

// HasEverSucceeded reports whether any position fetch has succeeded.
func (s TrackingState) HasEverSucceeded() bool { return s.hasEverSucceeded }

// ClosestCity returns the current city line.
func (s TrackingState) ClosestCity() string { return s.closestCity }

// Notification returns the active notification, if any.
func (s TrackingState) Notification() (model.Notification, bool) {
	if s.notification == nil {
		return model.Notification{}, false
	}
	return *s.notification, true
}

func (s TrackingState) clone() TrackingState {
	out := s
	if s.position != nil {
		p := *s.position
		out.position = &p
	}
	if s.notification != nil {
		n := *s.notification
		out.notification = &n
	}
	return out
}

// raiseNetworkError shows msg unless a notification is already showing.
// The issue time of an active notification is never refreshed.
func (s *TrackingState) raiseNetworkError(msg string, now time.Time) bool {
	if s.notification != nil {
		return false
	}
	s.notification = &model.Notification{
		Kind:     model.NotificationNetworkError,
		Message:  msg,
		IssuedAt: now,
	}
	return true
}

func (s *TrackingState) clearNetworkError() bool {
	if s.notification == nil || s.notification.Kind != model.NotificationNetworkError {
		return false
	}
	s.notification = nil
	return true
}

func (s *TrackingState) expireNotification(now time.Time, lifetime time.Duration) bool {
	if s.notification == nil || now.Sub(s.notification.IssuedAt) <= lifetime {
		return false
	}
	s.notification = nil
	return true
}

// Snapshot renders the state for presentation on canvas at time now.
func (s TrackingState) Snapshot(satellite string, canvas model.Canvas, now time.Time) model.Snapshot {
	snap := model.Snapshot{
		Satellite:        satellite,
		At:               now,
		Canvas:           canvas,
		ClosestCity:      s.closestCity,
		HasEverSucceeded: s.hasEverSucceeded,
	}
	if s.position != nil {
		coord := *s.position
		pt := Project(coord, canvas.Width, canvas.Height)
		snap.Coords = &coord
		snap.Position = &pt
	}
	if s.notification != nil {
		msg := s.notification.Message
		snap.Notification = &msg
	}
	return snap
}
