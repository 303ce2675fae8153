package kb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/soupbadger/rpi-space/model"
)

// DefaultCapacity is the number of fixes retained when NewTrackStore is
// given a non-positive capacity. At one fix every two seconds this is a
// little over one ISS orbit.
const DefaultCapacity = 3000

// ErrInvalidFix is returned when a fix carries an out-of-range coordinate.
var ErrInvalidFix = errors.New("invalid fix")

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	EventFixRecorded EventType = iota
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type EventType
	Fix  model.Fix
}

// TrackStore is an in-memory, thread-safe ring of the most recent fixes,
// i.e. the satellite's recent ground track.
type TrackStore struct {
	mu sync.RWMutex

	fixes []model.Fix // ring buffer, len == capacity once full
	head  int         // index of the oldest fix once the ring is full
	cap   int

	subs    map[int]func(Event)
	nextSub int
}

// NewTrackStore constructs an empty store holding at most capacity fixes.
func NewTrackStore(capacity int) *TrackStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &TrackStore{
		fixes: make([]model.Fix, 0, capacity),
		cap:   capacity,
		subs:  make(map[int]func(Event)),
	}
}

// Record appends a fix, evicting the oldest one when full, and notifies
// subscribers.
func (s *TrackStore) Record(fix model.Fix) error {
	if !fix.Coord.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidFix, fix.Coord)
	}

	s.mu.Lock()
	if len(s.fixes) < s.cap {
		s.fixes = append(s.fixes, fix)
	} else {
		s.fixes[s.head] = fix
		s.head = (s.head + 1) % s.cap
	}
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	event := Event{Type: EventFixRecorded, Fix: fix}
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// Len returns the number of retained fixes.
func (s *TrackStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fixes)
}

// Latest returns the most recently recorded fix.
func (s *TrackStore) Latest() (model.Fix, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.fixes) == 0 {
		return model.Fix{}, false
	}
	idx := len(s.fixes) - 1
	if len(s.fixes) == s.cap {
		idx = (s.head + s.cap - 1) % s.cap
	}
	return s.fixes[idx], true
}

// Recent returns up to limit of the newest fixes, oldest first. A
// non-positive limit returns everything retained.
func (s *TrackStore) Recent(limit int) []model.Fix {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.fixes)
	if limit <= 0 || limit > n {
		limit = n
	}

	ordered := make([]model.Fix, 0, n)
	if n == s.cap {
		ordered = append(ordered, s.fixes[s.head:]...)
		ordered = append(ordered, s.fixes[:s.head]...)
	} else {
		ordered = append(ordered, s.fixes...)
	}
	return ordered[n-limit:]
}

// Subscribe registers a callback for store events. It returns an unsubscribe
// function that is safe to call more than once.
func (s *TrackStore) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}
