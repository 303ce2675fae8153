package core

import (
	"context"
	"sync"
	"time"

	"github.com/soupbadger/rpi-space/internal/logging"
	"github.com/soupbadger/rpi-space/model"
	"github.com/soupbadger/rpi-space/timectrl"
)

// Presenter consumes one snapshot per frame. Implementations must not block
// for long; they run on the tracker goroutine.
type Presenter interface {
	Present(ctx context.Context, snap model.Snapshot)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, snap model.Snapshot)

// Present implements Presenter.
func (f PresenterFunc) Present(ctx context.Context, snap model.Snapshot) { f(ctx, snap) }

// Tracker runs the scheduler once per frame and publishes the resulting
// snapshot to every presenter.
type Tracker struct {
	scheduler *Scheduler
	canvas    model.Canvas

	mu         sync.RWMutex
	presenters []Presenter
	last       model.Snapshot
	frames     uint64
}

// NewTracker wraps s for presentation on canvas.
func NewTracker(s *Scheduler, canvas model.Canvas) *Tracker {
	return &Tracker{
		scheduler: s,
		canvas:    canvas,
		last: model.Snapshot{
			Satellite:   s.Satellite(),
			Canvas:      canvas,
			ClosestCity: CityPending,
		},
	}
}

// AddPresenter registers p for every subsequent frame.
func (t *Tracker) AddPresenter(p Presenter) {
	if p == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.presenters = append(t.presenters, p)
}

// Step runs one frame at time now and returns the published snapshot.
func (t *Tracker) Step(ctx context.Context, now time.Time) model.Snapshot {
	t.scheduler.Tick(ctx, now)
	snap := t.scheduler.state.Snapshot(t.scheduler.Satellite(), t.canvas, now)

	t.mu.Lock()
	t.last = snap
	t.frames++
	presenters := append([]Presenter(nil), t.presenters...)
	t.mu.Unlock()

	for _, p := range presenters {
		p.Present(ctx, snap)
	}
	return snap
}

// Last returns the most recently published snapshot.
func (t *Tracker) Last() model.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// Frames returns the number of frames stepped so far.
func (t *Tracker) Frames() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frames
}

// Attach drives Step from every frame of tc.
func (t *Tracker) Attach(tc *timectrl.TimeController) {
	tc.AddListener(func(ctx context.Context, now time.Time) {
		t.Step(ctx, now)
	})
}

// LogPresenter logs a line whenever the visible content changes: the
// notification, the city line, or the first fix.
type LogPresenter struct {
	log  logging.Logger
	prev *model.Snapshot
}

// NewLogPresenter returns a presenter writing to log.
func NewLogPresenter(log logging.Logger) *LogPresenter {
	if log == nil {
		log = logging.Noop()
	}
	return &LogPresenter{log: log}
}

// Present implements Presenter.
func (p *LogPresenter) Present(ctx context.Context, snap model.Snapshot) {
	prev := p.prev
	p.prev = &snap

	if msg := notificationText(snap); msg != notificationText(derefOr(prev)) {
		if msg != "" {
			p.log.Warn(ctx, "notification shown", logging.String("message", msg))
		} else {
			p.log.Info(ctx, "notification cleared")
		}
	}

	if snap.Fetching() {
		if prev == nil {
			p.log.Info(ctx, "fetching position", logging.String("satellite", snap.Satellite))
		}
		return
	}

	if prev == nil || !prev.HasEverSucceeded {
		p.log.Info(ctx, "first position received", positionFields(snap)...)
	}
	if prev != nil && prev.ClosestCity != snap.ClosestCity {
		p.log.Info(ctx, "closest city changed", append(positionFields(snap), logging.String("city", snap.ClosestCity))...)
	}
}

func positionFields(snap model.Snapshot) []logging.Field {
	if snap.Coords == nil {
		return nil
	}
	return []logging.Field{
		logging.String("satellite", snap.Satellite),
		logging.String("position", snap.Coords.String()),
	}
}

func notificationText(snap model.Snapshot) string {
	if snap.Notification == nil {
		return ""
	}
	return *snap.Notification
}

func derefOr(s *model.Snapshot) model.Snapshot {
	if s == nil {
		return model.Snapshot{}
	}
	return *s
}
