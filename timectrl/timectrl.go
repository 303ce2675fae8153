package timectrl

import (
	"context"
	"sync"
	"time"
)

// Clock is an interface for reading the controller's notion of "now". The
// tracker loop and its presenters depend on it rather than on time.Now so
// tests can drive time explicitly.
type Clock interface {
	Now() time.Time
}

// Mode describes how the TimeController advances time.
type Mode int

const (
	// RealTime fires once per Tick of wall-clock time and reports the wall
	// clock as the current time.
	RealTime Mode = iota
	// Accelerated advances by Tick as quickly as the loop can run, without
	// waiting. Used for replays and tests.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return "unknown"
	}
}

// Listener is invoked once per frame with the frame's time. Listeners run
// sequentially on the controller goroutine; a slow listener delays the next
// frame rather than overlapping with it.
type Listener func(ctx context.Context, now time.Time)

// TimeController drives the frame loop and notifies registered listeners.
// It implements Clock.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	// currentTime tracks the time of the most recent frame.
	currentTime time.Time

	listeners []Listener

	// wallNow is overridable for tests.
	wallNow func() time.Time
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
		wallNow:     time.Now,
	}
}

// Now returns the time of the most recent frame. Implements Clock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime overrides the current time. It does not fire listeners.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
}

// AddListener registers a callback invoked on every frame.
func (tc *TimeController) AddListener(fn Listener) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Run drives frames until ctx is cancelled or, when duration > 0, until
// duration has elapsed. It returns ctx.Err() on cancellation and nil when the
// duration ran out.
//
// In RealTime mode the first frame fires immediately so the first fetch does
// not wait a full tick.
func (tc *TimeController) Run(ctx context.Context, duration time.Duration) error {
	switch tc.Mode {
	case Accelerated:
		return tc.runAccelerated(ctx, duration)
	default:
		return tc.runRealTime(ctx, duration)
	}
}

// Start runs the controller in a separate goroutine. The returned channel is
// closed when Run returns.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tc.Run(ctx, duration)
	}()
	return done
}

func (tc *TimeController) runRealTime(ctx context.Context, duration time.Duration) error {
	ticker := time.NewTicker(tc.Tick)
	defer ticker.Stop()

	begin := tc.wallNow()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := tc.wallNow().UTC()
		if duration > 0 && now.Sub(begin) >= duration {
			return nil
		}
		tc.fire(ctx, now)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (tc *TimeController) runAccelerated(ctx context.Context, duration time.Duration) error {
	tc.mu.Lock()
	simTime := tc.StartTime
	tc.currentTime = simTime
	tc.mu.Unlock()

	elapsed := time.Duration(0)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if duration > 0 && elapsed >= duration {
			return nil
		}

		simTime = simTime.Add(tc.Tick)
		elapsed += tc.Tick
		tc.fire(ctx, simTime)
	}
}

func (tc *TimeController) fire(ctx context.Context, now time.Time) {
	tc.mu.Lock()
	tc.currentTime = now
	listeners := append([]Listener(nil), tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(ctx, now)
	}
}
