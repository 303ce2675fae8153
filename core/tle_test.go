package core

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/soupbadger/rpi-space/internal/fetch"
	"github.com/soupbadger/rpi-space/model"
)

// ISS element set from 2008-09-20.
const (
	issLine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"
)

var issEpoch = time.Date(2008, time.September, 20, 12, 25, 40, 0, time.UTC)

func TestValidateTLE(t *testing.T) {
	if err := ValidateTLE(issLine1, issLine2); err != nil {
		t.Fatalf("ValidateTLE(iss) = %v", err)
	}

	badChecksum := issLine1[:68] + "0"
	tests := []struct {
		name         string
		line1, line2 string
	}{
		{"short", issLine1[:60], issLine2},
		{"swapped", issLine2, issLine1},
		{"checksum", badChecksum, issLine2},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateTLE(tt.line1, tt.line2); !errors.Is(err, ErrInvalidTLE) {
				t.Fatalf("ValidateTLE = %v, want ErrInvalidTLE", err)
			}
		})
	}
}

// Exact orbital values belong to go-satellite; here we only check that
// positions are plausible for a 51.6 degree orbit and move over time.
func TestTLESourcePropagatesOverTime(t *testing.T) {
	src := NewTLESource(issLine1, issLine2)
	if src.Err() != nil {
		t.Fatalf("NewTLESource: %v", src.Err())
	}

	first, err := src.PositionAt(issEpoch)
	if err != nil {
		t.Fatalf("PositionAt epoch: %v", err)
	}
	second, err := src.PositionAt(issEpoch.Add(5 * time.Minute))
	if err != nil {
		t.Fatalf("PositionAt epoch+5m: %v", err)
	}

	for _, c := range []struct{ lat, lon float64 }{{first.Lat, first.Lon}, {second.Lat, second.Lon}} {
		if math.Abs(c.lat) > 52 {
			t.Fatalf("latitude %v exceeds orbital inclination", c.lat)
		}
		if c.lon < -180 || c.lon > 180 {
			t.Fatalf("longitude %v out of range", c.lon)
		}
	}
	if first == second {
		t.Fatalf("expected position to change over time, got %+v twice", first)
	}
}

func TestTLESourceResolvesSubSecondFrames(t *testing.T) {
	src := NewTLESource(issLine1, issLine2)

	posAt := func(d time.Duration) model.GeoCoordinate {
		t.Helper()
		c, err := src.PositionAt(issEpoch.Add(d))
		if err != nil {
			t.Fatalf("PositionAt +%v: %v", d, err)
		}
		return c
	}
	start, mid, end := posAt(0), posAt(500*time.Millisecond), posAt(time.Second)

	if mid == start || mid == end {
		t.Fatalf("frame at +500ms = %+v, want it distinct from %+v and %+v", mid, start, end)
	}
	const eps = 1e-4
	lo, hi := math.Min(start.Lat, end.Lat), math.Max(start.Lat, end.Lat)
	if mid.Lat < lo-eps || mid.Lat > hi+eps {
		t.Fatalf("latitude at +500ms = %v, want within [%v, %v]", mid.Lat, lo, hi)
	}
	if posAt(100*time.Millisecond) == posAt(200*time.Millisecond) {
		t.Fatalf("frames inside one second should not repeat a position")
	}
}

func TestTLESourceFollowsClock(t *testing.T) {
	now := issEpoch
	src := NewTLESource(issLine1, issLine2, WithTLEClock(func() time.Time { return now }))

	got, err := src.FetchPosition(context.Background())
	if err != nil {
		t.Fatalf("FetchPosition: %v", err)
	}
	want, _ := src.PositionAt(issEpoch)
	if got != want {
		t.Fatalf("FetchPosition = %+v, want %+v", got, want)
	}
	if src.Source() != "tle" {
		t.Fatalf("Source() = %q, want tle", src.Source())
	}
}

func TestTLESourceInvalidReportsParseError(t *testing.T) {
	src := NewTLESource("garbage", "lines")

	_, err := src.FetchPosition(context.Background())
	if fetch.KindOf(err) != fetch.KindParse {
		t.Fatalf("kind = %v, want parse (err %v)", fetch.KindOf(err), err)
	}
	if !errors.Is(err, ErrInvalidTLE) {
		t.Fatalf("error should wrap ErrInvalidTLE, got %v", err)
	}
}

func TestTLESourceInvalidRaisesNotification(t *testing.T) {
	s := NewScheduler("ISS", NewTLESource("", ""), nil)
	s.Tick(context.Background(), at(0))

	if _, ok := s.State().Notification(); !ok {
		t.Fatalf("invalid TLE should surface as a notification")
	}
}

func TestWrapLongitude(t *testing.T) {
	tests := map[float64]float64{0: 0, 190: -170, -190: 170, 540: -180, -45: -45}
	for in, want := range tests {
		if got := wrapLongitude(in); math.Abs(got-want) > 1e-9 {
			t.Fatalf("wrapLongitude(%v) = %v, want %v", in, got, want)
		}
	}
}
