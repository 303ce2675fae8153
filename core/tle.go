package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/soupbadger/rpi-space/internal/fetch"
	"github.com/soupbadger/rpi-space/model"
)

const tleLineLength = 69

// ErrInvalidTLE is wrapped by every TLE validation failure.
var ErrInvalidTLE = errors.New("invalid TLE")

// TLESource derives positions offline by SGP4 propagation of a two-line
// element set. An invalid TLE does not fail construction; every fetch then
// reports a parse error so the usual notification path applies.
type TLESource struct {
	sat satellite.Satellite
	err error
	now func() time.Time
}

// TLEOption customises a TLESource.
type TLEOption func(*TLESource)

// WithTLEClock propagates to the time reported by now instead of the wall
// clock. Used to follow an accelerated time controller.
func WithTLEClock(now func() time.Time) TLEOption {
	return func(s *TLESource) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTLESource parses line1 and line2 with WGS72 gravity constants.
func NewTLESource(line1, line2 string, opts ...TLEOption) *TLESource {
	s := &TLESource{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)
	if err := ValidateTLE(line1, line2); err != nil {
		s.err = err
		return s
	}
	sat, err := tleToSat(line1, line2)
	if err != nil {
		s.err = err
		return s
	}
	s.sat = sat
	return s
}

// Source implements PositionSource.
func (s *TLESource) Source() string { return model.MotionSourceTLE.String() }

// Err returns the TLE parse error, if any.
func (s *TLESource) Err() error { return s.err }

// FetchPosition implements PositionSource.
func (s *TLESource) FetchPosition(ctx context.Context) (model.GeoCoordinate, error) {
	if err := ctx.Err(); err != nil {
		return model.GeoCoordinate{}, &fetch.Error{Kind: fetch.KindNetwork, Op: "tle.propagate", Err: err}
	}
	if s.err != nil {
		return model.GeoCoordinate{}, &fetch.Error{Kind: fetch.KindParse, Op: "tle.parse", Err: s.err}
	}
	coord, err := s.PositionAt(s.now())
	if err != nil {
		return model.GeoCoordinate{}, &fetch.Error{Kind: fetch.KindParse, Op: "tle.propagate", Err: err}
	}
	return coord, nil
}

// PositionAt propagates the satellite to t and returns its geodetic
// sub-satellite point in degrees. Sub-second offsets are interpolated between
// the neighbouring whole seconds.
func (s *TLESource) PositionAt(t time.Time) (model.GeoCoordinate, error) {
	if s.err != nil {
		return model.GeoCoordinate{}, s.err
	}
	t = t.UTC()
	whole := t.Truncate(time.Second)
	frac := t.Sub(whole).Seconds()

	posECI := propagate(s.sat, whole)
	if frac > 0 {
		next := propagate(s.sat, whole.Add(time.Second))
		posECI = satellite.Vector3{
			X: posECI.X + (next.X-posECI.X)*frac,
			Y: posECI.Y + (next.Y-posECI.Y)*frac,
			Z: posECI.Z + (next.Z-posECI.Z)*frac,
		}
	}
	if math.IsNaN(posECI.X) || math.IsNaN(posECI.Y) || math.IsNaN(posECI.Z) {
		return model.GeoCoordinate{}, fmt.Errorf("propagation to %s produced no position", t.Format(time.RFC3339Nano))
	}
	gmst := satellite.ThetaG_JD(julianDay(whole) + frac/86400)
	_, _, lla := satellite.ECIToLLA(posECI, gmst)

	coord := model.GeoCoordinate{
		Lat: lla.Latitude * 180 / math.Pi,
		Lon: wrapLongitude(lla.Longitude * 180 / math.Pi),
	}
	if !coord.Valid() {
		return model.GeoCoordinate{}, fmt.Errorf("propagated coordinate out of range: %s", coord)
	}
	return coord, nil
}

// propagate runs SGP4 to a whole second; the library has no finer input.
func propagate(sat satellite.Satellite, t time.Time) satellite.Vector3 {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	pos, _ := satellite.Propagate(sat, year, int(month), day, hour, min, sec)
	return pos
}

func julianDay(t time.Time) float64 {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	return satellite.JDay(year, int(month), day, hour, min, sec)
}

// ValidateTLE checks line numbers, lengths, checksums and that both lines
// describe the same catalog number.
func ValidateTLE(line1, line2 string) error {
	for i, line := range []string{line1, line2} {
		n := i + 1
		if len(line) != tleLineLength {
			return fmt.Errorf("%w: line %d has length %d, want %d", ErrInvalidTLE, n, len(line), tleLineLength)
		}
		if line[0] != byte('0'+n) || line[1] != ' ' {
			return fmt.Errorf("%w: line %d must start with %q", ErrInvalidTLE, n, fmt.Sprintf("%d ", n))
		}
		want := int(line[68] - '0')
		if got := tleChecksum(line[:68]); got != want {
			return fmt.Errorf("%w: line %d checksum %d, want %d", ErrInvalidTLE, n, got, want)
		}
	}
	if line1[2:7] != line2[2:7] {
		return fmt.Errorf("%w: catalog numbers differ (%s vs %s)", ErrInvalidTLE, line1[2:7], line2[2:7])
	}
	return nil
}

func tleChecksum(s string) int {
	sum := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			sum += int(r - '0')
		case r == '-':
			sum++
		}
	}
	return sum % 10
}

// tleToSat guards against panics from malformed numeric fields that pass the
// checksum.
func tleToSat(line1, line2 string) (sat satellite.Satellite, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidTLE, r)
		}
	}()
	return satellite.TLEToSat(line1, line2, satellite.GravityWGS72), nil
}

func wrapLongitude(deg float64) float64 {
	deg = math.Mod(deg+180, 360)
	if deg < 0 {
		deg += 360
	}
	return deg - 180
}
