package model

// MotionSource indicates how a tracked satellite's position is determined.
type MotionSource int

const (
	MotionSourceUnknown MotionSource = iota
	MotionSourceAPI                  // polled from the public tracking API
	MotionSourceTLE                  // SGP4 propagation of a two-line element set
)

// String returns the lower-case config spelling of the source.
func (s MotionSource) String() string {
	switch s {
	case MotionSourceAPI:
		return "api"
	case MotionSourceTLE:
		return "tle"
	default:
		return "unknown"
	}
}

// ParseMotionSource maps a config value onto a MotionSource. Unknown values
// return MotionSourceUnknown.
func ParseMotionSource(s string) MotionSource {
	switch s {
	case "api", "":
		return MotionSourceAPI
	case "tle":
		return MotionSourceTLE
	default:
		return MotionSourceUnknown
	}
}

// Satellite describes the single object being tracked.
type Satellite struct {
	Name         string // display name, e.g. "ISS"
	NoradID      uint32 // optional
	MotionSource MotionSource

	// TLE lines, only used when MotionSource == MotionSourceTLE.
	TLELine1 string
	TLELine2 string
}
