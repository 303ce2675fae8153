package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies why a fetch failed. The distinction is user visible: city
// lookups render network and parse failures differently.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNetwork covers transport errors, timeouts and non-2xx responses.
	KindNetwork
	// KindParse covers malformed bodies and unexpected response shapes.
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Error is returned by every fetcher in this package.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func networkError(op string, err error) error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

func parseError(op string, err error) error {
	return &Error{Kind: KindParse, Op: op, Err: err}
}

// KindOf returns the Kind carried by err, or KindUnknown when err is nil or
// was not produced by this package.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// HTTPError represents a non-2xx upstream response.
type HTTPError struct {
	StatusCode int
	URL        string
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}
