package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/soupbadger/rpi-space/internal/logging"
	"github.com/soupbadger/rpi-space/model"
)

const (
	// DefaultPositionURL is the open-notify ISS endpoint.
	DefaultPositionURL = "http://api.open-notify.org/iss-now.json"
	// DefaultPositionTimeout bounds a single position fetch.
	DefaultPositionTimeout = 5 * time.Second

	positionSuccessToken = "success"
	tracerName           = "github.com/soupbadger/rpi-space/internal/fetch"
)

var (
	errNotSuccess   = errors.New("response did not report success")
	errMissingField = errors.New("missing field")
	errOutOfRange   = errors.New("coordinate out of range")
)

// PositionClient fetches the current satellite position from an
// open-notify style API:
//
//	{"message": "success", "iss_position": {"latitude": "51.5", "longitude": "-0.12"}}
type PositionClient struct {
	client  Doer
	url     string
	timeout time.Duration
	log     logging.Logger
	tracer  trace.Tracer
}

// PositionOption customises a PositionClient.
type PositionOption func(*PositionClient)

// WithPositionHTTPClient overrides the HTTP client.
func WithPositionHTTPClient(c Doer) PositionOption {
	return func(p *PositionClient) {
		if c != nil {
			p.client = c
		}
	}
}

// WithPositionLogger attaches a logger.
func WithPositionLogger(l logging.Logger) PositionOption {
	return func(p *PositionClient) {
		if l != nil {
			p.log = l
		}
	}
}

// NewPositionClient builds a client for url. Empty url and non-positive
// timeout fall back to the defaults.
func NewPositionClient(url string, timeout time.Duration, opts ...PositionOption) *PositionClient {
	if url == "" {
		url = DefaultPositionURL
	}
	if timeout <= 0 {
		timeout = DefaultPositionTimeout
	}
	p := &PositionClient{
		client:  &http.Client{Timeout: timeout},
		url:     url,
		timeout: timeout,
		log:     logging.Noop(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Source identifies the position provider in fixes and metrics.
func (p *PositionClient) Source() string { return model.MotionSourceAPI.String() }

// FetchPosition performs exactly one request. It never retries; the
// scheduler owns the retry cadence.
func (p *PositionClient) FetchPosition(ctx context.Context) (_ model.GeoCoordinate, err error) {
	ctx, log := logging.WithFetchLogger(ctx, p.log)
	ctx, span := p.tracer.Start(ctx, "position.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.url", p.url)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, KindOf(err).String())
		}
		span.End()
	}()

	body, err := get(ctx, p.client, "fetch position", p.url, nil, p.timeout)
	if err != nil {
		log.Debug(ctx, "position request failed", logging.Err(err))
		return model.GeoCoordinate{}, err
	}

	coord, err := ParsePosition(body)
	if err != nil {
		log.Debug(ctx, "position response rejected", logging.Err(err))
		return model.GeoCoordinate{}, err
	}

	span.SetAttributes(
		attribute.Float64("position.lat", coord.Lat),
		attribute.Float64("position.lon", coord.Lon),
	)
	return coord, nil
}

// ParsePosition extracts the coordinate from a position API body.
func ParsePosition(body []byte) (model.GeoCoordinate, error) {
	const op = "parse position"

	if !gjson.ValidBytes(body) {
		return model.GeoCoordinate{}, parseError(op, errors.New("invalid JSON body"))
	}

	res := gjson.GetManyBytes(body, "message", "iss_position.latitude", "iss_position.longitude")
	if res[0].String() != positionSuccessToken {
		return model.GeoCoordinate{}, parseError(op, fmt.Errorf("%w: message=%q", errNotSuccess, res[0].String()))
	}

	lat, err := floatField(res[1], "latitude")
	if err != nil {
		return model.GeoCoordinate{}, parseError(op, err)
	}
	lon, err := floatField(res[2], "longitude")
	if err != nil {
		return model.GeoCoordinate{}, parseError(op, err)
	}

	coord := model.GeoCoordinate{Lat: lat, Lon: lon}
	if !coord.Valid() {
		return model.GeoCoordinate{}, parseError(op, fmt.Errorf("%w: %s", errOutOfRange, coord))
	}
	return coord, nil
}

// floatField accepts both the stringified form the API uses and plain JSON
// numbers.
func floatField(r gjson.Result, name string) (float64, error) {
	switch r.Type {
	case gjson.Number:
		return r.Float(), nil
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return 0, fmt.Errorf("%s %q: %w", name, r.Str, err)
		}
		return f, nil
	case gjson.Null:
		if !r.Exists() {
			return 0, fmt.Errorf("%w: %s", errMissingField, name)
		}
		return 0, fmt.Errorf("%s is null", name)
	default:
		return 0, fmt.Errorf("%s has unexpected type %s", name, r.Type)
	}
}
