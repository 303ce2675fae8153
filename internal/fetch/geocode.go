package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/url"
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
	// DefaultGeocodeURL is the geocode.maps.co reverse endpoint.
	DefaultGeocodeURL = "https://geocode.maps.co/reverse"
	// DefaultGeocodeTimeout bounds a single reverse lookup.
	DefaultGeocodeTimeout = 10 * time.Second
)

// City is the result of a reverse lookup. Found is false for valid
// responses that name no place, e.g. open ocean.
type City struct {
	Name  string
	Found bool
}

// GeocodeClient resolves a coordinate to the nearest place name.
type GeocodeClient struct {
	client  Doer
	url     string
	apiKey  string
	timeout time.Duration
	log     logging.Logger
	tracer  trace.Tracer
}

// GeocodeOption customises a GeocodeClient.
type GeocodeOption func(*GeocodeClient)

// WithGeocodeHTTPClient overrides the HTTP client.
func WithGeocodeHTTPClient(c Doer) GeocodeOption {
	return func(g *GeocodeClient) {
		if c != nil {
			g.client = c
		}
	}
}

// WithGeocodeLogger attaches a logger.
func WithGeocodeLogger(l logging.Logger) GeocodeOption {
	return func(g *GeocodeClient) {
		if l != nil {
			g.log = l
		}
	}
}

// NewGeocodeClient builds a reverse geocoding client. The API key is sent as
// the api_key query parameter.
func NewGeocodeClient(url, apiKey string, timeout time.Duration, opts ...GeocodeOption) *GeocodeClient {
	if url == "" {
		url = DefaultGeocodeURL
	}
	if timeout <= 0 {
		timeout = DefaultGeocodeTimeout
	}
	g := &GeocodeClient{
		client:  &http.Client{Timeout: timeout},
		url:     url,
		apiKey:  apiKey,
		timeout: timeout,
		log:     logging.Noop(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ResolveCity performs exactly one reverse lookup for coord.
func (g *GeocodeClient) ResolveCity(ctx context.Context, coord model.GeoCoordinate) (_ City, err error) {
	ctx, log := logging.WithFetchLogger(ctx, g.log)
	ctx, span := g.tracer.Start(ctx, "geocode.reverse",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Float64("position.lat", coord.Lat),
			attribute.Float64("position.lon", coord.Lon),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, KindOf(err).String())
		}
		span.End()
	}()

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(coord.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(coord.Lon, 'f', -1, 64))
	q.Set("api_key", g.apiKey)

	body, err := get(ctx, g.client, "reverse geocode", g.url, q, g.timeout)
	if err != nil {
		log.Debug(ctx, "geocode request failed", logging.Err(err))
		return City{}, err
	}

	city, err := ParseCity(body)
	if err != nil {
		log.Debug(ctx, "geocode response rejected", logging.Err(err))
		return City{}, err
	}

	span.SetAttributes(
		attribute.String("geocode.city", city.Name),
		attribute.Bool("geocode.found", city.Found),
	)
	return city, nil
}

// ParseCity applies the resolution policy to a reverse geocoding body: a
// present address.city wins, then the text of display_name before its first
// comma, otherwise an unresolved City. Names are returned exactly as sent.
func ParseCity(body []byte) (City, error) {
	const op = "parse city"

	if !gjson.ValidBytes(body) {
		return City{}, parseError(op, errors.New("invalid JSON body"))
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return City{}, parseError(op, errors.New("response is not a JSON object"))
	}

	if city := root.Get("address.city"); city.Exists() {
		return City{Name: city.String(), Found: true}, nil
	}

	if display := root.Get("display_name"); display.Exists() {
		first, _, _ := strings.Cut(display.String(), ",")
		return City{Name: first, Found: true}, nil
	}

	return City{}, nil
}
