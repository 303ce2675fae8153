package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/soupbadger/rpi-space/model"
)

// Fetch names used as the "fetch" label.
const (
	FetchPosition = "position"
	FetchCity     = "city"
)

// TrackerCollector bundles Prometheus metrics for the tracker loop and its
// side servers. All methods are safe to call on a nil collector.
type TrackerCollector struct {
	gatherer prometheus.Gatherer

	Fetches        *prometheus.CounterVec
	FetchDurations *prometheus.HistogramVec
	CacheLookups   *prometheus.CounterVec

	NotificationActive prometheus.Gauge
	HasFix             prometheus.Gauge
	Latitude           prometheus.Gauge
	Longitude          prometheus.Gauge

	RPCRequests *prometheus.CounterVec
}

// NewTrackerCollector registers tracker metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewTrackerCollector(reg prometheus.Registerer) (*TrackerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	fetches, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_fetches_total",
		Help: "Upstream fetch attempts, labeled by fetch kind and outcome.",
	}, []string{"fetch", "outcome"}), "tracker_fetches_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tracker_fetch_duration_seconds",
		Help:    "Upstream fetch latency in seconds.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"fetch"}), "tracker_fetch_duration_seconds")
	if err != nil {
		return nil, err
	}

	cache, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_city_cache_lookups_total",
		Help: "City cache lookups, labeled by result (hit, miss, error).",
	}, []string{"result"}), "tracker_city_cache_lookups_total")
	if err != nil {
		return nil, err
	}

	notification, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_notification_active",
		Help: "1 while a user-visible error notification is showing.",
	}), "tracker_notification_active")
	if err != nil {
		return nil, err
	}
	hasFix, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_has_fix",
		Help: "1 once a position has ever been fetched successfully.",
	}), "tracker_has_fix")
	if err != nil {
		return nil, err
	}
	lat, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_position_latitude_degrees",
		Help: "Latitude of the last known position.",
	}), "tracker_position_latitude_degrees")
	if err != nil {
		return nil, err
	}
	lon, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_position_longitude_degrees",
		Help: "Longitude of the last known position.",
	}), "tracker_position_longitude_degrees")
	if err != nil {
		return nil, err
	}

	rpcs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_grpc_requests_total",
		Help: "Handled gRPC requests, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "tracker_grpc_requests_total")
	if err != nil {
		return nil, err
	}

	return &TrackerCollector{
		gatherer:           gatherer,
		Fetches:            fetches,
		FetchDurations:     durations,
		CacheLookups:       cache,
		NotificationActive: notification,
		HasFix:             hasFix,
		Latitude:           lat,
		Longitude:          lon,
		RPCRequests:        rpcs,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *TrackerCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *TrackerCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveFetch records one fetch attempt.
func (c *TrackerCollector) ObserveFetch(fetch, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	if c.Fetches != nil {
		c.Fetches.WithLabelValues(fetch, outcome).Inc()
	}
	if c.FetchDurations != nil {
		c.FetchDurations.WithLabelValues(fetch).Observe(d.Seconds())
	}
}

// ObserveCacheLookup records a city cache lookup result.
func (c *TrackerCollector) ObserveCacheLookup(result string) {
	if c == nil || c.CacheLookups == nil {
		return
	}
	c.CacheLookups.WithLabelValues(result).Inc()
}

// SetNotificationActive updates the notification gauge.
func (c *TrackerCollector) SetNotificationActive(active bool) {
	if c == nil || c.NotificationActive == nil {
		return
	}
	c.NotificationActive.Set(boolToFloat(active))
}

// SetPosition updates the position gauges and marks a fix as present.
func (c *TrackerCollector) SetPosition(coord model.GeoCoordinate) {
	if c == nil {
		return
	}
	if c.HasFix != nil {
		c.HasFix.Set(1)
	}
	if c.Latitude != nil {
		c.Latitude.Set(coord.Lat)
	}
	if c.Longitude != nil {
		c.Longitude.Set(coord.Lon)
	}
}

// UnaryServerInterceptor records request counts for unary RPCs.
func (c *TrackerCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)

		if c == nil || c.RPCRequests == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		c.RPCRequests.WithLabelValues(service, method, status.Code(err).String()).Inc()

		return resp, err
	}
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
