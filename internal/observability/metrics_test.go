package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/soupbadger/rpi-space/model"
)

func TestObserveFetchRecordsCountAndDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewTrackerCollector(reg)
	if err != nil {
		t.Fatalf("NewTrackerCollector: %v", err)
	}

	collector.ObserveFetch(FetchPosition, "success", 120*time.Millisecond)
	collector.ObserveFetch(FetchPosition, "network", 5*time.Second)
	collector.ObserveFetch(FetchCity, "unresolved", 300*time.Millisecond)

	if got := testutil.ToFloat64(collector.Fetches.WithLabelValues(FetchPosition, "success")); got != 1 {
		t.Fatalf("tracker_fetches_total{position,success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Fetches.WithLabelValues(FetchPosition, "network")); got != 1 {
		t.Fatalf("tracker_fetches_total{position,network} = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "tracker_fetch_duration_seconds", map[string]string{
		"fetch": FetchPosition,
	}); count != 2 {
		t.Fatalf("tracker_fetch_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestGaugesFollowState(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewTrackerCollector(reg)
	if err != nil {
		t.Fatalf("NewTrackerCollector: %v", err)
	}

	collector.SetNotificationActive(true)
	collector.SetPosition(model.GeoCoordinate{Lat: 51.5, Lon: -0.12})

	if got := testutil.ToFloat64(collector.NotificationActive); got != 1 {
		t.Fatalf("tracker_notification_active = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.HasFix); got != 1 {
		t.Fatalf("tracker_has_fix = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Latitude); got != 51.5 {
		t.Fatalf("tracker_position_latitude_degrees = %v, want 51.5", got)
	}

	collector.SetNotificationActive(false)
	if got := testutil.ToFloat64(collector.NotificationActive); got != 0 {
		t.Fatalf("tracker_notification_active = %v, want 0", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *TrackerCollector
	c.ObserveFetch(FetchCity, "success", time.Second)
	c.ObserveCacheLookup("hit")
	c.SetNotificationActive(true)
	c.SetPosition(model.GeoCoordinate{})
	if c.Gatherer() != nil {
		t.Fatalf("nil collector Gatherer() should be nil")
	}
}

func TestRegistrationIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewTrackerCollector(reg)
	if err != nil {
		t.Fatalf("first NewTrackerCollector: %v", err)
	}
	second, err := NewTrackerCollector(reg)
	if err != nil {
		t.Fatalf("second NewTrackerCollector: %v", err)
	}

	first.ObserveCacheLookup("hit")
	second.ObserveCacheLookup("hit")
	if got := testutil.ToFloat64(first.CacheLookups.WithLabelValues("hit")); got != 2 {
		t.Fatalf("shared counter = %v, want 2", got)
	}
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewTrackerCollector(reg)
	if err != nil {
		t.Fatalf("NewTrackerCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	_, _ = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	})

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("Health", "Check", "NotFound")); got != 1 {
		t.Fatalf("tracker_grpc_requests_total = %v, want 1", got)
	}
}

func TestMetricsHandlerExposesTrackerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewTrackerCollector(reg)
	if err != nil {
		t.Fatalf("NewTrackerCollector: %v", err)
	}
	collector.ObserveFetch(FetchCity, "parse", time.Millisecond)
	collector.ObserveCacheLookup("miss")
	collector.SetPosition(model.GeoCoordinate{Lat: 1, Lon: 2})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"tracker_fetches_total",
		"tracker_fetch_duration_seconds",
		"tracker_city_cache_lookups_total",
		"tracker_has_fix",
		"tracker_position_longitude_degrees",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestSplitMethod(t *testing.T) {
	tests := []struct {
		in, service, method string
	}{
		{"/grpc.health.v1.Health/Check", "Health", "Check"},
		{"", "unknown", "unknown"},
		{"nomethod", "unknown", "unknown"},
	}
	for _, tt := range tests {
		service, method := SplitMethod(tt.in)
		if service != tt.service || method != tt.method {
			t.Fatalf("SplitMethod(%q) = (%q, %q), want (%q, %q)", tt.in, service, method, tt.service, tt.method)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
