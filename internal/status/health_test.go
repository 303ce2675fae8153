package status_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"

	"github.com/soupbadger/rpi-space/internal/logging"
	"github.com/soupbadger/rpi-space/internal/observability"
	"github.com/soupbadger/rpi-space/internal/status"
	"github.com/soupbadger/rpi-space/model"
)

func startServer(t *testing.T, collector *observability.TrackerCollector) (*status.Server, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := status.New(logging.Noop(), collector)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return srv, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) *healthpb.HealthCheckResponse {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp
}

func TestServingStatus(t *testing.T) {
	t.Parallel()
	msg := "Network/API Error: Unable to fetch ISS location"

	tests := []struct {
		name string
		snap model.Snapshot
		want healthpb.HealthCheckResponse_ServingStatus
	}{
		{"fetching", model.Snapshot{}, healthpb.HealthCheckResponse_NOT_SERVING},
		{"healthy", model.Snapshot{HasEverSucceeded: true}, healthpb.HealthCheckResponse_SERVING},
		{"stale", model.Snapshot{HasEverSucceeded: true, Notification: &msg}, healthpb.HealthCheckResponse_NOT_SERVING},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.ServingStatus(tt.snap), tt.name)
	}
}

func TestHealthFlipsAfterFirstFix(t *testing.T) {
	t.Parallel()
	srv, client := startServer(t, nil)

	want := &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}
	assert.True(t, proto.Equal(want, check(t, client, "")), "process liveness should be SERVING")
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, status.ServiceName).GetStatus())

	srv.Present(context.Background(), model.Snapshot{HasEverSucceeded: true})
	assert.True(t, proto.Equal(want, check(t, client, status.ServiceName)))

	msg := "Network/API Error: Unable to fetch ISS location"
	srv.Present(context.Background(), model.Snapshot{HasEverSucceeded: true, Notification: &msg})
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, status.ServiceName).GetStatus())
}

func TestHealthRecordsRPCMetrics(t *testing.T) {
	t.Parallel()
	collector, err := observability.NewTrackerCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	_, client := startServer(t, collector)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-request-id", "abc")
	_, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: status.ServiceName})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.RPCRequests.WithLabelValues("Health", "Check", "OK")))
}

func TestRequestLoggerInterceptorAttachesLogger(t *testing.T) {
	t.Parallel()
	interceptor := status.RequestLoggerUnaryServerInterceptor(logging.Noop())
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, _ interface{}) (interface{}, error) {
		assert.NotNil(t, logging.LoggerFromContext(ctx))
		return nil, nil
	})
	require.NoError(t, err)
}
