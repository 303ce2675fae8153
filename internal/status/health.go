// Package status exposes data freshness over the standard gRPC health
// protocol so supervisors can tell a stale tracker from a healthy one.
package status

import (
	"context"
	"net"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"

	"github.com/soupbadger/rpi-space/internal/logging"
	"github.com/soupbadger/rpi-space/internal/observability"
	"github.com/soupbadger/rpi-space/model"
)

// ServiceName is the health service name reporting data freshness. The
// empty service name reports process liveness and is always SERVING.
const ServiceName = "iss-tracker"

const requestIDMetadataKey = "x-request-id"

// Server is a gRPC server carrying only the health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	log    logging.Logger

	last healthpb.HealthCheckResponse_ServingStatus
}

// New builds the server. collector may be nil.
func New(log logging.Logger, collector *observability.TrackerCollector) *Server {
	if log == nil {
		log = logging.Noop()
	}
	gs := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			RequestLoggerUnaryServerInterceptor(log),
			collector.UnaryServerInterceptor(),
		),
	)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{
		grpc:   gs,
		health: hs,
		log:    log,
		last:   healthpb.HealthCheckResponse_NOT_SERVING,
	}
}

// ServingStatus maps a snapshot to a health status: SERVING once a position
// has been fetched and while no error notification is showing.
func ServingStatus(snap model.Snapshot) healthpb.HealthCheckResponse_ServingStatus {
	if snap.HasEverSucceeded && snap.Notification == nil {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// Present updates the health status from snap. It satisfies core.Presenter
// and must only be called from the tracker goroutine.
func (s *Server) Present(ctx context.Context, snap model.Snapshot) {
	next := ServingStatus(snap)
	if next == s.last {
		return
	}
	s.last = next
	s.health.SetServingStatus(ServiceName, next)
	s.log.Info(ctx, "health status changed", logging.String("status", next.String()))
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info(context.Background(), "serving gRPC health", logging.String("addr", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// Stop marks every service NOT_SERVING and drains in-flight RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// RequestLoggerUnaryServerInterceptor attaches a logger annotated with the
// method and a request_id, taken from inbound metadata when present.
func RequestLoggerUnaryServerInterceptor(base logging.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = logging.Noop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(requestIDMetadataKey); len(vals) > 0 {
				id = vals[0]
			}
		}
		if id == "" {
			id = uuid.NewString()
		}

		reqLog := base.With(logging.String("method", info.FullMethod), logging.String("request_id", id))
		ctx = logging.ContextWithLogger(ctx, reqLog)

		resp, err := handler(ctx, req)
		if err != nil {
			reqLog.Debug(ctx, "rpc failed", logging.Err(err))
		}
		return resp, err
	}
}
