package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ReadinessChecker is satisfied by the application service.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// RelayHealthServer answers the standard gRPC health protocol from the relay's
// readiness, so orchestrators that only speak gRPC probes can watch it.
type RelayHealthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	checker     ReadinessChecker
	serviceName string
}

func NewRelayHealthServer(checker ReadinessChecker, serviceName string) *RelayHealthServer {
	return &RelayHealthServer{checker: checker, serviceName: serviceName}
}

func Register(server grpc.ServiceRegistrar, svc *RelayHealthServer) {
	grpc_health_v1.RegisterHealthServer(server, svc)
}

func (s *RelayHealthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	if !s.knows(req.GetService()) {
		return nil, status.Error(codes.NotFound, "unknown service")
	}
	return &grpc_health_v1.HealthCheckResponse{Status: s.status(ctx)}, nil
}

func (s *RelayHealthServer) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	if !s.knows(req.GetService()) {
		return stream.Send(&grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVICE_UNKNOWN})
	}
	return stream.Send(&grpc_health_v1.HealthCheckResponse{Status: s.status(stream.Context())})
}

func (s *RelayHealthServer) knows(name string) bool {
	return name == "" || name == s.serviceName
}

func (s *RelayHealthServer) status(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if s.checker == nil {
		return grpc_health_v1.HealthCheckResponse_SERVING
	}
	if err := s.checker.Ready(ctx); err != nil {
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_SERVING
}
