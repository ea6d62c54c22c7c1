// Package grpc exposes the standard grpc.health.v1 service for the store manager.
package grpc

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name reported next to the overall ("") status.
const ServiceName = "storemanager.v1.StoreManager"

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthServer struct {
	*health.Server
	db     Pinger
	logger *slog.Logger
}

// NewHealthServer creates a health server that answers SERVING while db pings succeed.
func NewHealthServer(db Pinger, logger *slog.Logger) *HealthServer {
	s := &HealthServer{
		Server: health.NewServer(),
		db:     db,
		logger: logger.With("component", "grpc-health"),
	}
	s.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Register attaches the health service to a grpc server.
func (s *HealthServer) Register(gs *grpc.Server) {
	healthpb.RegisterHealthServer(gs, s)
}

// Check answers NOT_SERVING when the database is unreachable, otherwise the stored status.
func (s *HealthServer) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	resp, err := s.Server.Check(ctx, req)
	if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return resp, err
	}
	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "database ping failed", "error", err)
			return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
		}
	}
	return resp, nil
}
