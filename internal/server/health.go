package server

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer exposes the standard grpc.health.v1 service.
//
// Invariant: reports SERVING only between Serve and Stop.
type HealthServer struct {
	addr   string
	server *grpc.Server
	status *health.Server
	logger *zap.Logger
}

// NewHealthServer creates a health server for addr. Status starts NOT_SERVING.
func NewHealthServer(addr string, logger *zap.Logger) *HealthServer {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	return &HealthServer{addr: addr, server: gs, status: hs, logger: logger}
}

// Start listens on the configured address and serves until Stop.
func (h *HealthServer) Start() error {
	lis, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}
	return h.Serve(lis)
}

// Serve marks the process SERVING and serves on lis until Stop.
func (h *HealthServer) Serve(lis net.Listener) error {
	h.logger.Info("gRPC health listening", zap.String("addr", lis.Addr().String()))
	h.status.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return h.server.Serve(lis)
}

// Stop flips every status to NOT_SERVING and drains in-flight checks,
// forcing the stop when ctx expires first.
func (h *HealthServer) Stop(ctx context.Context) {
	h.status.Shutdown()
	done := make(chan struct{})
	go func() {
		h.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		h.server.Stop()
	}
}
