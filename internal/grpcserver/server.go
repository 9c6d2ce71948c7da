// Package grpcserver exposes the standard gRPC health service, driven by the
// HTTP health checker so both transports report the same state.
package grpcserver

import (
	"fmt"
	"net"

	"fraud-advisor/backend/pkg/health"
	"fraud-advisor/backend/pkg/logger"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the per-service name reported alongside the overall "" entry
const ServiceName = "fraudadvisor.v1.ChatService"

// Server wraps a grpc.Server with the health service registered
type Server struct {
	grpc   *grpc.Server
	health *grpchealth.Server
	log    *logger.Logger
}

// New registers the health service and follows checker's overall result.
// The service reports NOT_SERVING until the first check run completes.
func New(checker *health.Checker, log *logger.Logger) *Server {
	if log == nil {
		log = logger.GetGlobal()
	}
	s := &Server{
		grpc:   grpc.NewServer(),
		health: grpchealth.NewServer(),
		log:    log.With("component", "grpc"),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)

	s.SetServing(false)
	if checker != nil {
		checker.OnChange(s.SetServing)
	}
	return s
}

// SetServing flips both the overall and the named service status
func (s *Server) SetServing(healthy bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if healthy {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve blocks serving lis
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// ListenAndServe listens on the TCP port and serves in the background.
// Serve errors after startup are logged.
func (s *Server) ListenAndServe(port string) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", port, err)
	}
	go func() {
		if err := s.Serve(lis); err != nil {
			s.log.LogError(err, "gRPC server stopped")
		}
	}()
	return nil
}

// GracefulStop marks everything NOT_SERVING and drains in-flight calls
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
