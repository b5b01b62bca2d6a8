package main

import (
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/elys-network/mvault/internal/logger"
)

// vaultHealthService is the gRPC health service name that tracks the vault pause state.
const vaultHealthService = "mvault.Vault"

// healthServer exposes the standard gRPC health protocol. The process itself is always SERVING;
// vaultHealthService goes NOT_SERVING while the vault is paused.
type healthServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	log        zerolog.Logger
}

func newHealthServer(addr string) (*healthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(vaultHealthService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	return &healthServer{
		grpcServer: grpcServer,
		health:     healthSrv,
		listener:   listener,
		log:        logger.GetForComponent("grpc_health"),
	}, nil
}

func (s *healthServer) Addr() string {
	return s.listener.Addr().String()
}

// Serve blocks until Stop is called.
func (s *healthServer) Serve() error {
	s.log.Info().Str("addr", s.Addr()).Msg("Starting gRPC health server")
	if err := s.grpcServer.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *healthServer) SetVaultPaused(paused bool) {
	s.health.SetServingStatus(vaultHealthService, vaultServingStatus(paused))
}

func (s *healthServer) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

func vaultServingStatus(paused bool) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if paused {
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_SERVING
}
