// Package health exposes process readiness over the standard gRPC health
// protocol so door controllers and orchestrators can probe the server.
package health

import (
	"context"
	"io"
	"log"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Probe checks one dependency. Name is reported as the gRPC service name.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

type Server struct {
	grpc    *grpc.Server
	health  *grpchealth.Server
	probes  []Probe
	timeout time.Duration
	logger  *log.Logger
}

func New(probes []Probe, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		grpc:    grpc.NewServer(),
		health:  grpchealth.NewServer(),
		probes:  probes,
		timeout: 2 * time.Second,
		logger:  logger,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)

	// Nothing is serving until the first check passes.
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	for _, p := range probes {
		s.health.SetServingStatus(p.Name, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return s
}

// CheckNow runs every probe once and publishes the results. The overall
// ("") status is SERVING only if all probes pass.
func (s *Server) CheckNow(ctx context.Context) bool {
	all := true
	for _, p := range s.probes {
		pctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := p.Check(pctx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			all = false
			status = healthpb.HealthCheckResponse_NOT_SERVING
			s.logger.Printf("health: %s: %v", p.Name, err)
		}
		s.health.SetServingStatus(p.Name, status)
	}
	overall := healthpb.HealthCheckResponse_NOT_SERVING
	if all {
		overall = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", overall)
	return all
}

// Run re-checks on interval until ctx is cancelled.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	s.CheckNow(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckNow(ctx)
		}
	}
}

func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Stop marks everything NOT_SERVING so watchers see the shutdown, then
// drains open RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
