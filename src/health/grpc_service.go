package health

import (
	"context"
	"fmt"
	"net"
	"sync"

	"activ-subscriber/src/logger"
	"activ-subscriber/src/models"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name the session state is reported under
const ServiceName = "activ.Session"

// -----------------------------------------------------------------------------

// GRPCService exposes the standard gRPC health protocol. The session service
// is SERVING while the session is logged in and NOT_SERVING otherwise.
type GRPCService struct {
	server   *grpc.Server
	listener net.Listener
	health   *grpchealth.Server
	config   *models.MHealthConfig
	logger   *logger.Logger
	mu       sync.RWMutex
	running  bool
}

// -----------------------------------------------------------------------------

// NewGRPCService creates the service and binds its listener
func NewGRPCService(config *models.MHealthConfig, logger *logger.Logger) (*GRPCService, error) {
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	healthServer := grpchealth.NewServer()
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	server := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)

	return &GRPCService{
		server:   server,
		listener: listener,
		health:   healthServer,
		config:   config,
		logger:   logger,
	}, nil
}

// -----------------------------------------------------------------------------

// Start serves in the background; it returns immediately
func (g *GRPCService) Start() error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return nil
	}
	g.running = true
	g.mu.Unlock()

	g.logger.Info("Starting gRPC health service on %s", g.Addr())

	go func() {
		if err := g.server.Serve(g.listener); err != nil && err != grpc.ErrServerStopped {
			g.logger.Error("gRPC health server failed: %v", err)
		}
		g.mu.Lock()
		g.running = false
		g.mu.Unlock()
	}()
	return nil
}

// -----------------------------------------------------------------------------

// SetConnected reports the session state; matches handlers.SessionHandler.OnStateChange
func (g *GRPCService) SetConnected(connected bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if connected {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus(ServiceName, status)
	g.logger.Debug("health status of %s set to %s", ServiceName, status)
}

// -----------------------------------------------------------------------------

// Check answers a health request in-process
func (g *GRPCService) Check(ctx context.Context, service string) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
	resp, err := g.health.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// -----------------------------------------------------------------------------

// Stop gracefully stops the gRPC server, forcing it when ctx expires
func (g *GRPCService) Stop(ctx context.Context) error {
	g.logger.Info("Stopping gRPC health service...")

	// watchers see NOT_SERVING before the server goes away
	g.health.Shutdown()

	done := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(done)
	}()

	select {
	case <-ctx.Done():
		g.logger.Warning("gRPC graceful shutdown timeout, forcing stop...")
		g.server.Stop()
	case <-done:
	}

	_ = g.listener.Close()

	g.mu.Lock()
	g.running = false
	g.mu.Unlock()

	g.logger.Info("gRPC health service stopped")
	return nil
}

// -----------------------------------------------------------------------------

// IsRunning returns whether the gRPC server is running
func (g *GRPCService) IsRunning() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.running
}

// -----------------------------------------------------------------------------

// Addr returns the bound listener address
func (g *GRPCService) Addr() string {
	return g.listener.Addr().String()
}
