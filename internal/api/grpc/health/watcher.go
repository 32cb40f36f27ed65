// Package health keeps the grpc.health.v1 serving status in line with the user store.
package health

import (
	"context"
	"time"

	"github.com/keil-app/keil-server/internal/logger"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// StoreChecker reports whether the user store answers.
type StoreChecker interface {
	StoreReachable(ctx context.Context) bool
}

// Watcher polls the store and publishes the result on the health server.
type Watcher struct {
	server   *grpchealth.Server
	checker  StoreChecker
	interval time.Duration
	logger   *logger.Logger
}

// NewWatcher creates a Watcher polling every interval.
func NewWatcher(server *grpchealth.Server, checker StoreChecker, interval time.Duration, logger *logger.Logger) *Watcher {
	return &Watcher{
		server:   server,
		checker:  checker,
		interval: interval,
		logger:   logger,
	}
}

// Check runs one probe and updates the overall ("") service status.
func (w *Watcher) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if !w.checker.StoreReachable(ctx) {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	w.server.SetServingStatus("", status)
	return status
}

// Run probes immediately and then on every tick until ctx is done.
// On exit every service is marked NOT_SERVING.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer w.server.Shutdown()

	last := w.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := w.Check(ctx)
			if status != last {
				w.logger.Info("Health: serving status changed", "status", status.String())
				last = status
			}
		}
	}
}
