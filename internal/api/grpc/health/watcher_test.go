package health

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/keil-app/keil-server/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type flagChecker struct {
	up atomic.Bool
}

func (f *flagChecker) StoreReachable(context.Context) bool {
	return f.up.Load()
}

func overall(t *testing.T, s *grpchealth.Server) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, _ := s.Check(context.Background(), &healthpb.HealthCheckRequest{})
	return resp.GetStatus()
}

func TestWatcher_Check(t *testing.T) {
	t.Parallel()

	s := grpchealth.NewServer()
	checker := &flagChecker{}
	w := NewWatcher(s, checker, time.Hour, testutil.MakeNoopLogger())

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, w.Check(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, overall(t, s))

	checker.up.Store(true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, w.Check(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, overall(t, s))
}

func TestWatcher_Run(t *testing.T) {
	t.Parallel()

	s := grpchealth.NewServer()
	checker := &flagChecker{}
	checker.up.Store(true)
	w := NewWatcher(s, checker, 5*time.Millisecond, testutil.MakeNoopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return overall(t, s) == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)

	checker.up.Store(false)
	require.Eventually(t, func() bool {
		return overall(t, s) == healthpb.HealthCheckResponse_NOT_SERVING
	}, time.Second, 5*time.Millisecond)

	checker.up.Store(true)
	require.Eventually(t, func() bool {
		return overall(t, s) == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, overall(t, s))
}
