package service

import (
	"context"
	"runtime"
	"time"

	"github.com/keil-app/keil-server/internal/logger"
	"github.com/keil-app/keil-server/internal/model"
)

// Pinger reports whether a dependency answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

const pingTimeout = 2 * time.Second

// Health reports process and dependency status.
type Health struct {
	store              Pinger
	identityConfigured bool
	startedAt          time.Time
	logger             *logger.Logger
	now                func() time.Time
}

func NewHealth(store Pinger, identityConfigured bool, logger *logger.Logger) *Health {
	return &Health{
		store:              store,
		identityConfigured: identityConfigured,
		startedAt:          time.Now(),
		logger:             logger,
		now:                time.Now,
	}
}

// StoreReachable pings the user store with a short timeout.
func (h *Health) StoreReachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("Health: store ping failed", "error", err.Error())
		return false
	}
	return true
}

// Report collects the current health snapshot.
func (h *Health) Report(ctx context.Context) model.HealthReport {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	now := h.now()
	dbOK := h.StoreReachable(ctx)

	status := model.HealthStatusOK
	if !dbOK {
		status = model.HealthStatusDegraded
	}

	return model.HealthReport{
		Status:           status,
		Uptime:           now.Sub(h.startedAt).Seconds(),
		Database:         dbOK,
		IdentityProvider: h.identityConfigured,
		Memory: model.MemoryUsage{
			Alloc:      mem.Alloc,
			TotalAlloc: mem.TotalAlloc,
			Sys:        mem.Sys,
			HeapInuse:  mem.HeapInuse,
		},
		Timestamp: now.UTC(),
	}
}
