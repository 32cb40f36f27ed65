package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keil-app/keil-server/internal/model"
)

// HealthReporter produces a health snapshot.
type HealthReporter interface {
	Report(ctx context.Context) model.HealthReport
}

// Health serves the informational health endpoint.
type Health struct {
	reporter HealthReporter
}

func NewHealth(reporter HealthReporter) *Health {
	return &Health{reporter: reporter}
}

// Get always answers 200; the body tells whether dependencies are up.
func (h *Health) Get(c *gin.Context) {
	RespondWithData(c, http.StatusOK, h.reporter.Report(c.Request.Context()), "Health status retrieved successfully")
}
