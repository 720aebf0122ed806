package handlers

import (
	"context"
	"net/http"

	"github.com/Ayash-Bera/shopassist/backend/internal/health"
	"github.com/Ayash-Bera/shopassist/backend/pkg/utils"
	"github.com/gin-gonic/gin"
)

// HealthReporter is implemented by health.HealthChecker.
type HealthReporter interface {
	CheckCached(ctx context.Context) (*health.OverallHealth, error)
	CheckAll(ctx context.Context) health.OverallHealth
}

type HealthHandler struct {
	reporter HealthReporter
}

func NewHealthHandler(reporter HealthReporter) *HealthHandler {
	return &HealthHandler{reporter: reporter}
}

// HandleHealth serves the cached snapshot when there is one and probes live
// otherwise. ?fresh=true forces a live probe.
func (h *HealthHandler) HandleHealth(c *gin.Context) {
	ctx := c.Request.Context()

	var report health.OverallHealth
	cached, err := h.reporter.CheckCached(ctx)
	if err == nil && c.Query("fresh") != "true" {
		report = *cached
	} else {
		report = h.reporter.CheckAll(ctx)
	}

	if report.Status == health.StatusUnhealthy {
		c.JSON(http.StatusServiceUnavailable, utils.APIResponse{
			Success: false,
			Message: "Service unhealthy",
			Data:    report,
		})
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Service "+report.Status, report)
}
