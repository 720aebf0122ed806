package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Ayash-Bera/shopassist/backend/internal/models"
	"github.com/Ayash-Bera/shopassist/backend/internal/services"
	"github.com/Ayash-Bera/shopassist/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PopularQuerySource lists the most searched queries.
type PopularQuerySource interface {
	PopularQueries(ctx context.Context, limit int) ([]models.PopularQuery, error)
}

type QueryHandler struct {
	source PopularQuerySource
	logger *logrus.Logger
}

func NewQueryHandler(source PopularQuerySource, logger *logrus.Logger) *QueryHandler {
	return &QueryHandler{source: source, logger: logger}
}

// HandlePopularQueries returns the top product searches, at most 20.
func (h *QueryHandler) HandlePopularQueries(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(services.DefaultPopularLimit)))
	if err != nil || limit < 1 {
		limit = services.DefaultPopularLimit
	}
	if limit > services.MaxPopularQueries {
		limit = services.MaxPopularQueries
	}

	queries, err := h.source.PopularQueries(c.Request.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get popular queries")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get popular queries", nil)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Popular queries retrieved", queries)
}
