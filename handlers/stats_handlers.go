package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pushnami/api/logger"
	"pushnami/api/models"
	"pushnami/api/services"
	"pushnami/api/utils"
)

type StatsHandlers struct {
	Aggregator *services.Aggregator
	timeout    time.Duration
	log        *logger.Logger
}

func NewStatsHandlers(aggregator *services.Aggregator, timeout time.Duration, log *logger.Logger) *StatsHandlers {
	return &StatsHandlers{Aggregator: aggregator, timeout: timeout, log: log.With("handler", "stats")}
}

func (h *StatsHandlers) GetStats(c *gin.Context) {
	experimentID, err := utils.ParseOptionalUUID("experiment_id", c.Query("experiment_id"))
	if err != nil {
		respondError(c, h.log, err, "")
		return
	}

	var stats *models.Stats
	err = utils.RetryOnce(c.Request.Context(), h.timeout, func(ctx context.Context) error {
		var err error
		stats, err = h.Aggregator.Aggregate(ctx, experimentID)
		return err
	})
	if err != nil {
		respondError(c, h.log, err, "Failed to compute stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *StatsHandlers) GetTopPages(c *gin.Context) {
	experimentID, err := utils.ParseOptionalUUID("experiment_id", c.Query("experiment_id"))
	if err != nil {
		respondError(c, h.log, err, "")
		return
	}
	limit, err := utils.ParseNonNegativeInt("limit", c.Query("limit"), 0)
	if err != nil {
		respondError(c, h.log, err, "")
		return
	}
	if limit > 100 {
		limit = 100
	}

	var pages []models.TopPage
	err = utils.RetryOnce(c.Request.Context(), h.timeout, func(ctx context.Context) error {
		var err error
		pages, err = h.Aggregator.TopPages(ctx, experimentID, limit)
		return err
	})
	if err != nil {
		respondError(c, h.log, err, "Failed to get top pages")
		return
	}
	if pages == nil {
		pages = []models.TopPage{}
	}
	c.JSON(http.StatusOK, pages)
}
