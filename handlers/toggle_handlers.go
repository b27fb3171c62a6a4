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

type ToggleHandlers struct {
	Toggles *services.Toggles
	timeout time.Duration
	log     *logger.Logger
}

func NewToggleHandlers(toggles *services.Toggles, timeout time.Duration, log *logger.Logger) *ToggleHandlers {
	return &ToggleHandlers{Toggles: toggles, timeout: timeout, log: log.With("handler", "toggles")}
}

func (h *ToggleHandlers) List(c *gin.Context) {
	var toggles []models.FeatureToggle
	err := utils.RetryOnce(c.Request.Context(), h.timeout, func(ctx context.Context) error {
		var err error
		toggles, err = h.Toggles.List(ctx)
		return err
	})
	if err != nil {
		respondError(c, h.log, err, "Failed to list toggles")
		return
	}
	c.JSON(http.StatusOK, toggles)
}

func (h *ToggleHandlers) Get(c *gin.Context) {
	key := c.Param("key")
	var toggle *models.FeatureToggle
	err := utils.RetryOnce(c.Request.Context(), h.timeout, func(ctx context.Context) error {
		var err error
		toggle, err = h.Toggles.Get(ctx, key)
		return err
	})
	if err != nil {
		respondError(c, h.log, err, "Failed to get toggle")
		return
	}
	c.JSON(http.StatusOK, toggle)
}

// Update sets enabled and/or config. Setting the same values twice is
// harmless, so transient failures are retried once.
func (h *ToggleHandlers) Update(c *gin.Context) {
	key := c.Param("key")
	var req models.UpdateToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	var toggle *models.FeatureToggle
	err := utils.RetryOnce(c.Request.Context(), h.timeout, func(ctx context.Context) error {
		var err error
		toggle, err = h.Toggles.Update(ctx, key, req)
		return err
	})
	if err != nil {
		respondError(c, h.log, err, "Failed to update toggle")
		return
	}
	c.JSON(http.StatusOK, toggle)
}
