package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pushnami/api/apperr"
	"pushnami/api/logger"
	"pushnami/api/models"
	"pushnami/api/services"
	"pushnami/api/utils"
)

type ExperimentHandlers struct {
	Registry *services.Registry
	Resolver *services.Resolver
	timeout  time.Duration
	log      *logger.Logger
}

func NewExperimentHandlers(registry *services.Registry, resolver *services.Resolver, timeout time.Duration, log *logger.Logger) *ExperimentHandlers {
	return &ExperimentHandlers{
		Registry: registry,
		Resolver: resolver,
		timeout:  timeout,
		log:      log.With("handler", "experiments"),
	}
}

func (h *ExperimentHandlers) List(c *gin.Context) {
	var experiments []models.Experiment
	err := utils.RetryOnce(c.Request.Context(), h.timeout, func(ctx context.Context) error {
		var err error
		experiments, err = h.Registry.List(ctx)
		return err
	})
	if err != nil {
		respondError(c, h.log, err, "Failed to list experiments")
		return
	}
	c.JSON(http.StatusOK, experiments)
}

func (h *ExperimentHandlers) Get(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		respondError(c, h.log, err, "")
		return
	}
	var exp *models.Experiment
	err = utils.RetryOnce(c.Request.Context(), h.timeout, func(ctx context.Context) error {
		var err error
		exp, err = h.Registry.Get(ctx, id)
		return err
	})
	if err != nil {
		respondError(c, h.log, err, "Failed to get experiment")
		return
	}
	c.JSON(http.StatusOK, exp)
}

// Active returns the experiment the landing page should run.
func (h *ExperimentHandlers) Active(c *gin.Context) {
	var exp *models.Experiment
	err := utils.RetryOnce(c.Request.Context(), h.timeout, func(ctx context.Context) error {
		var err error
		exp, err = h.Registry.ActiveExperiment(ctx)
		return err
	})
	if err != nil {
		respondError(c, h.log, err, "Failed to get active experiment")
		return
	}
	c.JSON(http.StatusOK, exp)
}

func (h *ExperimentHandlers) Create(c *gin.Context) {
	var req models.CreateExperimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	exp, err := h.Registry.Create(ctx, req)
	if err != nil {
		respondError(c, h.log, err, "Failed to create experiment")
		return
	}
	c.JSON(http.StatusCreated, exp)
}

func (h *ExperimentHandlers) Update(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		respondError(c, h.log, err, "")
		return
	}
	var req models.UpdateExperimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	exp, err := h.Registry.Update(ctx, id, req)
	if err != nil {
		respondError(c, h.log, err, "Failed to update experiment")
		return
	}
	c.JSON(http.StatusOK, exp)
}

func (h *ExperimentHandlers) Delete(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		respondError(c, h.log, err, "")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.Registry.Delete(ctx, id); err != nil {
		respondError(c, h.log, err, "Failed to delete experiment")
		return
	}
	c.Status(http.StatusNoContent)
}

// Assign resolves the visitor's variant. Resolution is idempotent, so a
// transient storage failure is retried once.
func (h *ExperimentHandlers) Assign(c *gin.Context) {
	visitorID := c.Query("visitor_id")
	experimentID, err := utils.ParseOptionalUUID("experiment_id", c.Query("experiment_id"))
	if err != nil {
		respondError(c, h.log, err, "")
		return
	}
	if experimentID == nil {
		respondError(c, h.log, apperr.Invalid("experiment_id", "experiment_id is required"), "")
		return
	}

	var (
		assignment *models.Assignment
		isNew      bool
	)
	err = utils.RetryOnce(c.Request.Context(), h.timeout, func(ctx context.Context) error {
		var err error
		assignment, isNew, err = h.Resolver.Resolve(ctx, visitorID, *experimentID)
		return err
	})
	if err != nil {
		respondError(c, h.log, err, "Failed to assign variant")
		return
	}
	c.JSON(http.StatusOK, models.AssignmentResponse{
		VisitorID:    visitorID,
		ExperimentID: *experimentID,
		Variant:      assignment.Variant,
		IsNew:        isNew,
	})
}
