package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pushnami/api/logger"
	"pushnami/api/models"
	"pushnami/api/services"
	"pushnami/api/utils"
)

type EventHandlers struct {
	Ingestor *services.Ingestor
	timeout  time.Duration
	log      *logger.Logger
}

func NewEventHandlers(ingestor *services.Ingestor, timeout time.Duration, log *logger.Logger) *EventHandlers {
	return &EventHandlers{Ingestor: ingestor, timeout: timeout, log: log.With("handler", "events")}
}

// fillUserAgent uses the request's User-Agent when the client did not send one.
func fillUserAgent(c *gin.Context, in *models.EventInput) {
	if in.UserAgent == nil {
		if ua := c.Request.UserAgent(); ua != "" {
			in.UserAgent = &ua
		}
	}
}

// Track records one event. Inserts are not idempotent, so there is no retry.
func (h *EventHandlers) Track(c *gin.Context) {
	var raw json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		respondBindError(c, err)
		return
	}
	in, ve := decodeEventInput(raw)
	if ve != nil {
		respondError(c, h.log, ve, "")
		return
	}
	fillUserAgent(c, &in)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	id, err := h.Ingestor.Record(ctx, in)
	if err != nil {
		respondError(c, h.log, err, "Failed to record event")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// TrackBatch records a batch atomically.
func (h *EventHandlers) TrackBatch(c *gin.Context) {
	var raws []json.RawMessage
	if err := c.ShouldBindJSON(&raws); err != nil {
		respondBindError(c, err)
		return
	}
	inputs, err := decodeEventBatch(raws)
	if err != nil {
		respondError(c, h.log, err, "")
		return
	}
	for i := range inputs {
		fillUserAgent(c, &inputs[i])
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	ids, err := h.Ingestor.RecordBatch(ctx, inputs)
	if err != nil {
		respondError(c, h.log, err, "Failed to record events")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ids": ids, "created": len(ids)})
}

func (h *EventHandlers) List(c *gin.Context) {
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
	offset, err := utils.ParseNonNegativeInt("offset", c.Query("offset"), 0)
	if err != nil {
		respondError(c, h.log, err, "")
		return
	}
	if c.Query("limit") != "" && limit == 0 {
		limit = -1
	}
	filter := models.EventFilter{
		EventType:    c.Query("event_type"),
		Variant:      c.Query("variant"),
		VisitorID:    c.Query("visitor_id"),
		ExperimentID: experimentID,
		Limit:        limit,
		Offset:       offset,
	}

	var events []models.Event
	err = utils.RetryOnce(c.Request.Context(), h.timeout, func(ctx context.Context) error {
		var err error
		events, err = h.Ingestor.List(ctx, filter)
		return err
	})
	if err != nil {
		respondError(c, h.log, err, "Failed to list events")
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	c.JSON(http.StatusOK, events)
}
