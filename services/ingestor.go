package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"pushnami/api/apperr"
	"pushnami/api/logger"
	"pushnami/api/metrics"
	"pushnami/api/models"
)

const (
	MaxBatchSize     = 500
	maxMetadataDepth = 8
	maxMetadataNodes = 256
	maxMetadataBytes = 16 << 10
	defaultListLimit = 100
	maxListLimit     = 1000
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Ingestor validates and appends interaction events.
type Ingestor struct {
	store EventStore
	log   *logger.Logger
	now   func() time.Time
}

func NewIngestor(store EventStore, log *logger.Logger) *Ingestor {
	return &Ingestor{
		store: store,
		log:   log.With("service", "EventIngestor"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ValidateEvent checks one event input, returning a *apperr.ValidationError.
func ValidateEvent(in *models.EventInput) error {
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperr.Invalid(fe.Field(), describeFieldError(fe))
		}
		return apperr.Invalid("", err.Error())
	}
	if strings.TrimSpace(in.VisitorID) == "" {
		return apperr.Invalid("visitor_id", "visitor_id is required")
	}
	if err := validateMetadata(in.Metadata); err != nil {
		return err
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("unknown event_type %q (allowed: %s)", fe.Value(), strings.Join(models.EventTypes, ", "))
	case "max":
		return fmt.Sprintf("%s exceeds %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must not be empty", fe.Field())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}

// validateMetadata bounds nesting depth, node count and encoded size. The
// depth bound also rejects self-referencing values before encoding them.
func validateMetadata(md map[string]any) error {
	if md == nil {
		return nil
	}
	nodes := 0
	if err := walkMetadata(md, 1, &nodes); err != nil {
		return err
	}
	raw, err := json.Marshal(md)
	if err != nil {
		return apperr.Invalid("metadata", "metadata is not JSON encodable")
	}
	if len(raw) > maxMetadataBytes {
		return apperr.Invalid("metadata", fmt.Sprintf("metadata exceeds %d bytes", maxMetadataBytes))
	}
	return nil
}

func walkMetadata(v any, depth int, nodes *int) error {
	if depth > maxMetadataDepth {
		return apperr.Invalid("metadata", fmt.Sprintf("metadata nesting exceeds depth %d", maxMetadataDepth))
	}
	*nodes++
	if *nodes > maxMetadataNodes {
		return apperr.Invalid("metadata", fmt.Sprintf("metadata exceeds %d values", maxMetadataNodes))
	}
	switch t := v.(type) {
	case map[string]any:
		for _, child := range t {
			if err := walkMetadata(child, depth+1, nodes); err != nil {
				return err
			}
		}
	case []any:
		for _, child := range t {
			if err := walkMetadata(child, depth+1, nodes); err != nil {
				return err
			}
		}
	}
	return nil
}

func (i *Ingestor) toEvent(in *models.EventInput, at time.Time) models.Event {
	md := in.Metadata
	if md == nil {
		md = map[string]any{}
	}
	return models.Event{
		ID:           uuid.New(),
		VisitorID:    in.VisitorID,
		ExperimentID: in.ExperimentID,
		Variant:      in.Variant,
		EventType:    in.EventType,
		EventName:    in.EventName,
		Metadata:     md,
		PageURL:      in.PageURL,
		UserAgent:    in.UserAgent,
		CreatedAt:    at,
	}
}

// Record validates and appends a single event.
func (i *Ingestor) Record(ctx context.Context, in models.EventInput) (uuid.UUID, error) {
	if err := ValidateEvent(&in); err != nil {
		metrics.EventsRejectedTotal.Inc()
		return uuid.Nil, err
	}
	e := i.toEvent(&in, i.now())
	if err := i.store.InsertEvents(ctx, []models.Event{e}); err != nil {
		return uuid.Nil, err
	}
	metrics.EventsRecordedTotal.WithLabelValues(e.EventType).Inc()
	i.log.Debug("Event recorded", "event_type", e.EventType, "visitor_id", e.VisitorID, "variant", e.Variant)
	return e.ID, nil
}

// RecordBatch validates every event before persisting any. The first
// invalid event fails the whole batch and its index is reported.
func (i *Ingestor) RecordBatch(ctx context.Context, inputs []models.EventInput) ([]uuid.UUID, error) {
	if len(inputs) == 0 {
		return nil, apperr.Invalid("events", "batch must contain at least one event")
	}
	if len(inputs) > MaxBatchSize {
		return nil, apperr.Invalid("events", fmt.Sprintf("batch exceeds %d events", MaxBatchSize))
	}
	for idx := range inputs {
		if err := ValidateEvent(&inputs[idx]); err != nil {
			metrics.EventsRejectedTotal.Inc()
			if ve, ok := apperr.IsValidation(err); ok {
				return nil, ve.AtIndex(idx)
			}
			return nil, err
		}
	}

	at := i.now()
	events := make([]models.Event, len(inputs))
	ids := make([]uuid.UUID, len(inputs))
	for idx := range inputs {
		events[idx] = i.toEvent(&inputs[idx], at)
		ids[idx] = events[idx].ID
	}
	if err := i.store.InsertEvents(ctx, events); err != nil {
		return nil, err
	}
	for _, e := range events {
		metrics.EventsRecordedTotal.WithLabelValues(e.EventType).Inc()
	}
	i.log.Info("Batch recorded", "count", len(events))
	return ids, nil
}

// List returns filtered events, most recent first, clamping the page size.
func (i *Ingestor) List(ctx context.Context, f models.EventFilter) ([]models.Event, error) {
	if f.EventType != "" && !models.IsValidEventType(f.EventType) {
		return nil, apperr.Invalid("event_type", fmt.Sprintf("unknown event_type %q", f.EventType))
	}
	if f.Limit == 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit < 1 || f.Limit > maxListLimit {
		return nil, apperr.Invalid("limit", fmt.Sprintf("limit must be between 1 and %d", maxListLimit))
	}
	if f.Offset < 0 {
		return nil, apperr.Invalid("offset", "offset must not be negative")
	}
	return i.store.ListEvents(ctx, f)
}
