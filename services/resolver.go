package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pushnami/api/apperr"
	"pushnami/api/logger"
	"pushnami/api/metrics"
	"pushnami/api/models"
)

const maxVisitorIDLength = 255

// Resolver maps visitors to variants. The mapping is a pure function of
// (visitor, experiment, split at first exposure) and is persisted on first
// use; afterwards the persisted row always wins.
type Resolver struct {
	experiments ExperimentStore
	assignments AssignmentStore
	cache       AssignmentCache
	log         *logger.Logger
	now         func() time.Time
}

func NewResolver(experiments ExperimentStore, assignments AssignmentStore, cache AssignmentCache, log *logger.Logger) *Resolver {
	return &Resolver{
		experiments: experiments,
		assignments: assignments,
		cache:       cache,
		log:         log.With("service", "AssignmentResolver"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func ValidateVisitorID(visitorID string) error {
	if strings.TrimSpace(visitorID) == "" {
		return apperr.Invalid("visitor_id", "visitor_id is required")
	}
	if len(visitorID) > maxVisitorIDLength {
		return apperr.Invalid("visitor_id", fmt.Sprintf("visitor_id exceeds %d characters", maxVisitorIDLength))
	}
	if strings.Contains(visitorID, bucketDelimiter) {
		return apperr.Invalid("visitor_id", fmt.Sprintf("visitor_id must not contain %q", bucketDelimiter))
	}
	return nil
}

// Resolve returns the visitor's variant and whether this call created it.
func (r *Resolver) Resolve(ctx context.Context, visitorID string, experimentID uuid.UUID) (*models.Assignment, bool, error) {
	if err := ValidateVisitorID(visitorID); err != nil {
		return nil, false, err
	}

	ctx, span := tracer.Start(ctx, "Resolver.Resolve", trace.WithAttributes(
		attribute.String("experiment_id", experimentID.String()),
	))
	defer span.End()

	exp, err := r.experiments.GetExperiment(ctx, experimentID)
	if err != nil {
		return nil, false, err
	}
	if !exp.IsActive {
		return nil, false, apperr.Invalid("experiment_id", "experiment is not active")
	}
	if len(exp.Variants) == 0 {
		return nil, false, fmt.Errorf("experiment %s has no variants: %w", experimentID, apperr.ErrNotFound)
	}

	if variant, ok := r.fromCache(ctx, experimentID, visitorID); ok {
		metrics.AssignmentsTotal.WithLabelValues(metrics.OutcomeCached).Inc()
		return &models.Assignment{ExperimentID: experimentID, VisitorID: visitorID, Variant: variant}, false, nil
	}

	existing, err := r.assignments.GetAssignment(ctx, experimentID, visitorID)
	if err == nil {
		r.remember(ctx, existing)
		metrics.AssignmentsTotal.WithLabelValues(metrics.OutcomeExisting).Inc()
		return existing, false, nil
	}
	if !isNotFound(err) {
		return nil, false, err
	}

	a := &models.Assignment{
		ID:           uuid.New(),
		ExperimentID: experimentID,
		VisitorID:    visitorID,
		Variant:      PickVariant(Bucket(visitorID, experimentID.String()), exp.Variants, exp.TrafficSplit),
		CreatedAt:    r.now(),
	}

	err = r.assignments.InsertAssignment(ctx, a)
	switch {
	case err == nil:
		r.remember(ctx, a)
		metrics.AssignmentsTotal.WithLabelValues(metrics.OutcomeNew).Inc()
		r.log.Info("Assigned visitor", "visitor_id", visitorID, "experiment_id", experimentID, "variant", a.Variant)
		return a, true, nil
	case errors.Is(err, apperr.ErrConflict):
		// A concurrent request inserted first; its row is authoritative.
		winner, rerr := r.assignments.GetAssignment(ctx, experimentID, visitorID)
		if rerr != nil {
			return nil, false, fmt.Errorf("re-read assignment after conflict: %w", rerr)
		}
		r.remember(ctx, winner)
		metrics.AssignmentsTotal.WithLabelValues(metrics.OutcomeRaceRecovered).Inc()
		return winner, false, nil
	default:
		return nil, false, err
	}
}

func (r *Resolver) fromCache(ctx context.Context, experimentID uuid.UUID, visitorID string) (string, bool) {
	if r.cache == nil {
		return "", false
	}
	v, ok, err := r.cache.Get(ctx, experimentID, visitorID)
	if err != nil {
		r.log.Warn("Assignment cache read failed", "experiment_id", experimentID, "error", err)
		return "", false
	}
	return v, ok
}

func (r *Resolver) remember(ctx context.Context, a *models.Assignment) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, a.ExperimentID, a.VisitorID, a.Variant); err != nil {
		r.log.Warn("Assignment cache write failed", "experiment_id", a.ExperimentID, "error", err)
	}
}
