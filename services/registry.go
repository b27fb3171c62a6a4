package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pushnami/api/apperr"
	"pushnami/api/logger"
	"pushnami/api/models"
)

const maxNameLength = 255

var (
	defaultVariants = []string{"control", "variant"}
	defaultSplit    = map[string]int{"control": 50, "variant": 50}
)

// Registry owns experiment definitions and their traffic split.
type Registry struct {
	store ExperimentStore
	cache AssignmentCache
	log   *logger.Logger
	now   func() time.Time
}

func NewRegistry(store ExperimentStore, cache AssignmentCache, log *logger.Logger) *Registry {
	return &Registry{
		store: store,
		cache: cache,
		log:   log.With("service", "ExperimentRegistry"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ValidateVariants checks the variant set and split together: at least two
// unique non-empty names, split keys equal to the variant set, and
// non-negative percentages summing to exactly 100.
func ValidateVariants(variants []string, split map[string]int) error {
	if len(variants) < 2 {
		return apperr.Invalid("variants", "at least two variants are required")
	}
	seen := make(map[string]struct{}, len(variants))
	for _, v := range variants {
		if strings.TrimSpace(v) == "" {
			return apperr.Invalid("variants", "variant names must not be empty")
		}
		if len(v) > maxNameLength {
			return apperr.Invalid("variants", fmt.Sprintf("variant %q exceeds %d characters", v, maxNameLength))
		}
		if _, dup := seen[v]; dup {
			return apperr.Invalid("variants", fmt.Sprintf("duplicate variant %q", v))
		}
		seen[v] = struct{}{}
	}

	if len(split) != len(seen) {
		return apperr.Invalid("traffic_split", "traffic split keys must match variant names")
	}
	total := 0
	for k, pct := range split {
		if _, ok := seen[k]; !ok {
			return apperr.Invalid("traffic_split", "traffic split keys must match variant names")
		}
		if pct < 0 {
			return apperr.Invalid("traffic_split", fmt.Sprintf("percentage for %q must not be negative", k))
		}
		total += pct
	}
	if total != 100 {
		return apperr.Invalid("traffic_split", fmt.Sprintf("traffic split must total 100, got %d", total))
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Invalid("name", "name is required")
	}
	if len(name) > maxNameLength {
		return apperr.Invalid("name", fmt.Sprintf("name exceeds %d characters", maxNameLength))
	}
	return nil
}

func (r *Registry) Create(ctx context.Context, req models.CreateExperimentRequest) (*models.Experiment, error) {
	if err := validateName(req.Name); err != nil {
		return nil, err
	}
	variants, split := req.Variants, req.TrafficSplit
	if variants == nil && split == nil {
		variants = append([]string(nil), defaultVariants...)
		split = map[string]int{}
		for k, v := range defaultSplit {
			split[k] = v
		}
	}
	if err := ValidateVariants(variants, split); err != nil {
		return nil, err
	}

	now := r.now()
	e := &models.Experiment{
		ID:           uuid.New(),
		Name:         req.Name,
		Description:  req.Description,
		Variants:     variants,
		TrafficSplit: split,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.IsActive != nil {
		e.IsActive = *req.IsActive
	}
	if err := r.store.CreateExperiment(ctx, e); err != nil {
		return nil, err
	}
	r.log.Info("Created experiment", "experiment_id", e.ID, "name", e.Name)
	return e, nil
}

func (r *Registry) List(ctx context.Context) ([]models.Experiment, error) {
	return r.store.ListExperiments(ctx)
}

func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	return r.store.GetExperiment(ctx, id)
}

// Update merges the partial request into the stored experiment and
// re-validates the merged variant/split pair before persisting.
func (r *Registry) Update(ctx context.Context, id uuid.UUID, req models.UpdateExperimentRequest) (*models.Experiment, error) {
	e, err := r.store.GetExperiment(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if err := validateName(*req.Name); err != nil {
			return nil, err
		}
		e.Name = *req.Name
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	if req.Variants != nil {
		e.Variants = req.Variants
	}
	if req.TrafficSplit != nil {
		e.TrafficSplit = req.TrafficSplit
	}
	if req.IsActive != nil {
		e.IsActive = *req.IsActive
	}
	if err := ValidateVariants(e.Variants, e.TrafficSplit); err != nil {
		return nil, err
	}
	e.UpdatedAt = r.now()

	if err := r.store.UpdateExperiment(ctx, e); err != nil {
		return nil, err
	}
	r.log.Info("Updated experiment", "experiment_id", id)
	return e, nil
}

// Delete removes the experiment and, through the store, all its assignments.
func (r *Registry) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.store.DeleteExperiment(ctx, id); err != nil {
		return err
	}
	if r.cache != nil {
		if err := r.cache.Purge(ctx, id); err != nil {
			r.log.Warn("Failed to purge cached assignments", "experiment_id", id, "error", err)
		}
	}
	r.log.Info("Deleted experiment", "experiment_id", id)
	return nil
}

// ActiveExperiment returns the earliest-created experiment with is_active set.
func (r *Registry) ActiveExperiment(ctx context.Context) (*models.Experiment, error) {
	list, err := r.store.ListExperiments(ctx)
	if err != nil {
		return nil, err
	}
	return FirstActive(list)
}

// FirstActive picks the earliest-created active experiment, breaking ties by id.
func FirstActive(list []models.Experiment) (*models.Experiment, error) {
	var best *models.Experiment
	for i := range list {
		e := &list[i]
		if !e.IsActive {
			continue
		}
		if best == nil || e.CreatedAt.Before(best.CreatedAt) ||
			(e.CreatedAt.Equal(best.CreatedAt) && e.ID.String() < best.ID.String()) {
			best = e
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no active experiment: %w", apperr.ErrNotFound)
	}
	return best, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
