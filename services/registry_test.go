package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pushnami/api/apperr"
	"pushnami/api/logger"
	"pushnami/api/models"
	"pushnami/api/store"
)

func requireValidation(t *testing.T, err error, field string) {
	t.Helper()
	ve, ok := apperr.IsValidation(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Equal(t, field, ve.Field)
}

func TestValidateVariants(t *testing.T) {
	tests := []struct {
		name     string
		variants []string
		split    map[string]int
		field    string
	}{
		{"valid", []string{"a", "b"}, map[string]int{"a": 50, "b": 50}, ""},
		{"zero share", []string{"a", "b"}, map[string]int{"a": 0, "b": 100}, ""},
		{"sum 99", []string{"a", "b"}, map[string]int{"a": 49, "b": 50}, "traffic_split"},
		{"sum 101", []string{"a", "b"}, map[string]int{"a": 51, "b": 50}, "traffic_split"},
		{"single variant", []string{"a"}, map[string]int{"a": 100}, "variants"},
		{"duplicate", []string{"a", "a"}, map[string]int{"a": 100}, "variants"},
		{"empty name", []string{"a", " "}, map[string]int{"a": 50, " ": 50}, "variants"},
		{"missing key", []string{"a", "b"}, map[string]int{"a": 100}, "traffic_split"},
		{"extra key", []string{"a", "b"}, map[string]int{"a": 50, "b": 25, "c": 25}, "traffic_split"},
		{"foreign key", []string{"a", "b"}, map[string]int{"a": 50, "c": 50}, "traffic_split"},
		{"negative", []string{"a", "b"}, map[string]int{"a": -10, "b": 110}, "traffic_split"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVariants(tt.variants, tt.split)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			requireValidation(t, err, tt.field)
		})
	}
}

func TestRegistryCreateDefaults(t *testing.T) {
	reg := NewRegistry(store.NewMemoryStore(), nil, logger.Nop())

	exp, err := reg.Create(context.Background(), models.CreateExperimentRequest{Name: "Hero copy"})
	require.NoError(t, err)
	assert.Equal(t, []string{"control", "variant"}, exp.Variants)
	assert.Equal(t, map[string]int{"control": 50, "variant": 50}, exp.TrafficSplit)
	assert.True(t, exp.IsActive)
	assert.NotEqual(t, uuid.Nil, exp.ID)

	got, err := reg.Get(context.Background(), exp.ID)
	require.NoError(t, err)
	assert.Equal(t, exp.Name, got.Name)
}

func TestRegistryCreateRejectsBadInput(t *testing.T) {
	reg := NewRegistry(store.NewMemoryStore(), nil, logger.Nop())

	_, err := reg.Create(context.Background(), models.CreateExperimentRequest{Name: ""})
	requireValidation(t, err, "name")

	req := defaultExperimentRequest("bad split")
	req.TrafficSplit = map[string]int{"control": 60, "variant_a": 50}
	_, err = reg.Create(context.Background(), req)
	requireValidation(t, err, "traffic_split")

	list, err := reg.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRegistryCreateInactive(t *testing.T) {
	reg := NewRegistry(store.NewMemoryStore(), nil, logger.Nop())
	req := defaultExperimentRequest("paused")
	req.IsActive = boolPtr(false)

	exp, err := reg.Create(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, exp.IsActive)
}

func TestRegistryUpdateRevalidatesMergedState(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(store.NewMemoryStore(), nil, logger.Nop())
	exp, err := reg.Create(ctx, defaultExperimentRequest("checkout"))
	require.NoError(t, err)

	// Replacing only the variants leaves the old split keys behind.
	_, err = reg.Update(ctx, exp.ID, models.UpdateExperimentRequest{Variants: []string{"control", "variant_b"}})
	requireValidation(t, err, "traffic_split")

	updated, err := reg.Update(ctx, exp.ID, models.UpdateExperimentRequest{
		Name:         strPtr("checkout v2"),
		TrafficSplit: map[string]int{"control": 20, "variant_a": 80},
		IsActive:     boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "checkout v2", updated.Name)
	assert.Equal(t, 80, updated.TrafficSplit["variant_a"])
	assert.False(t, updated.IsActive)

	stored, err := reg.Get(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.TrafficSplit, stored.TrafficSplit)
	assert.Equal(t, "checkout v2", stored.Name)
}

func TestRegistryUpdateUnknown(t *testing.T) {
	reg := NewRegistry(store.NewMemoryStore(), nil, logger.Nop())
	_, err := reg.Update(context.Background(), uuid.New(), models.UpdateExperimentRequest{Name: strPtr("x")})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestRegistryDeleteCascadesAndPurgesCache(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	cache := newFakeCache()
	reg := NewRegistry(mem, cache, logger.Nop())
	res := NewResolver(mem, mem, cache, logger.Nop())

	exp, err := reg.Create(ctx, defaultExperimentRequest("landing"))
	require.NoError(t, err)
	_, _, err = res.Resolve(ctx, "visitor-1", exp.ID)
	require.NoError(t, err)
	require.Equal(t, 1, mem.AssignmentCount(exp.ID))

	require.NoError(t, reg.Delete(ctx, exp.ID))
	assert.Equal(t, 0, mem.AssignmentCount(exp.ID))
	assert.Equal(t, []uuid.UUID{exp.ID}, cache.purged)

	_, err = reg.Get(ctx, exp.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.True(t, errors.Is(reg.Delete(ctx, exp.ID), apperr.ErrNotFound))

	_, _, err = res.Resolve(ctx, "visitor-1", exp.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	recreated, err := reg.Create(ctx, defaultExperimentRequest("landing"))
	require.NoError(t, err)
	_, isNew, err := res.Resolve(ctx, "visitor-1", recreated.ID)
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestRegistryActiveExperiment(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(store.NewMemoryStore(), nil, logger.Nop())

	_, err := reg.ActiveExperiment(ctx)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	reg.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	paused := defaultExperimentRequest("paused")
	paused.IsActive = boolPtr(false)
	_, err = reg.Create(ctx, paused)
	require.NoError(t, err)
	first, err := reg.Create(ctx, defaultExperimentRequest("first"))
	require.NoError(t, err)
	_, err = reg.Create(ctx, defaultExperimentRequest("second"))
	require.NoError(t, err)

	active, err := reg.ActiveExperiment(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	list, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "paused", list[0].Name)
	assert.Equal(t, "first", list[1].Name)
}

func TestFirstActiveBreaksTiesByID(t *testing.T) {
	at := time.Now()
	a := models.Experiment{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), IsActive: true, CreatedAt: at}
	b := models.Experiment{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), IsActive: true, CreatedAt: at}

	got, err := FirstActive([]models.Experiment{a, b})
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
}
