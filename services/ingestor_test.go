package services

import (
	"context"
	"strings"
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

func pageView(visitor string) models.EventInput {
	return models.EventInput{VisitorID: visitor, EventType: models.EventPageView}
}

func nestedMetadata(levels int) map[string]any {
	var v any = "leaf"
	for i := 0; i < levels; i++ {
		v = map[string]any{"child": v}
	}
	return v.(map[string]any)
}

func TestValidateEvent(t *testing.T) {
	tests := []struct {
		name  string
		in    models.EventInput
		field string
	}{
		{"valid", pageView("v1"), ""},
		{"every type", models.EventInput{VisitorID: "v1", EventType: models.EventEngagement}, ""},
		{"unknown type", models.EventInput{VisitorID: "v1", EventType: "purchase"}, "event_type"},
		{"missing type", models.EventInput{VisitorID: "v1"}, "event_type"},
		{"empty visitor", models.EventInput{EventType: models.EventClick}, "visitor_id"},
		{"blank visitor", models.EventInput{VisitorID: "  ", EventType: models.EventClick}, "visitor_id"},
		{"long visitor", models.EventInput{VisitorID: strings.Repeat("v", 256), EventType: models.EventClick}, "visitor_id"},
		{"empty variant", models.EventInput{VisitorID: "v1", EventType: models.EventClick, Variant: strPtr("")}, "variant"},
		{"shallow metadata", models.EventInput{VisitorID: "v1", EventType: models.EventScroll, Metadata: nestedMetadata(6)}, ""},
		{"deep metadata", models.EventInput{VisitorID: "v1", EventType: models.EventScroll, Metadata: nestedMetadata(9)}, "metadata"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEvent(&tt.in)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			requireValidation(t, err, tt.field)
		})
	}
}

func TestValidateEventMetadataSize(t *testing.T) {
	md := map[string]any{"blob": strings.Repeat("x", 17<<10)}
	err := ValidateEvent(&models.EventInput{VisitorID: "v1", EventType: models.EventClick, Metadata: md})
	requireValidation(t, err, "metadata")

	wide := map[string]any{}
	for i := 0; i < 300; i++ {
		wide[uuid.NewString()] = i
	}
	err = ValidateEvent(&models.EventInput{VisitorID: "v1", EventType: models.EventClick, Metadata: wide})
	requireValidation(t, err, "metadata")
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	ing := NewIngestor(mem, logger.Nop())

	expID := uuid.New()
	in := models.EventInput{
		VisitorID:    "v1",
		ExperimentID: &expID,
		Variant:      strPtr("control"),
		EventType:    models.EventClick,
		EventName:    strPtr("cta"),
		Metadata:     map[string]any{"button": "hero"},
	}
	id, err := ing.Record(ctx, in)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	_, err = ing.Record(ctx, pageView("v2"))
	require.NoError(t, err)

	events, err := ing.List(ctx, models.EventFilter{ExperimentID: &expID})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
	assert.Equal(t, "control", *events[0].Variant)
	assert.Equal(t, "hero", events[0].Metadata["button"])

	all, err := ing.List(ctx, models.EventFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byType, err := ing.List(ctx, models.EventFilter{EventType: models.EventPageView})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "v2", byType[0].VisitorID)
	assert.NotNil(t, byType[0].Metadata)
}

func TestRecordRejectsInvalidEvent(t *testing.T) {
	mem := store.NewMemoryStore()
	ing := NewIngestor(mem, logger.Nop())

	_, err := ing.Record(context.Background(), models.EventInput{VisitorID: "v1", EventType: "hover"})
	requireValidation(t, err, "event_type")

	events, err := ing.List(context.Background(), models.EventFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRecordBatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	ing := NewIngestor(mem, logger.Nop())

	batch := []models.EventInput{
		pageView("v1"), pageView("v2"),
		{VisitorID: "v3", EventType: "bogus"},
		pageView("v4"), pageView("v5"), pageView("v6"),
	}
	require.Len(t, batch, 6)
	_, err := ing.RecordBatch(ctx, batch)
	ve, ok := apperr.IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, 2, ve.Index)
	assert.Equal(t, "event_type", ve.Field)

	events, err := ing.List(ctx, models.EventFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)

	ids, err := ing.RecordBatch(ctx, []models.EventInput{pageView("v1"), pageView("v2")})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
}

func TestRecordBatchBounds(t *testing.T) {
	ing := NewIngestor(store.NewMemoryStore(), logger.Nop())

	_, err := ing.RecordBatch(context.Background(), nil)
	requireValidation(t, err, "events")

	big := make([]models.EventInput, MaxBatchSize+1)
	for i := range big {
		big[i] = pageView("v")
	}
	_, err = ing.RecordBatch(context.Background(), big)
	requireValidation(t, err, "events")
}

func TestListValidatesPaging(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	ing := NewIngestor(mem, logger.Nop())
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		ing.now = func() time.Time { return at }
		_, err := ing.Record(ctx, pageView("v"))
		require.NoError(t, err)
	}

	page, err := ing.List(ctx, models.EventFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, base.Add(3*time.Minute), page[0].CreatedAt)
	assert.Equal(t, base.Add(2*time.Minute), page[1].CreatedAt)

	_, err = ing.List(ctx, models.EventFilter{Limit: 1001})
	requireValidation(t, err, "limit")
	_, err = ing.List(ctx, models.EventFilter{Limit: -1})
	requireValidation(t, err, "limit")
	_, err = ing.List(ctx, models.EventFilter{EventType: "hover"})
	requireValidation(t, err, "event_type")
}
