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

func record(t *testing.T, ing *Ingestor, n int, in models.EventInput) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := ing.Record(context.Background(), in)
		require.NoError(t, err)
	}
}

func TestSummarizeConversionRates(t *testing.T) {
	tally := &models.Tally{
		TotalEvents:    15,
		UniqueVisitors: 10,
		Cells: []models.TallyCell{
			{Variant: strPtr("neon"), EventType: models.EventPageView, Count: 10},
			{Variant: strPtr("neon"), EventType: models.EventClick, Count: 4},
			{Variant: strPtr("neon"), EventType: models.EventFormSubmit, Count: 1},
		},
	}
	stats := Summarize(tally)

	conv := stats.ConversionByVariant["neon"]
	assert.Equal(t, uint64(10), conv.Views)
	assert.Equal(t, uint64(4), conv.Clicks)
	assert.Equal(t, uint64(1), conv.Submissions)
	assert.Equal(t, 40.00, conv.ClickRate)
	assert.Equal(t, 10.00, conv.SubmitRate)
	assert.Equal(t, uint64(15), stats.EventsByVariant["neon"])
	assert.Len(t, stats.VariantBreakdown, 3)
}

func TestSummarizeZeroViews(t *testing.T) {
	stats := Summarize(&models.Tally{
		TotalEvents: 3,
		Cells: []models.TallyCell{
			{Variant: strPtr("control"), EventType: models.EventClick, Count: 3},
		},
	})
	conv := stats.ConversionByVariant["control"]
	assert.Equal(t, 0.0, conv.ClickRate)
	assert.Equal(t, 0.0, conv.SubmitRate)
}

func TestSummarizeExcludesEventsWithoutVariant(t *testing.T) {
	stats := Summarize(&models.Tally{
		TotalEvents: 7,
		Cells: []models.TallyCell{
			{Variant: nil, EventType: models.EventPageView, Count: 5},
			{Variant: strPtr("control"), EventType: models.EventPageView, Count: 2},
		},
	})
	assert.Equal(t, uint64(7), stats.TotalEvents)
	assert.Equal(t, uint64(7), stats.EventsByType[models.EventPageView])
	assert.Equal(t, map[string]uint64{"control": 2}, stats.EventsByVariant)
	assert.Len(t, stats.ConversionByVariant, 1)
	require.Len(t, stats.VariantBreakdown, 1)
	assert.Equal(t, "control", stats.VariantBreakdown[0].Variant)
}

func TestSummarizeEmpty(t *testing.T) {
	stats := Summarize(&models.Tally{})
	assert.Zero(t, stats.TotalEvents)
	assert.NotNil(t, stats.EventsByType)
	assert.NotNil(t, stats.ConversionByVariant)
	assert.NotNil(t, stats.VariantBreakdown)
	assert.NotNil(t, stats.Timeline)
}

func TestPercentageRounding(t *testing.T) {
	assert.Equal(t, 33.33, percentage(1, 3))
	assert.Equal(t, 66.67, percentage(2, 3))
	assert.Equal(t, 0.0, percentage(5, 0))
}

func TestAggregateScopesToExperiment(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	reg := NewRegistry(mem, nil, logger.Nop())
	ing := NewIngestor(mem, logger.Nop())
	agg := NewAggregator(mem, mem, logger.Nop())

	exp, err := reg.Create(ctx, defaultExperimentRequest("neon"))
	require.NoError(t, err)
	other, err := reg.Create(ctx, defaultExperimentRequest("other"))
	require.NoError(t, err)

	record(t, ing, 10, models.EventInput{VisitorID: "a", ExperimentID: &exp.ID, Variant: strPtr("variant_a"), EventType: models.EventPageView})
	record(t, ing, 4, models.EventInput{VisitorID: "b", ExperimentID: &exp.ID, Variant: strPtr("variant_a"), EventType: models.EventClick})
	record(t, ing, 1, models.EventInput{VisitorID: "c", ExperimentID: &exp.ID, Variant: strPtr("variant_a"), EventType: models.EventFormSubmit})
	record(t, ing, 3, models.EventInput{VisitorID: "d", ExperimentID: &other.ID, Variant: strPtr("control"), EventType: models.EventPageView})
	record(t, ing, 2, models.EventInput{VisitorID: "e", EventType: models.EventScroll})

	stats, err := agg.Aggregate(ctx, &exp.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(15), stats.TotalEvents)
	assert.Equal(t, uint64(3), stats.UniqueVisitors)
	conv := stats.ConversionByVariant["variant_a"]
	assert.Equal(t, 40.00, conv.ClickRate)
	assert.Equal(t, 10.00, conv.SubmitRate)
	assert.NotContains(t, stats.ConversionByVariant, "control")
	assert.NotEmpty(t, stats.Timeline)

	all, err := agg.Aggregate(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), all.TotalEvents)
	assert.Equal(t, uint64(5), all.UniqueVisitors)
	assert.Equal(t, uint64(2), all.EventsByType[models.EventScroll])

	missing := uuid.New()
	_, err = agg.Aggregate(ctx, &missing)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestAggregateTimelineWindow(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	ing := NewIngestor(mem, logger.Nop())
	agg := NewAggregator(mem, mem, logger.Nop())

	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	agg.now = func() time.Time { return now }

	ing.now = func() time.Time { return now.Add(-48 * time.Hour) }
	record(t, ing, 1, pageView("old"))
	ing.now = func() time.Time { return now.Add(-time.Hour) }
	record(t, ing, 2, pageView("recent"))

	stats, err := agg.Aggregate(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.TotalEvents)
	require.Len(t, stats.Timeline, 1)
	assert.Equal(t, uint64(2), stats.Timeline[0].Count)
	assert.Equal(t, now.Add(-time.Hour).Truncate(time.Hour), stats.Timeline[0].Hour)
}

func TestTopPages(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	ing := NewIngestor(mem, logger.Nop())
	agg := NewAggregator(mem, mem, logger.Nop())

	home, pricing := "/", "/pricing"
	record(t, ing, 3, models.EventInput{VisitorID: "a", EventType: models.EventPageView, PageURL: &home})
	record(t, ing, 1, models.EventInput{VisitorID: "b", EventType: models.EventPageView, PageURL: &pricing})
	record(t, ing, 5, models.EventInput{VisitorID: "c", EventType: models.EventClick, PageURL: &pricing})

	pages, err := agg.TopPages(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, models.TopPage{PageURL: "/", Views: 3}, pages[0])
	assert.Equal(t, models.TopPage{PageURL: "/pricing", Views: 1}, pages[1])

	pages, err = agg.TopPages(ctx, nil, 1)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}
