package services

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"pushnami/api/logger"
	"pushnami/api/metrics"
	"pushnami/api/models"
)

const (
	timelineWindow      = 24 * time.Hour
	defaultTopPageLimit = 10
)

// Aggregator computes conversion statistics from the stored events on every
// call. Nothing is cached between calls.
type Aggregator struct {
	events      EventStore
	experiments ExperimentStore
	log         *logger.Logger
	now         func() time.Time
}

func NewAggregator(events EventStore, experiments ExperimentStore, log *logger.Logger) *Aggregator {
	return &Aggregator{
		events:      events,
		experiments: experiments,
		log:         log.With("service", "StatsAggregator"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Aggregate summarizes all events, or only those of experimentID when set.
// A scoped call for an unknown experiment fails with apperr.ErrNotFound.
func (a *Aggregator) Aggregate(ctx context.Context, experimentID *uuid.UUID) (*models.Stats, error) {
	start := time.Now()
	defer func() { metrics.StatsDuration.Observe(time.Since(start).Seconds()) }()

	ctx, span := tracer.Start(ctx, "Aggregator.Aggregate")
	defer span.End()

	if experimentID != nil {
		if _, err := a.experiments.GetExperiment(ctx, *experimentID); err != nil {
			return nil, err
		}
	}
	tally, err := a.events.TallyEvents(ctx, experimentID, a.now().Add(-timelineWindow))
	if err != nil {
		return nil, err
	}
	return Summarize(tally), nil
}

// TopPages lists the most viewed page URLs.
func (a *Aggregator) TopPages(ctx context.Context, experimentID *uuid.UUID, limit int) ([]models.TopPage, error) {
	if limit <= 0 {
		limit = defaultTopPageLimit
	}
	if experimentID != nil {
		if _, err := a.experiments.GetExperiment(ctx, *experimentID); err != nil {
			return nil, err
		}
	}
	return a.events.TopPages(ctx, experimentID, limit)
}

// Summarize derives every breakdown and rate of Stats from a raw tally.
// Events without a variant count toward totals and events_by_type only.
func Summarize(t *models.Tally) *models.Stats {
	stats := &models.Stats{
		TotalEvents:         t.TotalEvents,
		UniqueVisitors:      t.UniqueVisitors,
		EventsByType:        map[string]uint64{},
		EventsByVariant:     map[string]uint64{},
		ConversionByVariant: map[string]models.Conversion{},
		VariantBreakdown:    []models.VariantBreakdown{},
		Timeline:            []models.TimelineBucket{},
	}

	for _, c := range t.Cells {
		stats.EventsByType[c.EventType] += c.Count
		if c.Variant == nil {
			continue
		}
		v := *c.Variant
		stats.EventsByVariant[v] += c.Count
		stats.VariantBreakdown = append(stats.VariantBreakdown, models.VariantBreakdown{
			Variant:   v,
			EventType: c.EventType,
			Count:     c.Count,
		})

		conv := stats.ConversionByVariant[v]
		switch c.EventType {
		case models.EventPageView:
			conv.Views += c.Count
		case models.EventClick:
			conv.Clicks += c.Count
		case models.EventFormSubmit:
			conv.Submissions += c.Count
		}
		stats.ConversionByVariant[v] = conv
	}

	for v, conv := range stats.ConversionByVariant {
		conv.ClickRate = percentage(conv.Clicks, conv.Views)
		conv.SubmitRate = percentage(conv.Submissions, conv.Views)
		stats.ConversionByVariant[v] = conv
	}

	sort.SliceStable(stats.VariantBreakdown, func(i, j int) bool {
		a, b := stats.VariantBreakdown[i], stats.VariantBreakdown[j]
		if a.Variant != b.Variant {
			return a.Variant < b.Variant
		}
		return a.EventType < b.EventType
	})
	stats.Timeline = append(stats.Timeline, t.Timeline...)
	return stats
}

// percentage returns part/whole*100 rounded to two decimals, or 0 when whole is 0.
func percentage(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*100*100) / 100
}
