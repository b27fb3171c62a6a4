package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AssignmentsTotal counts resolve outcomes: cached, existing, new, race_recovered.
	AssignmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "abtest",
		Name:      "assignments_total",
		Help:      "Variant resolutions by outcome.",
	}, []string{"outcome"})

	EventsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "abtest",
		Name:      "events_recorded_total",
		Help:      "Events persisted by event type.",
	}, []string{"event_type"})

	EventsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "abtest",
		Name:      "events_rejected_total",
		Help:      "Single events or batches rejected by validation.",
	})

	StatsDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "abtest",
		Name:      "stats_aggregation_seconds",
		Help:      "Time spent computing an aggregate.",
		Buckets:   prometheus.DefBuckets,
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "abtest",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "abtest",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "route"})
)

const (
	OutcomeCached        = "cached"
	OutcomeExisting      = "existing"
	OutcomeNew           = "new"
	OutcomeRaceRecovered = "race_recovered"
)
