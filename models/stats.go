package models

import "time"

// TallyCell counts events sharing a variant and event type. Variant is nil
// for events recorded without one.
type TallyCell struct {
	Variant   *string
	EventType string
	Count     uint64
}

type TimelineBucket struct {
	Hour      time.Time `json:"hour"`
	Variant   *string   `json:"variant"`
	EventType string    `json:"event_type"`
	Count     uint64    `json:"count"`
}

// Tally is the raw material the stats aggregator derives every figure from.
type Tally struct {
	TotalEvents    uint64
	UniqueVisitors uint64
	Cells          []TallyCell
	Timeline       []TimelineBucket
}

type Conversion struct {
	Views       uint64  `json:"views"`
	Clicks      uint64  `json:"clicks"`
	Submissions uint64  `json:"submissions"`
	ClickRate   float64 `json:"click_rate"`
	SubmitRate  float64 `json:"submit_rate"`
}

type VariantBreakdown struct {
	Variant   string `json:"variant"`
	EventType string `json:"event_type"`
	Count     uint64 `json:"count"`
}

type Stats struct {
	TotalEvents         uint64                `json:"total_events"`
	UniqueVisitors      uint64                `json:"unique_visitors"`
	EventsByType        map[string]uint64     `json:"events_by_type"`
	EventsByVariant     map[string]uint64     `json:"events_by_variant"`
	ConversionByVariant map[string]Conversion `json:"conversion_by_variant"`
	VariantBreakdown    []VariantBreakdown    `json:"variant_breakdown"`
	Timeline            []TimelineBucket      `json:"timeline"`
}

type TopPage struct {
	PageURL string `json:"page_url"`
	Views   uint64 `json:"views"`
}
