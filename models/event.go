package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventPageView   = "page_view"
	EventClick      = "click"
	EventFormSubmit = "form_submit"
	EventScroll     = "scroll"
	EventEngagement = "engagement"
)

// EventTypes is the closed vocabulary accepted by the ingestor.
var EventTypes = []string{EventPageView, EventClick, EventFormSubmit, EventScroll, EventEngagement}

func IsValidEventType(t string) bool {
	for _, et := range EventTypes {
		if et == t {
			return true
		}
	}
	return false
}

// Event is a single recorded interaction. Events are never updated.
type Event struct {
	ID           uuid.UUID      `json:"id"`
	VisitorID    string         `json:"visitor_id"`
	ExperimentID *uuid.UUID     `json:"experiment_id"`
	Variant      *string        `json:"variant"`
	EventType    string         `json:"event_type"`
	EventName    *string        `json:"event_name"`
	Metadata     map[string]any `json:"metadata"`
	PageURL      *string        `json:"page_url"`
	UserAgent    *string        `json:"user_agent"`
	CreatedAt    time.Time      `json:"created_at"`
}

// EventInput is the body of POST /api/events and one element of a batch.
type EventInput struct {
	VisitorID    string         `json:"visitor_id" validate:"required,max=255"`
	ExperimentID *uuid.UUID     `json:"experiment_id"`
	Variant      *string        `json:"variant" validate:"omitempty,min=1,max=255"`
	EventType    string         `json:"event_type" validate:"required,oneof=page_view click form_submit scroll engagement"`
	EventName    *string        `json:"event_name" validate:"omitempty,max=255"`
	Metadata     map[string]any `json:"metadata"`
	PageURL      *string        `json:"page_url" validate:"omitempty,max=2048"`
	UserAgent    *string        `json:"user_agent" validate:"omitempty,max=1024"`
}

// EventFilter narrows GET /api/events and the stats scope.
type EventFilter struct {
	EventType    string
	Variant      string
	VisitorID    string
	ExperimentID *uuid.UUID
	Limit        int
	Offset       int
}
