package models

import (
	"time"

	"github.com/google/uuid"
)

type Experiment struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Variants     []string       `json:"variants"`
	TrafficSplit map[string]int `json:"traffic_split"`
	IsActive     bool           `json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// CreateExperimentRequest is the body of POST /api/experiments.
type CreateExperimentRequest struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Variants     []string       `json:"variants"`
	TrafficSplit map[string]int `json:"traffic_split"`
	IsActive     *bool          `json:"is_active"`
}

// UpdateExperimentRequest is a partial update; nil fields are left untouched.
type UpdateExperimentRequest struct {
	Name         *string        `json:"name"`
	Description  *string        `json:"description"`
	Variants     []string       `json:"variants"`
	TrafficSplit map[string]int `json:"traffic_split"`
	IsActive     *bool          `json:"is_active"`
}

type Assignment struct {
	ID           uuid.UUID `json:"id"`
	ExperimentID uuid.UUID `json:"experiment_id"`
	VisitorID    string    `json:"visitor_id"`
	Variant      string    `json:"variant"`
	CreatedAt    time.Time `json:"created_at"`
}

type AssignmentResponse struct {
	VisitorID    string    `json:"visitor_id"`
	ExperimentID uuid.UUID `json:"experiment_id"`
	Variant      string    `json:"variant"`
	IsNew        bool      `json:"is_new"`
}
