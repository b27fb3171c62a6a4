package models

import (
	"time"

	"github.com/google/uuid"
)

type FeatureToggle struct {
	ID          uuid.UUID      `json:"id"`
	Key         string         `json:"key"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Enabled     bool           `json:"enabled"`
	Config      map[string]any `json:"config"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type UpdateToggleRequest struct {
	Enabled *bool          `json:"enabled"`
	Config  map[string]any `json:"config"`
}
