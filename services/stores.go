package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pushnami/api/models"
)

type ExperimentStore interface {
	CreateExperiment(ctx context.Context, e *models.Experiment) error
	ListExperiments(ctx context.Context) ([]models.Experiment, error)
	GetExperiment(ctx context.Context, id uuid.UUID) (*models.Experiment, error)
	UpdateExperiment(ctx context.Context, e *models.Experiment) error
	DeleteExperiment(ctx context.Context, id uuid.UUID) error
}

type AssignmentStore interface {
	GetAssignment(ctx context.Context, experimentID uuid.UUID, visitorID string) (*models.Assignment, error)
	InsertAssignment(ctx context.Context, a *models.Assignment) error
}

// AssignmentCache is an optional read-through layer in front of AssignmentStore.
type AssignmentCache interface {
	Get(ctx context.Context, experimentID uuid.UUID, visitorID string) (string, bool, error)
	Set(ctx context.Context, experimentID uuid.UUID, visitorID, variant string) error
	Purge(ctx context.Context, experimentID uuid.UUID) error
}

type ToggleStore interface {
	ListToggles(ctx context.Context) ([]models.FeatureToggle, error)
	GetToggle(ctx context.Context, key string) (*models.FeatureToggle, error)
	UpdateToggle(ctx context.Context, t *models.FeatureToggle) error
	SeedToggle(ctx context.Context, t *models.FeatureToggle) (bool, error)
}

type EventStore interface {
	InsertEvents(ctx context.Context, events []models.Event) error
	ListEvents(ctx context.Context, f models.EventFilter) ([]models.Event, error)
	TallyEvents(ctx context.Context, experimentID *uuid.UUID, since time.Time) (*models.Tally, error)
	TopPages(ctx context.Context, experimentID *uuid.UUID, limit int) ([]models.TopPage, error)
}

type AdminStore interface {
	CreateAdmin(ctx context.Context, email string, hashedPassword []byte) (*models.Admin, error)
	GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error)
}
