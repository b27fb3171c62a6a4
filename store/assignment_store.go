package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pushnami/api/apperr"
	"pushnami/api/models"
)

type AssignmentStore struct {
	db *sql.DB
}

func NewAssignmentStore(db *sql.DB) *AssignmentStore {
	return &AssignmentStore{db: db}
}

func (s *AssignmentStore) GetAssignment(ctx context.Context, experimentID uuid.UUID, visitorID string) (*models.Assignment, error) {
	a := &models.Assignment{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, experiment_id, visitor_id, variant, created_at
		FROM assignments
		WHERE experiment_id = $1 AND visitor_id = $2
	`, experimentID, visitorID).Scan(&a.ID, &a.ExperimentID, &a.VisitorID, &a.Variant, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

// InsertAssignment is a single-statement insert guarded by the unique index
// on (experiment_id, visitor_id). A duplicate yields apperr.ErrConflict; a
// vanished experiment yields apperr.ErrNotFound.
func (s *AssignmentStore) InsertAssignment(ctx context.Context, a *models.Assignment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assignments (id, experiment_id, visitor_id, variant, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, a.ID, a.ExperimentID, a.VisitorID, a.Variant, a.CreatedAt)
	if err != nil {
		if mapped := translatePQ(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}
