package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pushnami/api/apperr"
	"pushnami/api/models"
)

type ExperimentStore struct {
	db *sql.DB
}

func NewExperimentStore(db *sql.DB) *ExperimentStore {
	return &ExperimentStore{db: db}
}

const experimentColumns = `id, name, description, variants, traffic_split, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExperiment(row rowScanner) (*models.Experiment, error) {
	var (
		e                  models.Experiment
		variantsRaw, split []byte
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Description, &variantsRaw, &split, &e.IsActive, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(variantsRaw, &e.Variants); err != nil {
		return nil, fmt.Errorf("decode variants of experiment %s: %w", e.ID, err)
	}
	if err := json.Unmarshal(split, &e.TrafficSplit); err != nil {
		return nil, fmt.Errorf("decode traffic split of experiment %s: %w", e.ID, err)
	}
	return &e, nil
}

func (s *ExperimentStore) CreateExperiment(ctx context.Context, e *models.Experiment) error {
	variants, err := json.Marshal(e.Variants)
	if err != nil {
		return fmt.Errorf("encode variants: %w", err)
	}
	split, err := json.Marshal(e.TrafficSplit)
	if err != nil {
		return fmt.Errorf("encode traffic split: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO experiments (id, name, description, variants, traffic_split, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.Name, e.Description, variants, split, e.IsActive, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create experiment: %w", err)
	}
	return nil
}

// ListExperiments returns experiments in creation order, earliest first.
func (s *ExperimentStore) ListExperiments(ctx context.Context) ([]models.Experiment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+experimentColumns+` FROM experiments ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	defer rows.Close()

	experiments := []models.Experiment{}
	for rows.Next() {
		e, err := scanExperiment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}
		experiments = append(experiments, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating experiments: %w", err)
	}
	return experiments, nil
}

func (s *ExperimentStore) GetExperiment(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	e, err := scanExperiment(s.db.QueryRowContext(ctx, `SELECT `+experimentColumns+` FROM experiments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get experiment %s: %w", id, err)
	}
	return e, nil
}

func (s *ExperimentStore) UpdateExperiment(ctx context.Context, e *models.Experiment) error {
	variants, err := json.Marshal(e.Variants)
	if err != nil {
		return fmt.Errorf("encode variants: %w", err)
	}
	split, err := json.Marshal(e.TrafficSplit)
	if err != nil {
		return fmt.Errorf("encode traffic split: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE experiments
		SET name = $2, description = $3, variants = $4, traffic_split = $5, is_active = $6, updated_at = $7
		WHERE id = $1
	`, e.ID, e.Name, e.Description, variants, split, e.IsActive, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update experiment %s: %w", e.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// DeleteExperiment removes the experiment and its assignments in one transaction.
func (s *ExperimentStore) DeleteExperiment(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE experiment_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete assignments of %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM experiments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete experiment %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete of %s: %w", id, err)
	}
	return nil
}
