package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"pushnami/api/apperr"
	"pushnami/api/models"
)

type ToggleStore struct {
	db *sql.DB
}

func NewToggleStore(db *sql.DB) *ToggleStore {
	return &ToggleStore{db: db}
}

const toggleColumns = `id, key, name, description, enabled, config, created_at, updated_at`

func scanToggle(row rowScanner) (*models.FeatureToggle, error) {
	var (
		t   models.FeatureToggle
		raw []byte
	)
	if err := row.Scan(&t.ID, &t.Key, &t.Name, &t.Description, &t.Enabled, &raw, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Config = map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &t.Config); err != nil {
			return nil, fmt.Errorf("decode config of toggle %s: %w", t.Key, err)
		}
	}
	return &t, nil
}

func (s *ToggleStore) ListToggles(ctx context.Context) ([]models.FeatureToggle, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+toggleColumns+` FROM feature_toggles ORDER BY created_at ASC, key ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list toggles: %w", err)
	}
	defer rows.Close()

	toggles := []models.FeatureToggle{}
	for rows.Next() {
		t, err := scanToggle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan toggle: %w", err)
		}
		toggles = append(toggles, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating toggles: %w", err)
	}
	return toggles, nil
}

func (s *ToggleStore) GetToggle(ctx context.Context, key string) (*models.FeatureToggle, error) {
	t, err := scanToggle(s.db.QueryRowContext(ctx, `SELECT `+toggleColumns+` FROM feature_toggles WHERE key = $1`, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get toggle %q: %w", key, err)
	}
	return t, nil
}

func (s *ToggleStore) UpdateToggle(ctx context.Context, t *models.FeatureToggle) error {
	cfg, err := json.Marshal(t.Config)
	if err != nil {
		return fmt.Errorf("encode toggle config: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE feature_toggles SET enabled = $2, config = $3, updated_at = $4 WHERE key = $1
	`, t.Key, t.Enabled, cfg, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update toggle %q: %w", t.Key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SeedToggle inserts t unless its key already exists. It reports whether a row was written.
func (s *ToggleStore) SeedToggle(ctx context.Context, t *models.FeatureToggle) (bool, error) {
	cfg, err := json.Marshal(t.Config)
	if err != nil {
		return false, fmt.Errorf("encode toggle config: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO feature_toggles (id, key, name, description, enabled, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (key) DO NOTHING
	`, t.ID, t.Key, t.Name, t.Description, t.Enabled, cfg, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to seed toggle %q: %w", t.Key, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
