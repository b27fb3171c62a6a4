package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pushnami/api/logger"
	"pushnami/api/models"
)

// DefaultToggles are the flags seeded by `abctl seed`. Toggles are never
// created through the HTTP surface.
var DefaultToggles = []models.FeatureToggle{
	{Key: "particles", Name: "Particle background", Description: "Animated particle field behind the hero section", Config: map[string]any{"density": 80}},
	{Key: "lightning", Name: "Lightning effect", Description: "Periodic lightning flashes on the landing page", Config: map[string]any{"interval_ms": 6000}},
	{Key: "model_viewer", Name: "3D model viewer", Description: "Interactive 3D model playback", Config: map[string]any{}},
	{Key: "background_music", Name: "Background music", Description: "Ambient audio track with a mute control", Config: map[string]any{"volume": 0.3}},
}

type Toggles struct {
	store ToggleStore
	log   *logger.Logger
	now   func() time.Time
}

func NewToggles(store ToggleStore, log *logger.Logger) *Toggles {
	return &Toggles{
		store: store,
		log:   log.With("service", "ToggleStore"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (t *Toggles) List(ctx context.Context) ([]models.FeatureToggle, error) {
	return t.store.ListToggles(ctx)
}

func (t *Toggles) Get(ctx context.Context, key string) (*models.FeatureToggle, error) {
	return t.store.GetToggle(ctx, key)
}

// Update changes an existing toggle. Unknown keys yield apperr.ErrNotFound.
func (t *Toggles) Update(ctx context.Context, key string, req models.UpdateToggleRequest) (*models.FeatureToggle, error) {
	toggle, err := t.store.GetToggle(ctx, key)
	if err != nil {
		return nil, err
	}
	if req.Enabled != nil {
		toggle.Enabled = *req.Enabled
	}
	if req.Config != nil {
		toggle.Config = req.Config
	}
	toggle.UpdatedAt = t.now()
	if err := t.store.UpdateToggle(ctx, toggle); err != nil {
		return nil, err
	}
	t.log.Info("Updated toggle", "key", key, "enabled", toggle.Enabled)
	return toggle, nil
}

// Seed inserts the given toggles unless their keys exist and returns how many were written.
func (t *Toggles) Seed(ctx context.Context, toggles []models.FeatureToggle) (int, error) {
	written := 0
	for i := range toggles {
		seed := toggles[i]
		now := t.now()
		seed.ID = uuid.New()
		seed.CreatedAt = now
		seed.UpdatedAt = now
		ok, err := t.store.SeedToggle(ctx, &seed)
		if err != nil {
			return written, err
		}
		if ok {
			written++
		}
	}
	return written, nil
}
