package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"pushnami/api/models"
)

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

// fakeCache is an in-process AssignmentCache that records purges.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]string
	purged  []uuid.UUID
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]string{}}
}

func (c *fakeCache) key(experimentID uuid.UUID, visitorID string) string {
	return experimentID.String() + "/" + visitorID
}

func (c *fakeCache) Get(_ context.Context, experimentID uuid.UUID, visitorID string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[c.key(experimentID, visitorID)]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, experimentID uuid.UUID, visitorID, variant string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.key(experimentID, visitorID)] = variant
	return nil
}

func (c *fakeCache) Purge(_ context.Context, experimentID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purged = append(c.purged, experimentID)
	return nil
}

func defaultExperimentRequest(name string) models.CreateExperimentRequest {
	return models.CreateExperimentRequest{
		Name:         name,
		Variants:     []string{"control", "variant_a"},
		TrafficSplit: map[string]int{"control": 50, "variant_a": 50},
	}
}
