package store

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pushnami/api/apperr"
	"pushnami/api/models"
)

type assignmentKey struct {
	experimentID uuid.UUID
	visitorID    string
}

// MemoryStore is a process-local implementation of every repository. It
// backs STORE_DRIVER=memory and the test suites, and enforces the same
// uniqueness and cascade rules as the Postgres schema.
type MemoryStore struct {
	mu          sync.RWMutex
	experiments map[uuid.UUID]*models.Experiment
	assignments map[assignmentKey]*models.Assignment
	toggles     map[string]*models.FeatureToggle
	events      []models.Event
	admins      map[string]*models.Admin
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		experiments: map[uuid.UUID]*models.Experiment{},
		assignments: map[assignmentKey]*models.Assignment{},
		toggles:     map[string]*models.FeatureToggle{},
		admins:      map[string]*models.Admin{},
	}
}

func copyExperiment(e *models.Experiment) *models.Experiment {
	c := *e
	c.Variants = slices.Clone(e.Variants)
	c.TrafficSplit = maps.Clone(e.TrafficSplit)
	return &c
}

func copyToggle(t *models.FeatureToggle) *models.FeatureToggle {
	c := *t
	c.Config = maps.Clone(t.Config)
	if c.Config == nil {
		c.Config = map[string]any{}
	}
	return &c
}

func (m *MemoryStore) CreateExperiment(_ context.Context, e *models.Experiment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.experiments[e.ID]; ok {
		return apperr.ErrConflict
	}
	m.experiments[e.ID] = copyExperiment(e)
	return nil
}

func (m *MemoryStore) ListExperiments(_ context.Context) ([]models.Experiment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Experiment, 0, len(m.experiments))
	for _, e := range m.experiments {
		out = append(out, *copyExperiment(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *MemoryStore) GetExperiment(_ context.Context, id uuid.UUID) (*models.Experiment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.experiments[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return copyExperiment(e), nil
}

func (m *MemoryStore) UpdateExperiment(_ context.Context, e *models.Experiment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.experiments[e.ID]; !ok {
		return apperr.ErrNotFound
	}
	m.experiments[e.ID] = copyExperiment(e)
	return nil
}

func (m *MemoryStore) DeleteExperiment(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.experiments[id]; !ok {
		return apperr.ErrNotFound
	}
	for k := range m.assignments {
		if k.experimentID == id {
			delete(m.assignments, k)
		}
	}
	delete(m.experiments, id)
	return nil
}

func (m *MemoryStore) GetAssignment(_ context.Context, experimentID uuid.UUID, visitorID string) (*models.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assignments[assignmentKey{experimentID, visitorID}]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (m *MemoryStore) InsertAssignment(_ context.Context, a *models.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.experiments[a.ExperimentID]; !ok {
		return apperr.ErrNotFound
	}
	key := assignmentKey{a.ExperimentID, a.VisitorID}
	if _, ok := m.assignments[key]; ok {
		return apperr.ErrConflict
	}
	c := *a
	m.assignments[key] = &c
	return nil
}

// AssignmentCount reports how many assignments exist for an experiment.
func (m *MemoryStore) AssignmentCount(experimentID uuid.UUID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for k := range m.assignments {
		if k.experimentID == experimentID {
			n++
		}
	}
	return n
}

func (m *MemoryStore) ListToggles(_ context.Context) ([]models.FeatureToggle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.FeatureToggle, 0, len(m.toggles))
	for _, t := range m.toggles {
		out = append(out, *copyToggle(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (m *MemoryStore) GetToggle(_ context.Context, key string) (*models.FeatureToggle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.toggles[key]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return copyToggle(t), nil
}

func (m *MemoryStore) UpdateToggle(_ context.Context, t *models.FeatureToggle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.toggles[t.Key]
	if !ok {
		return apperr.ErrNotFound
	}
	existing.Enabled = t.Enabled
	existing.Config = maps.Clone(t.Config)
	existing.UpdatedAt = t.UpdatedAt
	return nil
}

func (m *MemoryStore) SeedToggle(_ context.Context, t *models.FeatureToggle) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.toggles[t.Key]; ok {
		return false, nil
	}
	m.toggles[t.Key] = copyToggle(t)
	return true, nil
}

func (m *MemoryStore) InsertEvents(_ context.Context, events []models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range events {
		e.Metadata = maps.Clone(e.Metadata)
		m.events = append(m.events, e)
	}
	return nil
}

func matchesFilter(e *models.Event, f models.EventFilter) bool {
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.Variant != "" && (e.Variant == nil || *e.Variant != f.Variant) {
		return false
	}
	if f.VisitorID != "" && e.VisitorID != f.VisitorID {
		return false
	}
	if f.ExperimentID != nil && (e.ExperimentID == nil || *e.ExperimentID != *f.ExperimentID) {
		return false
	}
	return true
}

func (m *MemoryStore) ListEvents(_ context.Context, f models.EventFilter) ([]models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Event{}
	// Newest first: events are appended in arrival order.
	for i := len(m.events) - 1; i >= 0; i-- {
		if matchesFilter(&m.events[i], f) {
			out = append(out, m.events[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Offset >= len(out) {
		return []models.Event{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func variantKey(v *string) string {
	if v == nil {
		return ""
	}
	return "v:" + *v
}

func (m *MemoryStore) TallyEvents(_ context.Context, experimentID *uuid.UUID, since time.Time) (*models.Tally, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type cellKey struct{ variant, eventType string }
	type bucketKey struct {
		hour               time.Time
		variant, eventType string
	}

	tally := &models.Tally{}
	visitors := map[string]struct{}{}
	cells := map[cellKey]*models.TallyCell{}
	buckets := map[bucketKey]*models.TimelineBucket{}
	f := models.EventFilter{ExperimentID: experimentID}

	for i := range m.events {
		e := &m.events[i]
		if !matchesFilter(e, f) {
			continue
		}
		tally.TotalEvents++
		visitors[e.VisitorID] = struct{}{}

		ck := cellKey{variantKey(e.Variant), e.EventType}
		c, ok := cells[ck]
		if !ok {
			c = &models.TallyCell{Variant: e.Variant, EventType: e.EventType}
			cells[ck] = c
		}
		c.Count++

		if e.CreatedAt.After(since) {
			hour := e.CreatedAt.UTC().Truncate(time.Hour)
			bk := bucketKey{hour, variantKey(e.Variant), e.EventType}
			b, ok := buckets[bk]
			if !ok {
				b = &models.TimelineBucket{Hour: hour, Variant: e.Variant, EventType: e.EventType}
				buckets[bk] = b
			}
			b.Count++
		}
	}
	tally.UniqueVisitors = uint64(len(visitors))

	for _, c := range cells {
		tally.Cells = append(tally.Cells, *c)
	}
	sort.Slice(tally.Cells, func(i, j int) bool {
		a, b := tally.Cells[i], tally.Cells[j]
		if va, vb := variantKey(a.Variant), variantKey(b.Variant); va != vb {
			return va < vb
		}
		return a.EventType < b.EventType
	})

	for _, b := range buckets {
		tally.Timeline = append(tally.Timeline, *b)
	}
	sort.Slice(tally.Timeline, func(i, j int) bool {
		a, b := tally.Timeline[i], tally.Timeline[j]
		if !a.Hour.Equal(b.Hour) {
			return a.Hour.Before(b.Hour)
		}
		if va, vb := variantKey(a.Variant), variantKey(b.Variant); va != vb {
			return va < vb
		}
		return a.EventType < b.EventType
	})
	return tally, nil
}

func (m *MemoryStore) TopPages(_ context.Context, experimentID *uuid.UUID, limit int) ([]models.TopPage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := map[string]uint64{}
	f := models.EventFilter{EventType: models.EventPageView, ExperimentID: experimentID}
	for i := range m.events {
		e := &m.events[i]
		if e.PageURL == nil || !matchesFilter(e, f) {
			continue
		}
		counts[*e.PageURL]++
	}
	out := make([]models.TopPage, 0, len(counts))
	for url, n := range counts {
		out = append(out, models.TopPage{PageURL: url, Views: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Views != out[j].Views {
			return out[i].Views > out[j].Views
		}
		return out[i].PageURL < out[j].PageURL
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CreateAdmin(_ context.Context, email string, hashedPassword []byte) (*models.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(email)
	if _, ok := m.admins[email]; ok {
		return nil, apperr.ErrConflict
	}
	now := time.Now().UTC()
	a := &models.Admin{ID: uuid.New(), Email: email, HashedPassword: hashedPassword, CreatedAt: now, UpdatedAt: now}
	m.admins[email] = a
	c := *a
	return &c, nil
}

func (m *MemoryStore) GetAdminByEmail(_ context.Context, email string) (*models.Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.admins[strings.ToLower(email)]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	c := *a
	return &c, nil
}
