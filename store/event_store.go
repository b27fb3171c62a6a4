package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pushnami/api/models"
)

// EventStore keeps the append-only event log in Postgres.
type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// InsertEvents writes all events in one transaction, so a batch is either
// fully recorded or not at all.
func (s *EventStore) InsertEvents(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin event insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (
			id, visitor_id, experiment_id, variant, event_type, event_name,
			metadata, page_url, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		metadata, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata of event %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.VisitorID, e.ExperimentID, e.Variant, e.EventType, e.EventName,
			metadata, e.PageURL, e.UserAgent, e.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert event %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}
	return nil
}

func buildEventWhere(f models.EventFilter, args []any) (string, []any) {
	var clauses []string
	add := func(cond string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(cond, len(args)))
	}
	if f.EventType != "" {
		add("event_type = $%d", f.EventType)
	}
	if f.Variant != "" {
		add("variant = $%d", f.Variant)
	}
	if f.VisitorID != "" {
		add("visitor_id = $%d", f.VisitorID)
	}
	if f.ExperimentID != nil {
		add("experiment_id = $%d", *f.ExperimentID)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// ListEvents returns the filtered events, most recent first.
func (s *EventStore) ListEvents(ctx context.Context, f models.EventFilter) ([]models.Event, error) {
	where, args := buildEventWhere(f, nil)
	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`
		SELECT id, visitor_id, experiment_id, variant, event_type, event_name,
		       metadata, page_url, user_agent, created_at
		FROM events
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var (
			e          models.Event
			experiment uuid.NullUUID
			metadata   []byte
		)
		if err := rows.Scan(&e.ID, &e.VisitorID, &experiment, &e.Variant, &e.EventType, &e.EventName,
			&metadata, &e.PageURL, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if experiment.Valid {
			id := experiment.UUID
			e.ExperimentID = &id
		}
		e.Metadata = map[string]any{}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of event %s: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// TallyEvents counts events for the optional experiment scope. The three
// queries run concurrently; each one sees its own snapshot, which is fine
// for an append-only log.
func (s *EventStore) TallyEvents(ctx context.Context, experimentID *uuid.UUID, since time.Time) (*models.Tally, error) {
	where, args := buildEventWhere(models.EventFilter{ExperimentID: experimentID}, nil)
	tally := &models.Tally{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		query := `SELECT COUNT(*), COUNT(DISTINCT visitor_id) FROM events ` + where
		if err := s.db.QueryRowContext(gctx, query, args...).Scan(&tally.TotalEvents, &tally.UniqueVisitors); err != nil {
			return fmt.Errorf("failed to count events: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		query := `SELECT variant, event_type, COUNT(*) FROM events ` + where + ` GROUP BY variant, event_type ORDER BY variant, event_type`
		rows, err := s.db.QueryContext(gctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to tally events: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var c models.TallyCell
			if err := rows.Scan(&c.Variant, &c.EventType, &c.Count); err != nil {
				return fmt.Errorf("failed to scan tally row: %w", err)
			}
			tally.Cells = append(tally.Cells, c)
		}
		return rows.Err()
	})

	g.Go(func() error {
		tlWhere, tlArgs := buildEventWhere(models.EventFilter{ExperimentID: experimentID}, []any{since})
		if tlWhere == "" {
			tlWhere = "WHERE created_at > $1"
		} else {
			tlWhere += " AND created_at > $1"
		}
		query := `
			SELECT date_trunc('hour', created_at) AS hour, variant, event_type, COUNT(*)
			FROM events ` + tlWhere + `
			GROUP BY hour, variant, event_type
			ORDER BY hour, variant, event_type`
		rows, err := s.db.QueryContext(gctx, query, tlArgs...)
		if err != nil {
			return fmt.Errorf("failed to query timeline: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var b models.TimelineBucket
			if err := rows.Scan(&b.Hour, &b.Variant, &b.EventType, &b.Count); err != nil {
				return fmt.Errorf("failed to scan timeline row: %w", err)
			}
			tally.Timeline = append(tally.Timeline, b)
		}
		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tally, nil
}

func (s *EventStore) TopPages(ctx context.Context, experimentID *uuid.UUID, limit int) ([]models.TopPage, error) {
	where, args := buildEventWhere(models.EventFilter{EventType: models.EventPageView, ExperimentID: experimentID}, nil)
	args = append(args, limit)
	query := fmt.Sprintf(`
		SELECT page_url, COUNT(*) AS views
		FROM events
		%s AND page_url IS NOT NULL
		GROUP BY page_url
		ORDER BY views DESC, page_url ASC
		LIMIT $%d
	`, where, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query top pages: %w", err)
	}
	defer rows.Close()

	results := []models.TopPage{}
	for rows.Next() {
		var p models.TopPage
		if err := rows.Scan(&p.PageURL, &p.Views); err != nil {
			return nil, fmt.Errorf("failed to scan top page: %w", err)
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating top pages: %w", err)
	}
	return results, nil
}
