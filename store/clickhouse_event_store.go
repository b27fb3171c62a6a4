package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pushnami/api/database"
	"pushnami/api/models"
)

// ClickHouseEventStore is the analytics-oriented alternative to EventStore.
type ClickHouseEventStore struct {
	DB *database.ClickHouseClient
}

func NewClickHouseEventStore(chClient *database.ClickHouseClient) *ClickHouseEventStore {
	return &ClickHouseEventStore{DB: chClient}
}

// InsertEvents sends every event in a single block, which ClickHouse
// applies atomically.
func (s *ClickHouseEventStore) InsertEvents(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO events (
			id, visitor_id, experiment_id, variant, event_type, event_name,
			metadata, page_url, user_agent, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, e := range events {
		metadata, err := json.Marshal(e.Metadata)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("encode metadata of event %s: %w", e.ID, err)
		}
		if err := batch.Append(
			e.ID,
			e.VisitorID,
			e.ExperimentID,
			e.Variant,
			e.EventType,
			e.EventName,
			string(metadata),
			e.PageURL,
			e.UserAgent,
			e.CreatedAt,
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append event %s to batch: %w", e.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

func buildClickHouseWhere(f models.EventFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.EventType != "" {
		clauses = append(clauses, "event_type = ?")
		args = append(args, f.EventType)
	}
	if f.Variant != "" {
		clauses = append(clauses, "variant = ?")
		args = append(args, f.Variant)
	}
	if f.VisitorID != "" {
		clauses = append(clauses, "visitor_id = ?")
		args = append(args, f.VisitorID)
	}
	if f.ExperimentID != nil {
		clauses = append(clauses, "experiment_id = ?")
		args = append(args, *f.ExperimentID)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func (s *ClickHouseEventStore) ListEvents(ctx context.Context, f models.EventFilter) ([]models.Event, error) {
	where, args := buildClickHouseWhere(f)
	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`
		SELECT id, visitor_id, experiment_id, variant, event_type, event_name,
		       metadata, page_url, user_agent, created_at
		FROM events
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, where)

	rows, err := s.DB.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var (
			e        models.Event
			metadata string
		)
		if err := rows.Scan(&e.ID, &e.VisitorID, &e.ExperimentID, &e.Variant, &e.EventType, &e.EventName,
			&metadata, &e.PageURL, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Metadata = map[string]any{}
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
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

func (s *ClickHouseEventStore) TallyEvents(ctx context.Context, experimentID *uuid.UUID, since time.Time) (*models.Tally, error) {
	where, args := buildClickHouseWhere(models.EventFilter{ExperimentID: experimentID})
	tally := &models.Tally{}

	if err := s.DB.Conn.QueryRow(ctx, `SELECT count(), uniqExact(visitor_id) FROM events `+where, args...).
		Scan(&tally.TotalEvents, &tally.UniqueVisitors); err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	rows, err := s.DB.Conn.Query(ctx, `
		SELECT variant, event_type, count()
		FROM events `+where+`
		GROUP BY variant, event_type
		ORDER BY variant, event_type`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to tally events: %w", err)
	}
	for rows.Next() {
		var c models.TallyCell
		if err := rows.Scan(&c.Variant, &c.EventType, &c.Count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan tally row: %w", err)
		}
		tally.Cells = append(tally.Cells, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during tally: %w", err)
	}

	tlWhere := "WHERE created_at > ?"
	if where != "" {
		tlWhere = where + " AND created_at > ?"
	}
	rows, err = s.DB.Conn.Query(ctx, `
		SELECT toStartOfHour(created_at) AS hour, variant, event_type, count()
		FROM events `+tlWhere+`
		GROUP BY hour, variant, event_type
		ORDER BY hour, variant, event_type`, append(args, since)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var b models.TimelineBucket
		if err := rows.Scan(&b.Hour, &b.Variant, &b.EventType, &b.Count); err != nil {
			return nil, fmt.Errorf("failed to scan timeline row: %w", err)
		}
		tally.Timeline = append(tally.Timeline, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during timeline query: %w", err)
	}
	return tally, nil
}

func (s *ClickHouseEventStore) TopPages(ctx context.Context, experimentID *uuid.UUID, limit int) ([]models.TopPage, error) {
	where, args := buildClickHouseWhere(models.EventFilter{EventType: models.EventPageView, ExperimentID: experimentID})
	query := `
		SELECT assumeNotNull(page_url) AS page, count() AS views
		FROM events
		` + where + ` AND page_url IS NOT NULL
		GROUP BY page
		ORDER BY views DESC, page ASC
		LIMIT ?`

	rows, err := s.DB.Conn.Query(ctx, query, append(args, limit)...)
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
		return nil, fmt.Errorf("error iterating rows for top pages: %w", err)
	}
	return results, nil
}
