package store

import (
	"context"
	"fmt"

	"github.com/Priya8975/watchlist-enricher/internal/domain"
	"github.com/jackc/pgx/v5"
)

const eventColumns = `id, watchlist_id, description, ai_summary, ai_severity, ai_action, created_at`

// CreateEvent inserts an already-enriched event in a single statement.
func (s *PostgresStore) CreateEvent(ctx context.Context, ev domain.Event) (*domain.Event, error) {
	var severity *string
	if ev.AISeverity != nil {
		sev := string(*ev.AISeverity)
		severity = &sev
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO events (watchlist_id, description, ai_summary, ai_severity, ai_action)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+eventColumns,
		ev.WatchlistID, ev.Description, ev.AISummary, severity, ev.AIAction,
	)

	created, err := scanEvent(row)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return nil, ErrWatchlistMissing
		}
		return nil, fmt.Errorf("inserting event: %w", err)
	}
	return created, nil
}

// ListEventsByWatchlist returns the watchlist's events, newest first.
// A limit of zero or less returns all of them.
func (s *PostgresStore) ListEventsByWatchlist(ctx context.Context, watchlistID string, limit int) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE watchlist_id = $1 ORDER BY created_at DESC`
	args := []interface{}{watchlistID}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	return events, nil
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var ev domain.Event
	var severity *string
	err := row.Scan(
		&ev.ID, &ev.WatchlistID, &ev.Description,
		&ev.AISummary, &severity, &ev.AIAction, &ev.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if severity != nil {
		sev := domain.Severity(*severity)
		ev.AISeverity = &sev
	}
	return &ev, nil
}
