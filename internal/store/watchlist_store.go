package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Priya8975/watchlist-enricher/internal/domain"
	"github.com/jackc/pgx/v5"
)

// RecentEventsLimit caps the events embedded in a watchlist detail.
const RecentEventsLimit = 50

func (s *PostgresStore) CreateWatchlist(ctx context.Context, name string) (*domain.Watchlist, error) {
	var wl domain.Watchlist
	err := s.pool.QueryRow(ctx, `
		INSERT INTO watchlists (name)
		VALUES ($1)
		RETURNING id, name, created_at, updated_at
	`, name).Scan(&wl.ID, &wl.Name, &wl.CreatedAt, &wl.UpdatedAt)
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("inserting watchlist: %w", err)
	}
	return &wl, nil
}

func (s *PostgresStore) ListWatchlists(ctx context.Context) ([]domain.Watchlist, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, created_at, updated_at
		FROM watchlists
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying watchlists: %w", err)
	}

	return collectWatchlists(rows)
}

// collectWatchlists drains rows, surfacing any error that ended iteration early.
func collectWatchlists(rows pgx.Rows) ([]domain.Watchlist, error) {
	watchlists, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Watchlist, error) {
		var wl domain.Watchlist
		err := row.Scan(&wl.ID, &wl.Name, &wl.CreatedAt, &wl.UpdatedAt)
		return wl, err
	})
	if err != nil {
		return nil, fmt.Errorf("reading watchlists: %w", err)
	}
	if watchlists == nil {
		watchlists = []domain.Watchlist{}
	}
	return watchlists, nil
}

// GetWatchlist returns the watchlist with its most recent events, or nil when
// it does not exist.
func (s *PostgresStore) GetWatchlist(ctx context.Context, id string) (*domain.WatchlistDetail, error) {
	var detail domain.WatchlistDetail
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, created_at, updated_at
		FROM watchlists WHERE id = $1
	`, id).Scan(&detail.ID, &detail.Name, &detail.CreatedAt, &detail.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying watchlist: %w", err)
	}

	events, err := s.ListEventsByWatchlist(ctx, id, RecentEventsLimit)
	if err != nil {
		return nil, err
	}
	detail.Events = events

	return &detail, nil
}

// UpdateWatchlist renames a watchlist. It returns nil when the watchlist does not exist.
func (s *PostgresStore) UpdateWatchlist(ctx context.Context, id, name string) (*domain.Watchlist, error) {
	var wl domain.Watchlist
	err := s.pool.QueryRow(ctx, `
		UPDATE watchlists SET name = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, created_at, updated_at
	`, id, name).Scan(&wl.ID, &wl.Name, &wl.CreatedAt, &wl.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if pgErrorCode(err) == pgUniqueViolation {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("updating watchlist: %w", err)
	}
	return &wl, nil
}

func (s *PostgresStore) DeleteWatchlist(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM watchlists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting watchlist: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
