package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SelectionRepository persists the tickers picked on each cycle so the
// next run can compare against them for change detection.
type SelectionRepository struct {
	pool *pgxpool.Pool
}

// NewSelectionRepository creates a new selection repository
func NewSelectionRepository(pool *pgxpool.Pool) *SelectionRepository {
	return &SelectionRepository{pool: pool}
}

// Save replaces the selection for the given day
func (r *SelectionRepository) Save(ctx context.Context, date time.Time, tickers []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"DELETE FROM advisor.selections WHERE selection_date = $1", date)
	if err != nil {
		return fmt.Errorf("delete old selection: %w", err)
	}

	for i, ticker := range tickers {
		_, err := tx.Exec(ctx, `
			INSERT INTO advisor.selections (selection_date, position, ticker)
			VALUES ($1, $2, $3)
		`, date, i, ticker)
		if err != nil {
			return fmt.Errorf("insert selection %s: %w", ticker, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit selection: %w", err)
	}

	return nil
}

// LoadLatest returns the most recent selection strictly before the
// given date, in stored order. Empty slice when none exists.
func (r *SelectionRepository) LoadLatest(ctx context.Context, before time.Time) ([]string, error) {
	var latest *time.Time
	err := r.pool.QueryRow(ctx,
		"SELECT MAX(selection_date) FROM advisor.selections WHERE selection_date < $1",
		before,
	).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("find latest selection date: %w", err)
	}
	if latest == nil {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT ticker FROM advisor.selections
		WHERE selection_date = $1
		ORDER BY position
	`, *latest)
	if err != nil {
		return nil, fmt.Errorf("load selection: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		tickers = append(tickers, ticker)
	}

	return tickers, rows.Err()
}
