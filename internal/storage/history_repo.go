package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayarullin/finvizor/internal/assets"
)

// HistoryRepository persists daily portfolio valuations, one row per
// calendar day. Recording twice on the same day overwrites the value.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// Record upserts the valuation for the given day
func (r *HistoryRepository) Record(ctx context.Context, date time.Time, value float64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO advisor.valuations (valuation_date, net_worth, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (valuation_date) DO UPDATE SET
			net_worth = EXCLUDED.net_worth,
			updated_at = NOW()
	`, date.Format(assets.DateKey), value)
	if err != nil {
		return fmt.Errorf("upsert valuation: %w", err)
	}
	return nil
}

// Load reads the full valuation history
func (r *HistoryRepository) Load(ctx context.Context) (*assets.ValuationHistory, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT valuation_date, net_worth FROM advisor.valuations")
	if err != nil {
		return nil, fmt.Errorf("load valuations: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]float64)
	for rows.Next() {
		var date time.Time
		var value float64
		if err := rows.Scan(&date, &value); err != nil {
			return nil, fmt.Errorf("scan valuation: %w", err)
		}
		entries[date.Format(assets.DateKey)] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return assets.FromEntries(entries), nil
}
