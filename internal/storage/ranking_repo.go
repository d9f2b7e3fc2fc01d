package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayarullin/finvizor/internal/contracts"
)

// RankingRepository persists composite ranking tables by cycle date
type RankingRepository struct {
	pool *pgxpool.Pool
}

// NewRankingRepository creates a new ranking repository
func NewRankingRepository(pool *pgxpool.Pool) *RankingRepository {
	return &RankingRepository{pool: pool}
}

// Save replaces the composite table stored for a date
func (r *RankingRepository) Save(ctx context.Context, date time.Time, table contracts.RankingTable) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "DELETE FROM advisor.ranking_rows WHERE rank_date = $1", date)
	if err != nil {
		return fmt.Errorf("delete old ranking rows: %w", err)
	}

	query := `
		INSERT INTO advisor.ranking_rows (
			rank_date, ticker, ep_rank, ep_value, roe_rank, roe_value, summary_rank
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, row := range table.Ordered() {
		_, err := tx.Exec(ctx, query,
			date, row.Ticker, row.EPRank, row.EPValue, row.ROERank, row.ROEValue, row.SummaryRank)
		if err != nil {
			return fmt.Errorf("insert ranking row %s: %w", row.Ticker, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ranking rows: %w", err)
	}

	return nil
}

// LoadLatest returns the most recent composite table on or before the
// given date, or an empty table if none exists yet
func (r *RankingRepository) LoadLatest(ctx context.Context, before time.Time) (contracts.RankingTable, error) {
	var latest *time.Time
	err := r.pool.QueryRow(ctx,
		"SELECT MAX(rank_date) FROM advisor.ranking_rows WHERE rank_date <= $1", before,
	).Scan(&latest)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("find latest ranking date: %w", err)
	}
	if latest == nil {
		return contracts.RankingTable{}, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT ticker, ep_rank, ep_value, roe_rank, roe_value, summary_rank
		FROM advisor.ranking_rows
		WHERE rank_date = $1
	`, *latest)
	if err != nil {
		return nil, fmt.Errorf("load ranking rows: %w", err)
	}
	defer rows.Close()

	table := make(contracts.RankingTable)
	for rows.Next() {
		var row contracts.CompositeRow
		if err := rows.Scan(&row.Ticker, &row.EPRank, &row.EPValue, &row.ROERank, &row.ROEValue, &row.SummaryRank); err != nil {
			return nil, fmt.Errorf("scan ranking row: %w", err)
		}
		table[row.Ticker] = row
	}

	return table, rows.Err()
}
