package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayarullin/finvizor/internal/assets"
)

// LedgerRepository persists the portfolio ledger: one funds row plus
// every lot. Save is transactional so a failed cycle never leaves a
// half-written ledger behind.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Save writes the full ledger state in one transaction
func (r *LedgerRepository) Save(ctx context.Context, state assets.State) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO advisor.ledger (id, initial_funds, free_funds, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET
			initial_funds = EXCLUDED.initial_funds,
			free_funds = EXCLUDED.free_funds,
			updated_at = NOW()
	`, state.InitialFunds, state.FreeFunds)
	if err != nil {
		return fmt.Errorf("upsert ledger funds: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM advisor.lots"); err != nil {
		return fmt.Errorf("delete old lots: %w", err)
	}

	query := `
		INSERT INTO advisor.lots (
			position, ticker, number, open_price, open_date,
			close_price, close_date, closed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for i, lot := range state.Lots {
		var closePrice interface{}
		var closeDate interface{}
		if lot.Closed {
			closePrice = lot.ClosePrice
			closeDate = lot.CloseDate
		}

		_, err := tx.Exec(ctx, query,
			i, lot.Ticker, lot.Number, lot.OpenPrice, lot.OpenDate,
			closePrice, closeDate, lot.Closed)
		if err != nil {
			return fmt.Errorf("insert lot %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ledger: %w", err)
	}

	return nil
}

// Load reads the persisted ledger state. ok is false when no ledger
// has been saved yet (first run).
func (r *LedgerRepository) Load(ctx context.Context) (state assets.State, ok bool, err error) {
	err = r.pool.QueryRow(ctx,
		"SELECT initial_funds, free_funds FROM advisor.ledger WHERE id = 1",
	).Scan(&state.InitialFunds, &state.FreeFunds)
	if errors.Is(err, pgx.ErrNoRows) {
		return assets.State{}, false, nil
	}
	if err != nil {
		return assets.State{}, false, fmt.Errorf("load ledger funds: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT ticker, number, open_price, open_date, close_price, close_date, closed
		FROM advisor.lots
		ORDER BY position
	`)
	if err != nil {
		return assets.State{}, false, fmt.Errorf("load lots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lot assets.SharesLot
		var closePrice *float64
		var closeDate *time.Time
		if err := rows.Scan(&lot.Ticker, &lot.Number, &lot.OpenPrice, &lot.OpenDate,
			&closePrice, &closeDate, &lot.Closed); err != nil {
			return assets.State{}, false, fmt.Errorf("scan lot: %w", err)
		}
		if closePrice != nil {
			lot.ClosePrice = *closePrice
		}
		if closeDate != nil {
			lot.CloseDate = *closeDate
		}
		state.Lots = append(state.Lots, lot)
	}

	return state, true, rows.Err()
}
