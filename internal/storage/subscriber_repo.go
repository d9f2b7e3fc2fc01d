package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Subscriber is a chat that receives advisor notifications.
type Subscriber struct {
	ChatID          int64  `json:"chat_id"`
	Name            string `json:"name"`
	Recommendations bool   `json:"recommendations"`
}

// SubscriberRepository manages notification subscribers.
type SubscriberRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriberRepository creates a new subscriber repository
func NewSubscriberRepository(pool *pgxpool.Pool) *SubscriberRepository {
	return &SubscriberRepository{pool: pool}
}

// Subscribe registers a chat, re-enabling recommendations if it was
// previously unsubscribed.
func (r *SubscriberRepository) Subscribe(ctx context.Context, chatID int64, name string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO advisor.subscribers (chat_id, name, recommendations, updated_at)
		VALUES ($1, $2, TRUE, NOW())
		ON CONFLICT (chat_id) DO UPDATE SET
			name = EXCLUDED.name,
			recommendations = TRUE,
			updated_at = NOW()
	`, chatID, name)
	if err != nil {
		return fmt.Errorf("subscribe chat %d: %w", chatID, err)
	}
	return nil
}

// Unsubscribe disables recommendations for a chat
func (r *SubscriberRepository) Unsubscribe(ctx context.Context, chatID int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE advisor.subscribers
		SET recommendations = FALSE, updated_at = NOW()
		WHERE chat_id = $1
	`, chatID)
	if err != nil {
		return fmt.Errorf("unsubscribe chat %d: %w", chatID, err)
	}
	return nil
}

// ListActive returns subscribers with recommendations enabled
func (r *SubscriberRepository) ListActive(ctx context.Context) ([]Subscriber, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT chat_id, name, recommendations
		FROM advisor.subscribers
		WHERE recommendations = TRUE
		ORDER BY chat_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var subs []Subscriber
	for rows.Next() {
		var s Subscriber
		if err := rows.Scan(&s.ChatID, &s.Name, &s.Recommendations); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subs = append(subs, s)
	}

	return subs, rows.Err()
}
