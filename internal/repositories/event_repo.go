package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/p2p-exchange/backend/internal/models"
)

// EventRepo stores the append-only trade lifecycle trail. Rows are never
// updated or deleted.
type EventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

func (r *EventRepo) Append(ctx context.Context, e models.TradeEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO trade_events (trade_id, status, actor_id, actor_type, description)
		VALUES ($1, $2, $3, $4, $5)
	`, e.TradeID, e.Status, e.ActorID, e.ActorType, e.Description)
	return err
}

func (r *EventRepo) ListByTrade(ctx context.Context, tradeID uuid.UUID) ([]models.TradeEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, trade_id, status, actor_id, actor_type, description, created_at
		FROM trade_events WHERE trade_id = $1 ORDER BY seq ASC
	`, tradeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.TradeEvent
	for rows.Next() {
		var e models.TradeEvent
		if err := rows.Scan(&e.ID, &e.TradeID, &e.Status, &e.ActorID, &e.ActorType, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
