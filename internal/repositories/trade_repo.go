package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/p2p-exchange/backend/internal/models"
)

type TradeRepo struct {
	pool *pgxpool.Pool
}

func NewTradeRepo(pool *pgxpool.Pool) *TradeRepo {
	return &TradeRepo{pool: pool}
}

const tradeColumns = `id, seller_id, buyer_id, asset_type, amount, price, currency, payment_method,
       location, terms, payment_window_minutes, status, escrow_status, created_at, updated_at`

func scanTrade(row pgx.Row, t *models.Trade) error {
	return row.Scan(&t.ID, &t.SellerID, &t.BuyerID, &t.AssetType, &t.Amount, &t.Price, &t.Currency,
		&t.PaymentMethod, &t.Location, &t.Terms, &t.PaymentWindowMinutes, &t.Status, &t.EscrowStatus,
		&t.CreatedAt, &t.UpdatedAt)
}

func (r *TradeRepo) Create(ctx context.Context, t *models.Trade) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO trades (seller_id, buyer_id, asset_type, amount, price, currency, payment_method,
		                    location, terms, payment_window_minutes, status, escrow_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`, t.SellerID, t.BuyerID, t.AssetType, t.Amount, t.Price, t.Currency, t.PaymentMethod,
		t.Location, t.Terms, t.PaymentWindowMinutes, t.Status, t.EscrowStatus,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

func (r *TradeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	var t models.Trade
	err := scanTrade(r.pool.QueryRow(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = $1`, id), &t)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type TradeFilter struct {
	SellerID  *uuid.UUID
	BuyerID   *uuid.UUID
	PartyID   *uuid.UUID // either side
	Status    *string
	AssetType *string
	Limit     int
	Offset    int
}

func (r *TradeRepo) List(ctx context.Context, f TradeFilter) ([]models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.SellerID != nil {
		where = append(where, fmt.Sprintf("seller_id = $%d", argIdx))
		args = append(args, *f.SellerID)
		argIdx++
	}
	if f.BuyerID != nil {
		where = append(where, fmt.Sprintf("buyer_id = $%d", argIdx))
		args = append(args, *f.BuyerID)
		argIdx++
	}
	if f.PartyID != nil {
		where = append(where, fmt.Sprintf("(seller_id = $%d OR buyer_id = $%d)", argIdx, argIdx))
		args = append(args, *f.PartyID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}
	if f.AssetType != nil {
		where = append(where, fmt.Sprintf("asset_type = $%d", argIdx))
		args = append(args, *f.AssetType)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		var t models.Trade
		if err := scanTrade(rows, &t); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Join sets the buyer on an open, unclaimed trade and moves it to
// in_progress. The WHERE clause is the compare-and-set guard: a false
// return means another buyer got there first or the trade left open.
func (r *TradeRepo) Join(ctx context.Context, id, buyerID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE trades SET buyer_id = $1, status = $2, updated_at = now()
		WHERE id = $3 AND status = $4 AND buyer_id IS NULL
	`, buyerID, models.TradeStatusInProgress, id, models.TradeStatusOpen)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateStatus performs a compare-and-set status transition. The expected
// current status in the WHERE clause is what makes concurrent mutation of
// the same trade safe: exactly one caller observes rows affected.
func (r *TradeRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE trades SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateStatusEscrow transitions the status/escrow pair atomically with a
// compare-and-set on both current values. Escrow mutation is the one truly
// contended resource: a concurrent admin action and an automated resolution
// can never both release funds for the same trade.
func (r *TradeRepo) UpdateStatusEscrow(ctx context.Context, id uuid.UUID, fromStatus, fromEscrow, toStatus, toEscrow string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE trades SET status = $1, escrow_status = $2, updated_at = now()
		WHERE id = $3 AND status = $4 AND escrow_status = $5
	`, toStatus, toEscrow, id, fromStatus, fromEscrow)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateEscrow performs a compare-and-set on the escrow sub-state alone.
func (r *TradeRepo) UpdateEscrow(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE trades SET escrow_status = $1, updated_at = now()
		WHERE id = $2 AND escrow_status = $3
	`, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
