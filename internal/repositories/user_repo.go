package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/p2p-exchange/backend/internal/models"
)

// UserRepo reads user records owned by the account subsystem. Reputation
// counters are never written here; the dispute core consumes snapshots only.
type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, username, reputation_score, total_trades, successful_trades, is_admin, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Username, &u.ReputationScore, &u.TotalTrades, &u.SuccessfulTrades, &u.IsAdmin,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetReputationSnapshot is the account-subsystem read the resolver consumes.
// The row's updated_at becomes the snapshot version used for staleness
// detection.
func (r *UserRepo) GetReputationSnapshot(ctx context.Context, userID uuid.UUID) (models.ReputationSnapshot, error) {
	var s models.ReputationSnapshot
	err := r.pool.QueryRow(ctx, `
		SELECT id, reputation_score, total_trades, successful_trades, updated_at
		FROM users WHERE id = $1
	`, userID).Scan(&s.UserID, &s.ReputationScore, &s.TotalTrades, &s.SuccessfulTrades, &s.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ReputationSnapshot{}, models.ErrNotFound
	}
	return s, err
}
