package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID               uuid.UUID `json:"id"`
	Username         string    `json:"username"`
	ReputationScore  int       `json:"reputation_score"` // 0-100
	TotalTrades      int       `json:"total_trades"`
	SuccessfulTrades int       `json:"successful_trades"`
	IsAdmin          bool      `json:"is_admin"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ReputationSnapshot is a point-in-time read of a user's aggregate counters.
// The counters are owned and mutated by the account subsystem; the dispute
// core only ever reads them. Version (the owner's updated_at) detects reads
// that raced a counter update.
type ReputationSnapshot struct {
	UserID           uuid.UUID `json:"user_id"`
	ReputationScore  int       `json:"reputation_score"`
	TotalTrades      int       `json:"total_trades"`
	SuccessfulTrades int       `json:"successful_trades"`
	Version          time.Time `json:"version"`
}

// SuccessRate is successfulTrades / totalTrades, 0 for users with no trades.
func (s ReputationSnapshot) SuccessRate() float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return float64(s.SuccessfulTrades) / float64(s.TotalTrades)
}
