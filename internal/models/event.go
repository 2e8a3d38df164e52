package models

import (
	"time"

	"github.com/google/uuid"
)

// TradeEvent is one entry of a trade's append-only audit trail. Events are
// never updated or deleted; their submission order is the audit surface.
type TradeEvent struct {
	ID          uuid.UUID  `json:"id"`
	TradeID     uuid.UUID  `json:"trade_id"`
	Status      string     `json:"status"`
	ActorID     *uuid.UUID `json:"actor_id,omitempty"`
	ActorType   string     `json:"actor_type"` // user/admin/system
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
}
