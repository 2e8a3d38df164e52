package models

import (
	"time"

	"github.com/google/uuid"
)

// Trade statuses
const (
	TradeStatusOpen           = "open"
	TradeStatusInProgress     = "in_progress"
	TradeStatusPaymentPending = "payment_pending"
	TradeStatusCompleted      = "completed"
	TradeStatusCancelled      = "cancelled"
	TradeStatusDisputed       = "disputed"
)

// Escrow statuses
const (
	EscrowStatusPending  = "pending"
	EscrowStatusFunded   = "funded"
	EscrowStatusReleased = "released"
	EscrowStatusRefunded = "refunded"
)

// Valid trade transitions: from -> []to
var ValidTradeTransitions = map[string][]string{
	TradeStatusOpen:           {TradeStatusInProgress, TradeStatusCancelled},
	TradeStatusInProgress:     {TradeStatusPaymentPending, TradeStatusCancelled, TradeStatusDisputed},
	TradeStatusPaymentPending: {TradeStatusCompleted, TradeStatusDisputed},
	TradeStatusDisputed:       {TradeStatusCompleted, TradeStatusCancelled},
	TradeStatusCompleted:      {},
	TradeStatusCancelled:      {},
}

// Valid escrow transitions: from -> []to
var ValidEscrowTransitions = map[string][]string{
	EscrowStatusPending:  {EscrowStatusFunded},
	EscrowStatusFunded:   {EscrowStatusReleased, EscrowStatusRefunded},
	EscrowStatusReleased: {},
	EscrowStatusRefunded: {},
}

func IsValidTradeTransition(from, to string) bool {
	allowed, ok := ValidTradeTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func IsValidEscrowTransition(from, to string) bool {
	allowed, ok := ValidEscrowTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminalTradeStatus reports whether no further status transitions exist.
func IsTerminalTradeStatus(status string) bool {
	return len(ValidTradeTransitions[status]) == 0
}

// IsDisputable reports whether a dispute may be raised from the given status.
func IsDisputable(status string) bool {
	return status == TradeStatusInProgress || status == TradeStatusPaymentPending
}

type Trade struct {
	ID                   uuid.UUID  `json:"id"`
	SellerID             uuid.UUID  `json:"seller_id"`
	BuyerID              *uuid.UUID `json:"buyer_id,omitempty"`
	AssetType            string     `json:"asset_type"` // btc / eth / usdt / ...
	Amount               string     `json:"amount"`     // numeric as string
	Price                string     `json:"price"`      // numeric as string
	Currency             string     `json:"currency"`
	PaymentMethod        string     `json:"payment_method"`
	Location             *string    `json:"location,omitempty"`
	Terms                *string    `json:"terms,omitempty"`
	PaymentWindowMinutes int        `json:"payment_window_minutes"`
	Status               string     `json:"status"`
	EscrowStatus         string     `json:"escrow_status"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// PaymentDeadline is the instant after which an unpaid trade forfeits
// to the seller. Evaluated lazily at resolution time, never by a timer.
func (t *Trade) PaymentDeadline(window time.Duration) time.Time {
	return t.CreatedAt.Add(window)
}
