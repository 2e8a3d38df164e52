// Package resolver implements the automated dispute resolution engine: five
// independent heuristic analyzers and the confidence-weighted aggregator that
// decides whether a dispute can be resolved without human review.
//
// The package is pure: analyzers operate on an already-assembled Case
// snapshot and perform no I/O, so identical snapshots always produce
// identical verdicts. Automated fund movement must be reproducible and
// explainable after the fact.
package resolver

import (
	"time"

	"github.com/google/uuid"
	"github.com/p2p-exchange/backend/internal/models"
)

// Case is an immutable snapshot of everything the analyzers may consult:
// the disputed trade, both parties' reputation counters, the evidence list
// and the message transcript in submission order, and the evaluation
// instant. Now is captured once so every analyzer sees the same clock.
type Case struct {
	Trade    models.Trade
	Dispute  models.Dispute
	Buyer    models.ReputationSnapshot
	Seller   models.ReputationSnapshot
	Evidence []models.Evidence
	Messages []models.DisputeMessage
	Now      time.Time
}

func (c Case) buyerID() uuid.UUID {
	if c.Trade.BuyerID != nil {
		return *c.Trade.BuyerID
	}
	return uuid.Nil
}

func (c Case) sellerID() uuid.UUID {
	return c.Trade.SellerID
}

// effectiveTradeStatus is the trade status the analyzers should judge. Once
// a dispute is raised the trade itself sits in "disputed", so time-window
// heuristics look at the status the trade held when the dispute was raised.
func (c Case) effectiveTradeStatus() string {
	if c.Trade.Status == models.TradeStatusDisputed && c.Dispute.DisputedFrom != "" {
		return c.Dispute.DisputedFrom
	}
	return c.Trade.Status
}

// Config carries every resolver tunable. Thresholds are explicit
// configuration rather than package constants so tests can exercise
// boundary values deterministically.
type Config struct {
	// PaymentWindow is the allowance for the buyer to complete payment
	// before forfeiting the trade.
	PaymentWindow time.Duration

	// AutoResolveThreshold is the minimum aggregate confidence required to
	// commit a resolution without human review. Deliberately high: the
	// action triggers an irreversible fund transfer.
	AutoResolveThreshold float64

	// ReputationGap is the score difference (0-100 scale) above which the
	// reputation analyzer engages.
	ReputationGap int

	// MinTotalTrades is the trade count both parties must have before the
	// trade-history analyzer will judge them. Avoids thin samples.
	MinTotalTrades int

	// SuccessRateGap is the success-rate difference above which the
	// trade-history analyzer engages.
	SuccessRateGap float64

	// EvidenceGap is the evidence count difference above which the
	// evidence-balance analyzer engages.
	EvidenceGap int

	// ResponseLatencyGap is the average response latency difference above
	// which the chat-responsiveness analyzer engages.
	ResponseLatencyGap time.Duration
}

func DefaultConfig() Config {
	return Config{
		PaymentWindow:        2 * time.Hour,
		AutoResolveThreshold: 0.8,
		ReputationGap:        30,
		MinTotalTrades:       5,
		SuccessRateGap:       0.3,
		EvidenceGap:          2,
		ResponseLatencyGap:   time.Hour,
	}
}
