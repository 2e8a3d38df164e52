package resolver

import (
	"fmt"
	"time"

	"github.com/p2p-exchange/backend/internal/models"
)

// Signal is one analyzer's directional opinion. Confidence 0 means the
// analyzer abstains; missing data is always absorbed as abstention, never
// an error, so one starved analyzer cannot halt the others.
type Signal struct {
	Analyzer   string  `json:"analyzer"`
	Confidence float64 `json:"confidence"`
	Favor      string  `json:"favor,omitempty"` // buyer_favor / seller_favor
	Reason     string  `json:"reason,omitempty"`
}

func (s Signal) Engaged() bool {
	return s.Confidence > 0
}

func abstain(analyzer string) Signal {
	return Signal{Analyzer: analyzer}
}

// Per-analyzer confidence weights. Ordered by how directly each heuristic
// speaks to fault: an expired payment window is near-conclusive, while a
// larger evidence pile is a weak tie-breaker.
const (
	confidencePaymentWindow   = 0.9
	confidenceReputation      = 0.7
	confidenceTradeHistory    = 0.6
	confidenceEvidenceBalance = 0.5
	confidenceResponsiveness  = 0.4
)

// An Analyzer inspects one facet of a dispute case. Analyzers are pure and
// deterministic over the snapshot.
type Analyzer func(Case, Config) Signal

func analyzers() []Analyzer {
	return []Analyzer{
		analyzePaymentWindow,
		analyzeReputation,
		analyzeTradeHistory,
		analyzeEvidenceBalance,
		analyzeChatResponsiveness,
	}
}

// analyzePaymentWindow favors the seller when the buyer let the payment
// window lapse without completing payment.
func analyzePaymentWindow(c Case, cfg Config) Signal {
	const name = "payment_window"

	if c.effectiveTradeStatus() != models.TradeStatusPaymentPending {
		return abstain(name)
	}
	deadline := c.Trade.PaymentDeadline(cfg.PaymentWindow)
	if !c.Now.After(deadline) {
		return abstain(name)
	}
	return Signal{
		Analyzer:   name,
		Confidence: confidencePaymentWindow,
		Favor:      models.ResolutionSellerFavor,
		Reason:     fmt.Sprintf("payment window expired %s before evaluation", c.Now.Sub(deadline).Round(time.Minute)),
	}
}

// analyzeReputation favors the party with a substantially higher
// reputation score.
func analyzeReputation(c Case, cfg Config) Signal {
	const name = "reputation"

	gap := c.Buyer.ReputationScore - c.Seller.ReputationScore
	if gap < 0 {
		gap = -gap
	}
	if gap <= cfg.ReputationGap {
		return abstain(name)
	}

	favor := models.ResolutionBuyerFavor
	high, low := c.Buyer.ReputationScore, c.Seller.ReputationScore
	if c.Seller.ReputationScore > c.Buyer.ReputationScore {
		favor = models.ResolutionSellerFavor
		high, low = low, high
	}
	return Signal{
		Analyzer:   name,
		Confidence: confidenceReputation,
		Favor:      favor,
		Reason:     fmt.Sprintf("reputation gap %d points (%d vs %d)", gap, high, low),
	}
}

// analyzeTradeHistory favors the party with a substantially better success
// rate, but only once both parties have enough trades to judge.
func analyzeTradeHistory(c Case, cfg Config) Signal {
	const name = "trade_history"

	if c.Buyer.TotalTrades < cfg.MinTotalTrades || c.Seller.TotalTrades < cfg.MinTotalTrades {
		return abstain(name)
	}

	buyerRate := c.Buyer.SuccessRate()
	sellerRate := c.Seller.SuccessRate()
	gap := buyerRate - sellerRate
	if gap < 0 {
		gap = -gap
	}
	if gap <= cfg.SuccessRateGap {
		return abstain(name)
	}

	favor := models.ResolutionBuyerFavor
	if sellerRate > buyerRate {
		favor = models.ResolutionSellerFavor
	}
	return Signal{
		Analyzer:   name,
		Confidence: confidenceTradeHistory,
		Favor:      favor,
		Reason:     fmt.Sprintf("trade success rate gap %.2f (buyer %.2f vs seller %.2f)", gap, buyerRate, sellerRate),
	}
}

// analyzeEvidenceBalance favors the party that submitted markedly more
// evidence. Intentionally weak: more evidence is not a stronger case, so
// this signal is a tie-breaker, never primary.
func analyzeEvidenceBalance(c Case, cfg Config) Signal {
	const name = "evidence_balance"

	var buyerCount, sellerCount int
	for _, e := range c.Evidence {
		switch e.UploaderID {
		case c.buyerID():
			buyerCount++
		case c.sellerID():
			sellerCount++
		}
	}

	gap := buyerCount - sellerCount
	if gap < 0 {
		gap = -gap
	}
	if gap <= cfg.EvidenceGap {
		return abstain(name)
	}

	favor := models.ResolutionBuyerFavor
	if sellerCount > buyerCount {
		favor = models.ResolutionSellerFavor
	}
	return Signal{
		Analyzer:   name,
		Confidence: confidenceEvidenceBalance,
		Favor:      favor,
		Reason:     fmt.Sprintf("evidence count gap %d (buyer %d vs seller %d)", gap, buyerCount, sellerCount),
	}
}

// analyzeChatResponsiveness favors the party that responded faster in the
// dispute transcript. Each gap between consecutive messages is attributed
// to the sender of the later message as their response latency.
func analyzeChatResponsiveness(c Case, cfg Config) Signal {
	const name = "chat_responsiveness"

	var (
		buyerTotal, sellerTotal time.Duration
		buyerN, sellerN         int
	)
	for i := 1; i < len(c.Messages); i++ {
		gap := c.Messages[i].CreatedAt.Sub(c.Messages[i-1].CreatedAt)
		switch c.Messages[i].SenderID {
		case c.buyerID():
			buyerTotal += gap
			buyerN++
		case c.sellerID():
			sellerTotal += gap
			sellerN++
		}
	}
	if buyerN == 0 || sellerN == 0 {
		return abstain(name)
	}

	buyerAvg := buyerTotal / time.Duration(buyerN)
	sellerAvg := sellerTotal / time.Duration(sellerN)
	gap := buyerAvg - sellerAvg
	if gap < 0 {
		gap = -gap
	}
	if gap <= cfg.ResponseLatencyGap {
		return abstain(name)
	}

	// Lower average latency means the faster responder.
	favor := models.ResolutionBuyerFavor
	if sellerAvg < buyerAvg {
		favor = models.ResolutionSellerFavor
	}
	return Signal{
		Analyzer:   name,
		Confidence: confidenceResponsiveness,
		Favor:      favor,
		Reason:     fmt.Sprintf("response latency gap %s (buyer avg %s vs seller avg %s)", gap.Round(time.Minute), buyerAvg.Round(time.Minute), sellerAvg.Round(time.Minute)),
	}
}
