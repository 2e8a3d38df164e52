package resolver

import (
	"strings"
	"testing"
	"time"

	"github.com/p2p-exchange/backend/internal/models"
)

func TestEvaluateExpiredPaymentWindowAlone(t *testing.T) {
	// Trade awaiting payment, created 3 hours ago with a 2 hour window:
	// the payment-window analyzer alone carries the verdict.
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := testCase(now)
	c.Trade.CreatedAt = now.Add(-3 * time.Hour)
	c.Dispute.DisputedFrom = models.TradeStatusPaymentPending

	v := NewAggregator(DefaultConfig()).Evaluate(c)
	if !v.CanAutoResolve {
		t.Fatalf("expected auto-resolve, got %+v", v)
	}
	if v.Resolution != models.ResolutionSellerFavor {
		t.Errorf("resolution = %q, want seller_favor", v.Resolution)
	}
	if v.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9 (single engaged analyzer)", v.Confidence)
	}
	if !strings.Contains(v.Reason, "payment window expired") {
		t.Errorf("reason %q should mention the expired payment window", v.Reason)
	}
}

func TestEvaluateSmallReputationGapIsInsufficient(t *testing.T) {
	now := time.Now()
	c := testCase(now)
	c.Buyer.ReputationScore = 90
	c.Seller.ReputationScore = 85

	v := NewAggregator(DefaultConfig()).Evaluate(c)
	if v.CanAutoResolve {
		t.Fatalf("expected manual review, got %+v", v)
	}
	if !strings.Contains(v.Reason, "insufficient data") {
		t.Errorf("reason = %q, want insufficient data", v.Reason)
	}
}

func TestEvaluateReputationAndHistoryAgree(t *testing.T) {
	// Reputation (0.7) and trade history (0.6) both point at the buyer:
	// signed sum 1.3, capped at 1.0.
	now := time.Now()
	c := testCase(now)
	c.Buyer.ReputationScore = 95
	c.Seller.ReputationScore = 40
	c.Buyer.TotalTrades = 50
	c.Buyer.SuccessfulTrades = 49
	c.Seller.TotalTrades = 10
	c.Seller.SuccessfulTrades = 5

	v := NewAggregator(DefaultConfig()).Evaluate(c)
	if !v.CanAutoResolve {
		t.Fatalf("expected auto-resolve, got %+v", v)
	}
	if v.Resolution != models.ResolutionBuyerFavor {
		t.Errorf("resolution = %q, want buyer_favor", v.Resolution)
	}
	if v.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", v.Confidence)
	}
	if !strings.Contains(v.Reason, "reputation") || !strings.Contains(v.Reason, "trade") {
		t.Errorf("reason %q should name both contributing analyzers", v.Reason)
	}
}

func TestEvaluateEvidenceAloneIsBelowThreshold(t *testing.T) {
	// Evidence balance alone engages at 0.5 confidence, below the 0.8
	// auto-resolve threshold.
	now := time.Now()
	c := testCase(now)
	for i := 0; i < 5; i++ {
		c.Evidence = append(c.Evidence, models.Evidence{UploaderID: testSellerID, Kind: models.EvidenceKindDocument})
	}
	c.Evidence = append(c.Evidence, models.Evidence{UploaderID: testBuyerID, Kind: models.EvidenceKindText})

	v := NewAggregator(DefaultConfig()).Evaluate(c)
	if v.CanAutoResolve {
		t.Fatalf("expected manual review, got %+v", v)
	}
	if v.Confidence != confidenceEvidenceBalance {
		t.Errorf("confidence = %v, want %v", v.Confidence, confidenceEvidenceBalance)
	}
	if !strings.Contains(v.Reason, "below auto-resolve threshold") {
		t.Errorf("reason = %q, want threshold explanation", v.Reason)
	}
}

func TestEvaluatePerfectlyBalancedSignalsNeverGuess(t *testing.T) {
	// Payment window (0.9, seller) exactly cancels evidence (0.5, buyer)
	// plus responsiveness (0.4, buyer).
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := base.Add(12 * time.Hour)
	c := testCase(now)
	c.Trade.CreatedAt = now.Add(-3 * time.Hour)
	c.Dispute.DisputedFrom = models.TradeStatusPaymentPending

	for i := 0; i < 4; i++ {
		c.Evidence = append(c.Evidence, models.Evidence{UploaderID: testBuyerID, Kind: models.EvidenceKindImage})
	}

	c.Messages = []models.DisputeMessage{
		{SenderID: testBuyerID, Body: "m", CreatedAt: base},
		{SenderID: testSellerID, Body: "m", CreatedAt: base.Add(3 * time.Hour)},
		{SenderID: testBuyerID, Body: "m", CreatedAt: base.Add(3*time.Hour + time.Minute)},
		{SenderID: testSellerID, Body: "m", CreatedAt: base.Add(6 * time.Hour)},
	}

	v := NewAggregator(DefaultConfig()).Evaluate(c)
	if v.CanAutoResolve {
		t.Fatalf("perfectly balanced signals must not auto-resolve, got %+v", v)
	}
	if v.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", v.Confidence)
	}
	if !strings.Contains(v.Reason, "balanced") {
		t.Errorf("reason = %q, want balanced explanation", v.Reason)
	}
}

func TestCombineNoEngagedSignals(t *testing.T) {
	a := NewAggregator(DefaultConfig())
	v := a.combine([]Signal{abstain("payment_window"), abstain("reputation")})
	if v.CanAutoResolve {
		t.Fatalf("expected manual review, got %+v", v)
	}
	if !strings.Contains(v.Reason, "insufficient data") {
		t.Errorf("reason = %q, want insufficient data", v.Reason)
	}
}

func TestCombineMonotonicity(t *testing.T) {
	// Raising a buyer-directed signal's confidence while everything else is
	// fixed must never flip the verdict toward the seller.
	a := NewAggregator(DefaultConfig())
	opposing := Signal{Analyzer: "reputation", Confidence: 0.7, Favor: models.ResolutionSellerFavor, Reason: "r"}

	prevBuyerward := -1.0
	for conf := 0.05; conf <= 1.0; conf += 0.05 {
		varying := Signal{Analyzer: "trade_history", Confidence: conf, Favor: models.ResolutionBuyerFavor, Reason: "r"}
		v := a.combine([]Signal{opposing, varying})

		if v.CanAutoResolve && v.Resolution == models.ResolutionBuyerFavor && conf < opposing.Confidence {
			t.Errorf("conf %.2f: buyer verdict while outweighed by seller signal", conf)
		}

		// The signed buyer-ward pull must grow with the buyer confidence.
		buyerward := v.Confidence
		if v.CanAutoResolve && v.Resolution == models.ResolutionSellerFavor || !v.CanAutoResolve && conf < opposing.Confidence {
			buyerward = -v.Confidence
		}
		if buyerward < prevBuyerward {
			t.Errorf("conf %.2f: buyer-ward pull decreased (%v -> %v)", conf, prevBuyerward, buyerward)
		}
		prevBuyerward = buyerward
	}
}

func TestCombineThresholdBoundary(t *testing.T) {
	a := NewAggregator(DefaultConfig())

	tests := []struct {
		name    string
		signals []Signal
		want    bool
	}{
		{
			"single strong signal resolves",
			[]Signal{{Analyzer: "payment_window", Confidence: 0.9, Favor: models.ResolutionSellerFavor, Reason: "r"}},
			true,
		},
		{
			"agreeing signals resolve",
			[]Signal{
				{Analyzer: "reputation", Confidence: 0.7, Favor: models.ResolutionBuyerFavor, Reason: "r"},
				{Analyzer: "evidence_balance", Confidence: 0.5, Favor: models.ResolutionBuyerFavor, Reason: "r"},
			},
			true,
		},
		{
			"split signals stay manual",
			[]Signal{
				{Analyzer: "payment_window", Confidence: 0.9, Favor: models.ResolutionSellerFavor, Reason: "r"},
				{Analyzer: "reputation", Confidence: 0.7, Favor: models.ResolutionBuyerFavor, Reason: "r"},
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := a.combine(tt.signals)
			if v.CanAutoResolve != tt.want {
				t.Errorf("CanAutoResolve = %v, want %v (verdict %+v)", v.CanAutoResolve, tt.want, v)
			}
		})
	}
}

func TestEvaluateIsReproducible(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := testCase(now)
	c.Trade.CreatedAt = now.Add(-3 * time.Hour)
	c.Dispute.DisputedFrom = models.TradeStatusPaymentPending
	c.Buyer.ReputationScore = 10
	c.Seller.ReputationScore = 90

	a := NewAggregator(DefaultConfig())
	first := a.Evaluate(c)
	for i := 0; i < 10; i++ {
		v := a.Evaluate(c)
		if v.CanAutoResolve != first.CanAutoResolve || v.Resolution != first.Resolution ||
			v.Confidence != first.Confidence || v.Reason != first.Reason {
			t.Fatalf("evaluation not reproducible: %+v vs %+v", first, v)
		}
	}
}
