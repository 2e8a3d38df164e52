package resolver

import (
	"fmt"
	"strings"

	"github.com/p2p-exchange/backend/internal/models"
)

// Verdict is the aggregate outcome of one evaluation. When CanAutoResolve
// is false the dispute routes to manual review; that is a defined outcome,
// not an error. Reason always explains the verdict in human-readable form:
// automated fund movement must be auditable by both parties.
type Verdict struct {
	CanAutoResolve bool     `json:"can_auto_resolve"`
	Resolution     string   `json:"resolution,omitempty"`
	Confidence     float64  `json:"confidence"`
	Reason         string   `json:"reason"`
	Signals        []Signal `json:"signals"`
}

// Aggregator combines analyzer signals into a single confidence-weighted
// verdict. Deterministic rule weighting by design: no learning, no
// randomness, so any past decision can be replayed from its snapshot.
type Aggregator struct {
	cfg Config
}

func NewAggregator(cfg Config) *Aggregator {
	return &Aggregator{cfg: cfg}
}

func (a *Aggregator) Config() Config {
	return a.cfg
}

// Evaluate runs all analyzers over the case and aggregates the engaged
// ones. Each engaged signal contributes its confidence as a signed vote:
// positive toward the buyer, negative toward the seller. The magnitude of
// the sum, capped at 1, is the aggregate confidence; below the threshold,
// or when the votes cancel exactly, the dispute requires human review. A
// single weak analyzer can therefore never clear the threshold on its own,
// while agreeing analyzers reinforce each other.
func (a *Aggregator) Evaluate(c Case) Verdict {
	all := make([]Signal, 0, 5)
	for _, analyze := range analyzers() {
		all = append(all, analyze(c, a.cfg))
	}
	return a.combine(all)
}

// combine folds a fixed set of signals into a verdict. Split off from
// Evaluate so the weighting math is testable against synthetic signals.
func (a *Aggregator) combine(all []Signal) Verdict {
	engaged := make([]Signal, 0, len(all))
	for _, sig := range all {
		if sig.Engaged() {
			engaged = append(engaged, sig)
		}
	}

	if len(engaged) == 0 {
		return Verdict{
			CanAutoResolve: false,
			Reason:         "insufficient data: no analyzer engaged",
			Signals:        all,
		}
	}

	var weighted float64
	for _, sig := range engaged {
		if sig.Favor == models.ResolutionBuyerFavor {
			weighted += sig.Confidence
		} else {
			weighted -= sig.Confidence
		}
	}

	confidence := weighted
	if confidence < 0 {
		confidence = -confidence
	}
	if confidence > 1 {
		confidence = 1
	}

	if weighted == 0 {
		return Verdict{
			CanAutoResolve: false,
			Confidence:     0,
			Reason:         "signals perfectly balanced, manual review required",
			Signals:        all,
		}
	}

	if confidence < a.cfg.AutoResolveThreshold {
		return Verdict{
			CanAutoResolve: false,
			Confidence:     confidence,
			Reason:         fmt.Sprintf("aggregate confidence %.2f below auto-resolve threshold %.2f", confidence, a.cfg.AutoResolveThreshold),
			Signals:        all,
		}
	}

	resolution := models.ResolutionSellerFavor
	if weighted > 0 {
		resolution = models.ResolutionBuyerFavor
	}

	reasons := make([]string, 0, len(engaged))
	for _, sig := range engaged {
		reasons = append(reasons, fmt.Sprintf("%s: %s", sig.Analyzer, sig.Reason))
	}

	return Verdict{
		CanAutoResolve: true,
		Resolution:     resolution,
		Confidence:     confidence,
		Reason:         strings.Join(reasons, "; "),
		Signals:        all,
	}
}
