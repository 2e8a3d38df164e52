package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/p2p-exchange/backend/internal/events"
	"github.com/p2p-exchange/backend/internal/models"
	"github.com/p2p-exchange/backend/internal/resolver"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DisputeStore is the persistence surface for dispute cases and their
// ordered evidence, transcript, and admin notes.
type DisputeStore interface {
	Create(ctx context.Context, d *models.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetOpenByTradeID(ctx context.Context, tradeID uuid.UUID) (*models.Dispute, error)
	ListByStatus(ctx context.Context, status *string, limit, offset int) ([]models.Dispute, error)
	ListActive(ctx context.Context, limit int) ([]models.Dispute, error)
	ListResolvedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Dispute, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	MarkResolved(ctx context.Context, id uuid.UUID, from, resolution, reason string, auto bool) (bool, error)
	MarkAppealed(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	AddEvidence(ctx context.Context, e *models.Evidence) error
	ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]models.Evidence, error)
	AddMessage(ctx context.Context, m *models.DisputeMessage) error
	ListMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error)
	AddNote(ctx context.Context, n *models.DisputeNote) error
	ListNotes(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeNote, error)
}

// ReputationProvider is the read-only view into the account subsystem's
// per-user aggregate counters.
type ReputationProvider interface {
	GetReputationSnapshot(ctx context.Context, userID uuid.UUID) (models.ReputationSnapshot, error)
}

// DisputeService orchestrates the dispute lifecycle: raising a case,
// running the resolution engine, committing automated verdicts through the
// trade state machine, and the manual adjudication surface.
type DisputeService struct {
	disputes     DisputeStore
	tradeSvc     *TradeService
	users        ReputationProvider
	agg          *resolver.Aggregator
	publisher    events.Publisher
	log          *zap.Logger
	appealWindow time.Duration

	// flight serializes evaluation per dispute ID: an evidence-triggered
	// re-evaluation and a concurrent resolve collapse into one run.
	flight singleflight.Group
}

func NewDisputeService(
	disputes DisputeStore,
	tradeSvc *TradeService,
	users ReputationProvider,
	agg *resolver.Aggregator,
	publisher events.Publisher,
	appealWindow time.Duration,
	log *zap.Logger,
) *DisputeService {
	return &DisputeService{
		disputes:     disputes,
		tradeSvc:     tradeSvc,
		users:        users,
		agg:          agg,
		publisher:    publisher,
		appealWindow: appealWindow,
		log:          log,
	}
}

// Raise opens a dispute on an in-progress or payment-pending trade,
// transitions the trade into the dispute branch, and immediately runs an
// automated evaluation.
func (s *DisputeService) Raise(ctx context.Context, tradeID, initiatorID uuid.UUID, reason string) (*models.Dispute, error) {
	if reason == "" {
		return nil, fmt.Errorf("dispute reason is required")
	}

	trade, err := s.tradeSvc.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !models.IsDisputable(trade.Status) {
		return nil, models.NewInvalidTransition("trade", trade.Status, models.TradeStatusDisputed)
	}
	if trade.BuyerID == nil {
		return nil, models.NewInvalidTransition("trade", trade.Status, models.TradeStatusDisputed)
	}

	var respondentID uuid.UUID
	switch initiatorID {
	case trade.SellerID:
		respondentID = *trade.BuyerID
	case *trade.BuyerID:
		respondentID = trade.SellerID
	default:
		return nil, fmt.Errorf("user %s is not a party to trade %s", initiatorID, tradeID)
	}

	if _, err := s.disputes.GetOpenByTradeID(ctx, tradeID); err == nil {
		return nil, models.ErrDuplicateDispute
	} else if err != models.ErrNotFound {
		return nil, err
	}

	d := &models.Dispute{
		TradeID:      tradeID,
		InitiatorID:  initiatorID,
		RespondentID: respondentID,
		Reason:       reason,
		DisputedFrom: trade.Status,
		Status:       models.DisputeStatusOpen,
		Resolution:   models.ResolutionPending,
	}
	if err := s.disputes.Create(ctx, d); err != nil {
		return nil, err
	}

	if err := s.tradeSvc.MarkDisputed(ctx, tradeID, initiatorID, trade.Status); err != nil {
		// The trade moved under us before it could enter the dispute
		// branch; withdraw the freshly created case.
		if _, closeErr := s.disputes.UpdateStatus(ctx, d.ID, models.DisputeStatusOpen, models.DisputeStatusClosed); closeErr != nil {
			s.log.Error("failed to withdraw orphan dispute",
				zap.String("dispute_id", d.ID.String()), zap.Error(closeErr))
		}
		return nil, err
	}

	_ = s.publisher.Publish(ctx, events.StreamDispute, events.Event{
		Type: events.EventDisputeRaised,
		Payload: map[string]any{
			"dispute_id": d.ID.String(),
			"trade_id":   tradeID.String(),
			"initiator":  initiatorID.String(),
		},
	})

	resolved, err := s.Resolve(ctx, d.ID)
	if err != nil {
		// The dispute exists and is queued for review; evaluation failure
		// must not fail the raise.
		s.log.Error("initial dispute evaluation failed",
			zap.String("dispute_id", d.ID.String()), zap.Error(err))
		return d, nil
	}
	return resolved, nil
}

// Evaluate is a side-effect-free preview of what the resolution engine
// would decide right now. Used by "explain this" tooling and the admin UI.
func (s *DisputeService) Evaluate(ctx context.Context, disputeID uuid.UUID) (resolver.Verdict, error) {
	d, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return resolver.Verdict{}, err
	}
	c, err := s.assembleCase(ctx, d)
	if err != nil {
		return resolver.Verdict{}, err
	}
	return s.agg.Evaluate(c), nil
}

// Resolve runs the engine and commits its verdict, or escalates the case
// to human review. Evaluations for the same dispute ID are single-flight;
// re-resolving an already-resolved dispute returns the stored state without
// touching the escrow again.
func (s *DisputeService) Resolve(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	v, err, _ := s.flight.Do(disputeID.String(), func() (any, error) {
		return s.resolve(ctx, disputeID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Dispute), nil
}

func (s *DisputeService) resolve(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	d, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	switch d.Status {
	case models.DisputeStatusResolved, models.DisputeStatusClosed, models.DisputeStatusAppealed:
		// Terminal for automation; appealed cases are manual-only.
		return d, nil
	}

	c, err := s.assembleCase(ctx, d)
	if err != nil {
		return nil, err
	}
	verdict := s.agg.Evaluate(c)

	// A counter update racing the evaluation would make the verdict
	// unreproducible; re-fetch once, then give up to manual review.
	fresh, stale, err := s.checkSnapshots(ctx, c)
	if err != nil {
		return nil, err
	}
	if stale {
		c.Buyer, c.Seller = fresh[0], fresh[1]
		verdict = s.agg.Evaluate(c)
		if _, stale, err = s.checkSnapshots(ctx, c); err != nil {
			return nil, err
		}
		if stale {
			s.log.Warn("reputation snapshots unstable, escalating",
				zap.String("dispute_id", d.ID.String()), zap.Error(models.ErrStaleSnapshot))
			return s.escalate(ctx, d, "reputation data changed during evaluation")
		}
	}

	if !verdict.CanAutoResolve {
		return s.escalate(ctx, d, verdict.Reason)
	}

	// Commit order matters: the fund movement goes first so that a failure
	// leaves the dispute unresolved and the retry safe. The trade-side
	// compare-and-set is the idempotency boundary.
	if _, err := s.tradeSvc.ApplyResolution(ctx, d.TradeID, verdict.Resolution, nil, "system"); err != nil {
		if _, escErr := s.escalate(ctx, d, "automated fund transfer failed"); escErr != nil {
			s.log.Error("failed to escalate after fund transfer failure",
				zap.String("dispute_id", d.ID.String()), zap.Error(escErr))
		}
		return nil, fmt.Errorf("apply resolution: %w", err)
	}

	ok, err := s.disputes.MarkResolved(ctx, d.ID, d.Status, verdict.Resolution, verdict.Reason, true)
	if err != nil {
		return nil, err
	}
	if ok {
		_ = s.publisher.Publish(ctx, events.StreamDispute, events.Event{
			Type: events.EventDisputeResolved,
			Payload: map[string]any{
				"dispute_id": d.ID.String(),
				"trade_id":   d.TradeID.String(),
				"resolution": verdict.Resolution,
				"confidence": verdict.Confidence,
				"reason":     verdict.Reason,
				"auto":       true,
			},
		})
	}

	return s.disputes.GetByID(ctx, d.ID)
}

// escalate queues an open dispute for human adjudication.
func (s *DisputeService) escalate(ctx context.Context, d *models.Dispute, reason string) (*models.Dispute, error) {
	if d.Status == models.DisputeStatusOpen {
		ok, err := s.disputes.UpdateStatus(ctx, d.ID, models.DisputeStatusOpen, models.DisputeStatusUnderReview)
		if err != nil {
			return nil, err
		}
		if ok {
			d.Status = models.DisputeStatusUnderReview
			_ = s.publisher.Publish(ctx, events.StreamDispute, events.Event{
				Type: events.EventDisputeEscalated,
				Payload: map[string]any{
					"dispute_id": d.ID.String(),
					"trade_id":   d.TradeID.String(),
					"reason":     reason,
				},
			})
		}
	}
	return d, nil
}

func (s *DisputeService) assembleCase(ctx context.Context, d *models.Dispute) (resolver.Case, error) {
	trade, err := s.tradeSvc.GetTrade(ctx, d.TradeID)
	if err != nil {
		return resolver.Case{}, err
	}
	if trade.BuyerID == nil {
		return resolver.Case{}, fmt.Errorf("trade %s has no buyer", trade.ID)
	}

	buyer, err := s.users.GetReputationSnapshot(ctx, *trade.BuyerID)
	if err != nil {
		return resolver.Case{}, fmt.Errorf("buyer snapshot: %w", err)
	}
	seller, err := s.users.GetReputationSnapshot(ctx, trade.SellerID)
	if err != nil {
		return resolver.Case{}, fmt.Errorf("seller snapshot: %w", err)
	}

	evidence, err := s.disputes.ListEvidence(ctx, d.ID)
	if err != nil {
		return resolver.Case{}, err
	}
	messages, err := s.disputes.ListMessages(ctx, d.ID)
	if err != nil {
		return resolver.Case{}, err
	}

	return resolver.Case{
		Trade:    *trade,
		Dispute:  *d,
		Buyer:    buyer,
		Seller:   seller,
		Evidence: evidence,
		Messages: messages,
		Now:      time.Now(),
	}, nil
}

// checkSnapshots re-reads both parties' reputation snapshots and reports
// whether either moved since the case was assembled.
func (s *DisputeService) checkSnapshots(ctx context.Context, c resolver.Case) ([2]models.ReputationSnapshot, bool, error) {
	buyer, err := s.users.GetReputationSnapshot(ctx, c.Buyer.UserID)
	if err != nil {
		return [2]models.ReputationSnapshot{}, false, err
	}
	seller, err := s.users.GetReputationSnapshot(ctx, c.Seller.UserID)
	if err != nil {
		return [2]models.ReputationSnapshot{}, false, err
	}
	stale := !buyer.Version.Equal(c.Buyer.Version) || !seller.Version.Equal(c.Seller.Version)
	return [2]models.ReputationSnapshot{buyer, seller}, stale, nil
}

// AddEvidence appends an evidence item and triggers a re-evaluation.
func (s *DisputeService) AddEvidence(ctx context.Context, disputeID, uploaderID uuid.UUID, kind, description string, contentURL *string) (*models.Evidence, error) {
	if !models.IsValidEvidenceKind(kind) {
		return nil, fmt.Errorf("invalid evidence kind %q", kind)
	}

	d, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if err := requireParty(d, uploaderID); err != nil {
		return nil, err
	}
	if d.Status != models.DisputeStatusOpen && d.Status != models.DisputeStatusUnderReview {
		return nil, models.NewInvalidTransition("dispute", d.Status, d.Status)
	}

	e := &models.Evidence{
		DisputeID:   disputeID,
		UploaderID:  uploaderID,
		Kind:        kind,
		Description: description,
		ContentURL:  contentURL,
	}
	if err := s.disputes.AddEvidence(ctx, e); err != nil {
		return nil, err
	}

	if _, err := s.Resolve(ctx, disputeID); err != nil {
		s.log.Error("re-evaluation after evidence failed",
			zap.String("dispute_id", disputeID.String()), zap.Error(err))
	}
	return e, nil
}

// AddMessage appends to the dispute transcript and triggers a
// re-evaluation.
func (s *DisputeService) AddMessage(ctx context.Context, disputeID, senderID uuid.UUID, body string) (*models.DisputeMessage, error) {
	if body == "" {
		return nil, fmt.Errorf("message body is required")
	}

	d, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if err := requireParty(d, senderID); err != nil {
		return nil, err
	}
	if d.Status != models.DisputeStatusOpen && d.Status != models.DisputeStatusUnderReview {
		return nil, models.NewInvalidTransition("dispute", d.Status, d.Status)
	}

	m := &models.DisputeMessage{
		DisputeID: disputeID,
		SenderID:  senderID,
		Body:      body,
	}
	if err := s.disputes.AddMessage(ctx, m); err != nil {
		return nil, err
	}

	_ = s.publisher.Publish(ctx, events.StreamDispute, events.Event{
		Type: events.EventDisputeMessage,
		Payload: map[string]any{
			"dispute_id": disputeID.String(),
			"sender_id":  senderID.String(),
		},
	})

	if _, err := s.Resolve(ctx, disputeID); err != nil {
		s.log.Error("re-evaluation after message failed",
			zap.String("dispute_id", disputeID.String()), zap.Error(err))
	}
	return m, nil
}

// AcceptResolution closes a resolved dispute on a party's acceptance.
func (s *DisputeService) AcceptResolution(ctx context.Context, disputeID, userID uuid.UUID) (*models.Dispute, error) {
	d, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if err := requireParty(d, userID); err != nil {
		return nil, err
	}

	ok, err := s.disputes.UpdateStatus(ctx, disputeID, models.DisputeStatusResolved, models.DisputeStatusClosed)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewInvalidTransition("dispute", d.Status, models.DisputeStatusClosed)
	}
	return s.disputes.GetByID(ctx, disputeID)
}

// Appeal suspends a resolution's finality for manual re-review. Valid only
// from resolved.
func (s *DisputeService) Appeal(ctx context.Context, disputeID, userID uuid.UUID, reason string) (*models.Dispute, error) {
	if reason == "" {
		return nil, fmt.Errorf("appeal reason is required")
	}

	d, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if err := requireParty(d, userID); err != nil {
		return nil, err
	}

	ok, err := s.disputes.MarkAppealed(ctx, disputeID, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewInvalidTransition("dispute", d.Status, models.DisputeStatusAppealed)
	}
	return s.disputes.GetByID(ctx, disputeID)
}

// AdminResolve is the manual override: it always takes precedence over a
// pending automated evaluation and is the only path that may set split.
func (s *DisputeService) AdminResolve(ctx context.Context, disputeID, adminID uuid.UUID, resolution, note string) (*models.Dispute, error) {
	if !models.IsValidResolution(resolution) {
		return nil, fmt.Errorf("invalid resolution %q", resolution)
	}

	d, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if d.Status == models.DisputeStatusClosed {
		return nil, models.NewInvalidTransition("dispute", d.Status, models.DisputeStatusResolved)
	}

	if _, err := s.tradeSvc.ApplyResolution(ctx, d.TradeID, resolution, &adminID, "admin"); err != nil {
		return nil, fmt.Errorf("apply resolution: %w", err)
	}

	reason := "manually resolved by administrator"
	if note != "" {
		reason = note
	}
	ok, err := s.disputes.MarkResolved(ctx, disputeID, d.Status, resolution, reason, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewInvalidTransition("dispute", d.Status, models.DisputeStatusResolved)
	}

	if note != "" {
		if err := s.disputes.AddNote(ctx, &models.DisputeNote{DisputeID: disputeID, AdminID: adminID, Note: note}); err != nil {
			s.log.Error("failed to record admin note", zap.String("dispute_id", disputeID.String()), zap.Error(err))
		}
	}

	_ = s.publisher.Publish(ctx, events.StreamDispute, events.Event{
		Type: events.EventDisputeResolved,
		Payload: map[string]any{
			"dispute_id": disputeID.String(),
			"trade_id":   d.TradeID.String(),
			"resolution": resolution,
			"auto":       false,
		},
	})

	return s.disputes.GetByID(ctx, disputeID)
}

// AddNote appends an attributable admin note.
func (s *DisputeService) AddNote(ctx context.Context, disputeID, adminID uuid.UUID, note string) (*models.DisputeNote, error) {
	if note == "" {
		return nil, fmt.Errorf("note is required")
	}
	if _, err := s.disputes.GetByID(ctx, disputeID); err != nil {
		return nil, err
	}
	n := &models.DisputeNote{DisputeID: disputeID, AdminID: adminID, Note: note}
	if err := s.disputes.AddNote(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *DisputeService) GetDispute(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	return s.disputes.GetByID(ctx, disputeID)
}

// GetDetail returns the full adjudication view with ordered evidence,
// transcript, and notes.
func (s *DisputeService) GetDetail(ctx context.Context, disputeID uuid.UUID) (*models.DisputeDetail, error) {
	d, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	evidence, err := s.disputes.ListEvidence(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	messages, err := s.disputes.ListMessages(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	notes, err := s.disputes.ListNotes(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	return &models.DisputeDetail{Dispute: *d, Evidence: evidence, Messages: messages, Notes: notes}, nil
}

func (s *DisputeService) ListDisputes(ctx context.Context, status *string, limit, offset int) ([]models.Dispute, error) {
	return s.disputes.ListByStatus(ctx, status, limit, offset)
}

// ReevaluateActive re-runs the engine over every open or under-review
// dispute. This is what makes lazily evaluated signals (like the payment
// window) eventually fire without any per-trade timer.
func (s *DisputeService) ReevaluateActive(ctx context.Context) {
	disputes, err := s.disputes.ListActive(ctx, 100)
	if err != nil {
		s.log.Error("failed to list active disputes", zap.Error(err))
		return
	}
	for _, d := range disputes {
		if _, err := s.Resolve(ctx, d.ID); err != nil {
			s.log.Error("re-evaluation failed", zap.String("dispute_id", d.ID.String()), zap.Error(err))
		}
	}
}

// CloseLapsedAppeals closes resolved disputes whose appeal window has
// lapsed without a challenge.
func (s *DisputeService) CloseLapsedAppeals(ctx context.Context) {
	cutoff := time.Now().Add(-s.appealWindow)
	disputes, err := s.disputes.ListResolvedBefore(ctx, cutoff, 100)
	if err != nil {
		s.log.Error("failed to list lapsed resolutions", zap.Error(err))
		return
	}
	for _, d := range disputes {
		ok, err := s.disputes.UpdateStatus(ctx, d.ID, models.DisputeStatusResolved, models.DisputeStatusClosed)
		if err != nil {
			s.log.Error("failed to close lapsed dispute", zap.String("dispute_id", d.ID.String()), zap.Error(err))
			continue
		}
		if ok {
			s.log.Info("dispute closed, appeal window lapsed", zap.String("dispute_id", d.ID.String()))
		}
	}
}

func requireParty(d *models.Dispute, userID uuid.UUID) error {
	if userID != d.InitiatorID && userID != d.RespondentID {
		return fmt.Errorf("user %s is not a party to dispute %s", userID, d.ID)
	}
	return nil
}
