package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/p2p-exchange/backend/internal/events"
	"github.com/p2p-exchange/backend/internal/models"
	"github.com/p2p-exchange/backend/internal/rbac"
	"github.com/p2p-exchange/backend/internal/repositories"
	"go.uber.org/zap"
)

// TradeStore is the persistence surface the escrow state machine mutates.
// Every Update* method is a compare-and-set: it reports false, without
// mutating, when the stored state no longer matches the expectation.
type TradeStore interface {
	Create(ctx context.Context, t *models.Trade) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Trade, error)
	List(ctx context.Context, f repositories.TradeFilter) ([]models.Trade, error)
	Join(ctx context.Context, id, buyerID uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	UpdateStatusEscrow(ctx context.Context, id uuid.UUID, fromStatus, fromEscrow, toStatus, toEscrow string) (bool, error)
	UpdateEscrow(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
}

// EventStore is the append-only trade audit trail.
type EventStore interface {
	Append(ctx context.Context, e models.TradeEvent) error
	ListByTrade(ctx context.Context, tradeID uuid.UUID) ([]models.TradeEvent, error)
}

// TradeService owns the escrow trade lifecycle: creation, escrow funding,
// payment confirmation, release, cancellation, and the dispute branch.
// Every transition validates the current state before mutating and fails
// fast without partial mutation.
type TradeService struct {
	trades    TradeStore
	trail     EventStore
	publisher events.Publisher
	log       *zap.Logger
}

func NewTradeService(trades TradeStore, trail EventStore, publisher events.Publisher, log *zap.Logger) *TradeService {
	return &TradeService{trades: trades, trail: trail, publisher: publisher, log: log}
}

type CreateTradeInput struct {
	AssetType            string
	Amount               string
	Price                string
	Currency             string
	PaymentMethod        string
	Location             *string
	Terms                *string
	PaymentWindowMinutes int
	BuyerID              *uuid.UUID // set when a buyer opens via "buy now"
}

func (s *TradeService) CreateTrade(ctx context.Context, sellerID uuid.UUID, input CreateTradeInput) (*models.Trade, error) {
	if input.AssetType == "" || input.Amount == "" || input.Price == "" {
		return nil, fmt.Errorf("asset_type, amount and price are required")
	}
	if input.PaymentWindowMinutes <= 0 {
		input.PaymentWindowMinutes = 120
	}
	if input.BuyerID != nil && *input.BuyerID == sellerID {
		return nil, fmt.Errorf("buyer and seller must differ")
	}

	status := models.TradeStatusOpen
	if input.BuyerID != nil {
		// Buy-now: the trade starts with both parties bound.
		status = models.TradeStatusInProgress
	}

	trade := &models.Trade{
		SellerID:             sellerID,
		BuyerID:              input.BuyerID,
		AssetType:            input.AssetType,
		Amount:               input.Amount,
		Price:                input.Price,
		Currency:             input.Currency,
		PaymentMethod:        input.PaymentMethod,
		Location:             input.Location,
		Terms:                input.Terms,
		PaymentWindowMinutes: input.PaymentWindowMinutes,
		Status:               status,
		EscrowStatus:         models.EscrowStatusPending,
	}
	if err := s.trades.Create(ctx, trade); err != nil {
		return nil, err
	}

	s.appendEvent(ctx, trade.ID, status, &sellerID, "user", "trade created")
	return trade, nil
}

func (s *TradeService) JoinTrade(ctx context.Context, tradeID, buyerID uuid.UUID) (*models.Trade, error) {
	trade, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if trade.SellerID == buyerID {
		return nil, fmt.Errorf("seller cannot join own trade")
	}

	ok, err := s.trades.Join(ctx, tradeID, buyerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewInvalidTransition("trade", trade.Status, models.TradeStatusInProgress)
	}

	s.appendEvent(ctx, tradeID, models.TradeStatusInProgress, &buyerID, "user", "buyer joined trade")
	s.publishStatus(ctx, tradeID, trade.Status, models.TradeStatusInProgress)
	return s.trades.GetByID(ctx, tradeID)
}

// FundEscrow moves the escrow sub-state to funded. Valid only while the
// trade is in progress with an unfunded escrow; the seller deposits the
// traded asset.
func (s *TradeService) FundEscrow(ctx context.Context, tradeID, actorID uuid.UUID) error {
	trade, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		return err
	}
	if err := s.requirePermission(trade, actorID, rbac.PermFundEscrow); err != nil {
		return err
	}
	if trade.Status != models.TradeStatusInProgress {
		return models.NewInvalidTransition("escrow", trade.EscrowStatus, models.EscrowStatusFunded)
	}

	ok, err := s.trades.UpdateEscrow(ctx, tradeID, models.EscrowStatusPending, models.EscrowStatusFunded)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewInvalidTransition("escrow", trade.EscrowStatus, models.EscrowStatusFunded)
	}

	s.appendEvent(ctx, tradeID, trade.Status, &actorID, "user", "escrow funded")
	s.publishEscrow(ctx, tradeID, models.EscrowStatusPending, models.EscrowStatusFunded)
	return nil
}

// ConfirmPayment records the buyer's claim of having paid: the trade moves
// to payment_pending until the seller confirms receipt. Requires a funded
// escrow.
func (s *TradeService) ConfirmPayment(ctx context.Context, tradeID, actorID uuid.UUID) error {
	trade, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		return err
	}
	if err := s.requirePermission(trade, actorID, rbac.PermConfirmPayment); err != nil {
		return err
	}
	if trade.EscrowStatus != models.EscrowStatusFunded {
		return models.NewInvalidTransition("trade", trade.Status, models.TradeStatusPaymentPending)
	}

	ok, err := s.trades.UpdateStatus(ctx, tradeID, models.TradeStatusInProgress, models.TradeStatusPaymentPending)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewInvalidTransition("trade", trade.Status, models.TradeStatusPaymentPending)
	}

	s.appendEvent(ctx, tradeID, models.TradeStatusPaymentPending, &actorID, "user", "buyer marked payment sent")
	s.publishStatus(ctx, tradeID, trade.Status, models.TradeStatusPaymentPending)
	return nil
}

// ReleaseFunds is the seller's confirmation of payment receipt: escrow is
// released to the buyer and the trade completes. Terminal.
func (s *TradeService) ReleaseFunds(ctx context.Context, tradeID, actorID uuid.UUID) error {
	trade, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		return err
	}
	if err := s.requirePermission(trade, actorID, rbac.PermReleaseFunds); err != nil {
		return err
	}

	ok, err := s.trades.UpdateStatusEscrow(ctx, tradeID,
		models.TradeStatusPaymentPending, models.EscrowStatusFunded,
		models.TradeStatusCompleted, models.EscrowStatusReleased)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewInvalidTransition("escrow", trade.EscrowStatus, models.EscrowStatusReleased)
	}

	s.appendEvent(ctx, tradeID, models.TradeStatusCompleted, &actorID, "user", "seller released funds")
	s.publishStatus(ctx, tradeID, trade.Status, models.TradeStatusCompleted)
	s.publishEscrow(ctx, tradeID, models.EscrowStatusFunded, models.EscrowStatusReleased)
	return nil
}

// CancelTrade cancels an open or not-yet-funded in-progress trade. Once the
// escrow is funded, the only way out is completion or the dispute path.
func (s *TradeService) CancelTrade(ctx context.Context, tradeID, actorID uuid.UUID) error {
	trade, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		return err
	}
	if err := s.requirePermission(trade, actorID, rbac.PermCancelTrade); err != nil {
		return err
	}
	if trade.Status != models.TradeStatusOpen && trade.Status != models.TradeStatusInProgress {
		return models.NewInvalidTransition("trade", trade.Status, models.TradeStatusCancelled)
	}

	ok, err := s.trades.UpdateStatusEscrow(ctx, tradeID,
		trade.Status, models.EscrowStatusPending,
		models.TradeStatusCancelled, models.EscrowStatusPending)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewInvalidTransition("trade", trade.Status, models.TradeStatusCancelled)
	}

	s.appendEvent(ctx, tradeID, models.TradeStatusCancelled, &actorID, "user", "trade cancelled")
	s.publishStatus(ctx, tradeID, trade.Status, models.TradeStatusCancelled)
	return nil
}

// MarkDisputed branches the trade into the dispute path. Called by the
// dispute orchestrator after the dispute record is persisted.
func (s *TradeService) MarkDisputed(ctx context.Context, tradeID, actorID uuid.UUID, fromStatus string) error {
	if !models.IsDisputable(fromStatus) {
		return models.NewInvalidTransition("trade", fromStatus, models.TradeStatusDisputed)
	}

	ok, err := s.trades.UpdateStatus(ctx, tradeID, fromStatus, models.TradeStatusDisputed)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewInvalidTransition("trade", fromStatus, models.TradeStatusDisputed)
	}

	s.appendEvent(ctx, tradeID, models.TradeStatusDisputed, &actorID, "user", "dispute raised")
	s.publishStatus(ctx, tradeID, fromStatus, models.TradeStatusDisputed)
	return nil
}

// ApplyResolution performs the terminal fund movement for a dispute
// verdict. Idempotent: re-applying an already-applied resolution reports
// applied=false with no error and, critically, no second transfer — the
// compare-and-set on the status/escrow pair is the idempotency boundary.
func (s *TradeService) ApplyResolution(ctx context.Context, tradeID uuid.UUID, resolution string, actorID *uuid.UUID, actorType string) (applied bool, err error) {
	var toStatus, toEscrow string
	switch resolution {
	case models.ResolutionBuyerFavor:
		toStatus, toEscrow = models.TradeStatusCompleted, models.EscrowStatusReleased
	case models.ResolutionSellerFavor:
		toStatus, toEscrow = models.TradeStatusCancelled, models.EscrowStatusRefunded
	case models.ResolutionSplit:
		// Fund division for split verdicts is a manual operation; no
		// automatic movement happens here.
		return false, nil
	default:
		return false, fmt.Errorf("unknown resolution %q", resolution)
	}

	ok, err := s.trades.UpdateStatusEscrow(ctx, tradeID,
		models.TradeStatusDisputed, models.EscrowStatusFunded, toStatus, toEscrow)
	if err != nil {
		return false, err
	}
	if !ok {
		trade, err := s.trades.GetByID(ctx, tradeID)
		if err != nil {
			return false, err
		}
		if trade.Status == toStatus && trade.EscrowStatus == toEscrow {
			// Already applied; retry is a no-op.
			return false, nil
		}
		return false, models.NewInvalidTransition("escrow", trade.EscrowStatus, toEscrow)
	}

	s.appendEvent(ctx, tradeID, toStatus, actorID, actorType, fmt.Sprintf("dispute resolved: %s", resolution))
	s.publishStatus(ctx, tradeID, models.TradeStatusDisputed, toStatus)
	s.publishEscrow(ctx, tradeID, models.EscrowStatusFunded, toEscrow)
	return true, nil
}

func (s *TradeService) GetTrade(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	return s.trades.GetByID(ctx, id)
}

func (s *TradeService) ListTrades(ctx context.Context, f repositories.TradeFilter) ([]models.Trade, error) {
	return s.trades.List(ctx, f)
}

func (s *TradeService) GetTradeEvents(ctx context.Context, tradeID uuid.UUID) ([]models.TradeEvent, error) {
	return s.trail.ListByTrade(ctx, tradeID)
}

// --- helpers ---

// RoleOn reports the actor's role on the trade, or "" for outsiders.
func RoleOn(trade *models.Trade, userID uuid.UUID) string {
	if trade.SellerID == userID {
		return rbac.RoleSeller
	}
	if trade.BuyerID != nil && *trade.BuyerID == userID {
		return rbac.RoleBuyer
	}
	return ""
}

func (s *TradeService) requirePermission(trade *models.Trade, actorID uuid.UUID, perm string) error {
	role := RoleOn(trade, actorID)
	if role == "" || !rbac.HasPermission(role, perm) {
		return fmt.Errorf("user %s may not %s on trade %s", actorID, perm, trade.ID)
	}
	return nil
}

func (s *TradeService) appendEvent(ctx context.Context, tradeID uuid.UUID, status string, actorID *uuid.UUID, actorType, description string) {
	if err := s.trail.Append(ctx, models.TradeEvent{
		TradeID:     tradeID,
		Status:      status,
		ActorID:     actorID,
		ActorType:   actorType,
		Description: description,
	}); err != nil {
		s.log.Error("failed to append trade event", zap.String("trade_id", tradeID.String()), zap.Error(err))
	}
}

func (s *TradeService) publishStatus(ctx context.Context, tradeID uuid.UUID, from, to string) {
	_ = s.publisher.Publish(ctx, events.StreamTrade, events.Event{
		Type: events.EventTradeStatusChanged,
		Payload: map[string]any{
			"trade_id":   tradeID.String(),
			"old_status": from,
			"new_status": to,
		},
	})
}

func (s *TradeService) publishEscrow(ctx context.Context, tradeID uuid.UUID, from, to string) {
	_ = s.publisher.Publish(ctx, events.StreamTrade, events.Event{
		Type: events.EventEscrowStatusChanged,
		Payload: map[string]any{
			"trade_id":   tradeID.String(),
			"old_status": from,
			"new_status": to,
		},
	})
}
