package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/p2p-exchange/backend/internal/events"
	"github.com/p2p-exchange/backend/internal/models"
	"github.com/p2p-exchange/backend/internal/repositories"
)

// In-memory stores mirroring the repository compare-and-set contracts, so
// the services can be exercised without a database.

type memTrades struct {
	mu     sync.Mutex
	trades map[uuid.UUID]*models.Trade
}

func newMemTrades() *memTrades {
	return &memTrades{trades: make(map[uuid.UUID]*models.Trade)}
}

func (m *memTrades) Create(_ context.Context, t *models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	m.trades[t.ID] = &cp
	return nil
}

func (m *memTrades) GetByID(_ context.Context, id uuid.UUID) (*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTrades) List(_ context.Context, f repositories.TradeFilter) ([]models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Trade
	for _, t := range m.trades {
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (m *memTrades) Join(_ context.Context, id, buyerID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[id]
	if !ok || t.Status != models.TradeStatusOpen || t.BuyerID != nil {
		return false, nil
	}
	b := buyerID
	t.BuyerID = &b
	t.Status = models.TradeStatusInProgress
	return true, nil
}

func (m *memTrades) UpdateStatus(_ context.Context, id uuid.UUID, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	return true, nil
}

func (m *memTrades) UpdateStatusEscrow(_ context.Context, id uuid.UUID, fromStatus, fromEscrow, toStatus, toEscrow string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[id]
	if !ok || t.Status != fromStatus || t.EscrowStatus != fromEscrow {
		return false, nil
	}
	t.Status = toStatus
	t.EscrowStatus = toEscrow
	return true, nil
}

func (m *memTrades) UpdateEscrow(_ context.Context, id uuid.UUID, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[id]
	if !ok || t.EscrowStatus != from {
		return false, nil
	}
	t.EscrowStatus = to
	return true, nil
}

// put seeds a trade directly, bypassing the state machine.
func (m *memTrades) put(t *models.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	cp := *t
	m.trades[t.ID] = &cp
}

type memEvents struct {
	mu     sync.Mutex
	events []models.TradeEvent
}

func (m *memEvents) Append(_ context.Context, e models.TradeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	m.events = append(m.events, e)
	return nil
}

func (m *memEvents) ListByTrade(_ context.Context, tradeID uuid.UUID) ([]models.TradeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TradeEvent
	for _, e := range m.events {
		if e.TradeID == tradeID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memDisputes struct {
	mu       sync.Mutex
	disputes map[uuid.UUID]*models.Dispute
	evidence []models.Evidence
	messages []models.DisputeMessage
	notes    []models.DisputeNote
}

func newMemDisputes() *memDisputes {
	return &memDisputes{disputes: make(map[uuid.UUID]*models.Dispute)}
}

func (m *memDisputes) Create(_ context.Context, d *models.Dispute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.disputes {
		if existing.TradeID == d.TradeID && existing.Status != models.DisputeStatusClosed {
			return models.ErrDuplicateDispute
		}
	}
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	cp := *d
	m.disputes[d.ID] = &cp
	return nil
}

func (m *memDisputes) GetByID(_ context.Context, id uuid.UUID) (*models.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.disputes[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDisputes) GetOpenByTradeID(_ context.Context, tradeID uuid.UUID) (*models.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.disputes {
		if d.TradeID == tradeID && d.Status != models.DisputeStatusClosed {
			cp := *d
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memDisputes) ListByStatus(_ context.Context, status *string, limit, offset int) ([]models.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Dispute
	for _, d := range m.disputes {
		if status != nil && d.Status != *status {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func (m *memDisputes) ListActive(_ context.Context, limit int) ([]models.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Dispute
	for _, d := range m.disputes {
		if d.Status == models.DisputeStatusOpen || d.Status == models.DisputeStatusUnderReview {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *memDisputes) ListResolvedBefore(_ context.Context, cutoff time.Time, limit int) ([]models.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Dispute
	for _, d := range m.disputes {
		if d.Status == models.DisputeStatusResolved && d.ResolvedAt != nil && d.ResolvedAt.Before(cutoff) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *memDisputes) UpdateStatus(_ context.Context, id uuid.UUID, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.disputes[id]
	if !ok || d.Status != from {
		return false, nil
	}
	d.Status = to
	return true, nil
}

func (m *memDisputes) MarkResolved(_ context.Context, id uuid.UUID, from, resolution, reason string, auto bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.disputes[id]
	if !ok || d.Status != from {
		return false, nil
	}
	d.Status = models.DisputeStatusResolved
	d.Resolution = resolution
	d.ResolveReason = &reason
	d.AutoResolved = auto
	if d.ResolvedAt == nil {
		now := time.Now()
		d.ResolvedAt = &now
	}
	return true, nil
}

func (m *memDisputes) MarkAppealed(_ context.Context, id uuid.UUID, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.disputes[id]
	if !ok || d.Status != models.DisputeStatusResolved {
		return false, nil
	}
	d.Status = models.DisputeStatusAppealed
	d.AppealReason = &reason
	return true, nil
}

func (m *memDisputes) AddEvidence(_ context.Context, e *models.Evidence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	m.evidence = append(m.evidence, *e)
	return nil
}

func (m *memDisputes) ListEvidence(_ context.Context, disputeID uuid.UUID) ([]models.Evidence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Evidence
	for _, e := range m.evidence {
		if e.DisputeID == disputeID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memDisputes) AddMessage(_ context.Context, msg *models.DisputeMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memDisputes) ListMessages(_ context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DisputeMessage
	for _, msg := range m.messages {
		if msg.DisputeID == disputeID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memDisputes) AddNote(_ context.Context, n *models.DisputeNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	m.notes = append(m.notes, *n)
	return nil
}

func (m *memDisputes) ListNotes(_ context.Context, disputeID uuid.UUID) ([]models.DisputeNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DisputeNote
	for _, n := range m.notes {
		if n.DisputeID == disputeID {
			out = append(out, n)
		}
	}
	return out, nil
}

// fakeReputation serves fixed snapshots. When unstable is set every read
// returns a fresh version, simulating counters that change mid-evaluation.
type fakeReputation struct {
	mu       sync.Mutex
	snaps    map[uuid.UUID]models.ReputationSnapshot
	unstable bool
	reads    int
}

func newFakeReputation() *fakeReputation {
	return &fakeReputation{snaps: make(map[uuid.UUID]models.ReputationSnapshot)}
}

func (f *fakeReputation) set(s models.ReputationSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps[s.UserID] = s
}

func (f *fakeReputation) GetReputationSnapshot(_ context.Context, userID uuid.UUID) (models.ReputationSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snaps[userID]
	if !ok {
		return models.ReputationSnapshot{}, models.ErrNotFound
	}
	f.reads++
	if f.unstable {
		s.Version = s.Version.Add(time.Duration(f.reads) * time.Second)
	}
	return s, nil
}

type recordPublisher struct {
	mu       sync.Mutex
	recorded []events.Event
}

func (p *recordPublisher) Publish(_ context.Context, _ string, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recorded = append(p.recorded, e)
	return nil
}

func (p *recordPublisher) countByType(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.recorded {
		if e.Type == eventType {
			n++
		}
	}
	return n
}
