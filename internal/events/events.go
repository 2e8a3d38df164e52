package events

import "context"

// Streams
const (
	StreamTrade   = "events:trade"
	StreamDispute = "events:dispute"
)

// Event types
const (
	EventTradeStatusChanged  = "trade_status_changed"
	EventEscrowStatusChanged = "escrow_status_changed"
	EventDisputeRaised       = "dispute_raised"
	EventDisputeResolved     = "dispute_resolved"
	EventDisputeEscalated    = "dispute_escalated"
	EventDisputeMessage      = "dispute_message"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
