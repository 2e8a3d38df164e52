package models

import (
	"time"

	"github.com/google/uuid"
)

// Dispute statuses
const (
	DisputeStatusOpen        = "open"
	DisputeStatusUnderReview = "under_review"
	DisputeStatusResolved    = "resolved"
	DisputeStatusClosed      = "closed"
	DisputeStatusAppealed    = "appealed"
)

// Dispute resolutions
const (
	ResolutionPending     = "pending"
	ResolutionBuyerFavor  = "buyer_favor"
	ResolutionSellerFavor = "seller_favor"
	ResolutionSplit       = "split"
)

// Valid dispute transitions: from -> []to
var ValidDisputeTransitions = map[string][]string{
	DisputeStatusOpen:        {DisputeStatusUnderReview, DisputeStatusResolved, DisputeStatusClosed},
	DisputeStatusUnderReview: {DisputeStatusResolved},
	DisputeStatusResolved:    {DisputeStatusClosed, DisputeStatusAppealed},
	DisputeStatusAppealed:    {DisputeStatusResolved, DisputeStatusClosed},
	DisputeStatusClosed:      {},
}

func IsValidDisputeTransition(from, to string) bool {
	allowed, ok := ValidDisputeTransitions[from]
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

func IsValidResolution(r string) bool {
	switch r {
	case ResolutionBuyerFavor, ResolutionSellerFavor, ResolutionSplit:
		return true
	}
	return false
}

type Dispute struct {
	ID            uuid.UUID  `json:"id"`
	TradeID       uuid.UUID  `json:"trade_id"`
	InitiatorID   uuid.UUID  `json:"initiator_id"`
	RespondentID  uuid.UUID  `json:"respondent_id"`
	Reason        string     `json:"reason"`
	DisputedFrom  string     `json:"disputed_from"` // trade status when the dispute was raised
	Status        string     `json:"status"`
	Resolution    string     `json:"resolution"`
	AutoResolved  bool       `json:"auto_resolved"`
	ResolveReason *string    `json:"resolve_reason,omitempty"`
	AppealReason  *string    `json:"appeal_reason,omitempty"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Evidence kinds
const (
	EvidenceKindImage    = "image"
	EvidenceKindDocument = "document"
	EvidenceKindText     = "text"
)

func IsValidEvidenceKind(kind string) bool {
	switch kind {
	case EvidenceKindImage, EvidenceKindDocument, EvidenceKindText:
		return true
	}
	return false
}

type Evidence struct {
	ID          uuid.UUID `json:"id"`
	DisputeID   uuid.UUID `json:"dispute_id"`
	UploaderID  uuid.UUID `json:"uploader_id"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	ContentURL  *string   `json:"content_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type DisputeMessage struct {
	ID        uuid.UUID `json:"id"`
	DisputeID uuid.UUID `json:"dispute_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type DisputeNote struct {
	ID        uuid.UUID `json:"id"`
	DisputeID uuid.UUID `json:"dispute_id"`
	AdminID   uuid.UUID `json:"admin_id"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// DisputeDetail is the full adjudication view: the dispute plus its ordered
// evidence list, message transcript, and admin notes.
type DisputeDetail struct {
	Dispute
	Evidence []Evidence       `json:"evidence"`
	Messages []DisputeMessage `json:"messages"`
	Notes    []DisputeNote    `json:"notes"`
}
