package dto

type CreateTradeRequest struct {
	AssetType            string  `json:"asset_type"` // BTC / ETH / USDT
	Amount               string  `json:"amount"`
	Price                string  `json:"price"`
	Currency             string  `json:"currency"`
	PaymentMethod        string  `json:"payment_method"`
	Location             *string `json:"location,omitempty"`
	Terms                *string `json:"terms,omitempty"`
	PaymentWindowMinutes int     `json:"payment_window_minutes,omitempty"`
	BuyerID              *string `json:"buyer_id,omitempty"` // set for buy-now
}

type RaiseDisputeRequest struct {
	Reason string `json:"reason"`
}

type SubmitEvidenceRequest struct {
	Kind        string  `json:"kind"` // image / document / text
	Description string  `json:"description"`
	ContentURL  *string `json:"content_url,omitempty"`
}

type DisputeMessageRequest struct {
	Body string `json:"body"`
}

type AppealRequest struct {
	Reason string `json:"reason"`
}

type AdminResolveRequest struct {
	Resolution string `json:"resolution"` // buyer_favor / seller_favor / split
	AdminNote  string `json:"admin_note,omitempty"`
}

type AdminNoteRequest struct {
	Note string `json:"note"`
}
