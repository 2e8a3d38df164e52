package dto

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// VerdictResponse is the read-only evaluation preview: what the resolution
// engine would decide right now, and why.
type VerdictResponse struct {
	CanAutoResolve bool    `json:"can_auto_resolve"`
	Resolution     string  `json:"resolution,omitempty"`
	Confidence     float64 `json:"confidence"`
	Reason         string  `json:"reason"`
	Signals        any     `json:"signals"`
}
