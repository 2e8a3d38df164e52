package models

import "testing"

func TestIsValidDisputeTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{DisputeStatusOpen, DisputeStatusUnderReview, true},
		{DisputeStatusOpen, DisputeStatusResolved, true},
		{DisputeStatusOpen, DisputeStatusClosed, true},
		{DisputeStatusUnderReview, DisputeStatusResolved, true},
		{DisputeStatusResolved, DisputeStatusClosed, true},
		{DisputeStatusResolved, DisputeStatusAppealed, true},
		{DisputeStatusAppealed, DisputeStatusResolved, true},
		{DisputeStatusAppealed, DisputeStatusClosed, true},

		// Appeal is only reachable from resolved
		{DisputeStatusOpen, DisputeStatusAppealed, false},
		{DisputeStatusUnderReview, DisputeStatusAppealed, false},
		{DisputeStatusClosed, DisputeStatusAppealed, false},

		{DisputeStatusClosed, DisputeStatusResolved, false},
		{DisputeStatusResolved, DisputeStatusOpen, false},
		{DisputeStatusUnderReview, DisputeStatusOpen, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidDisputeTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidDisputeTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestIsValidResolution(t *testing.T) {
	valid := []string{ResolutionBuyerFavor, ResolutionSellerFavor, ResolutionSplit}
	for _, r := range valid {
		if !IsValidResolution(r) {
			t.Errorf("resolution %q should be valid", r)
		}
	}
	invalid := []string{ResolutionPending, "", "both_favor"}
	for _, r := range invalid {
		if IsValidResolution(r) {
			t.Errorf("resolution %q should not be valid", r)
		}
	}
}

func TestSuccessRate(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		success  int
		expected float64
	}{
		{"no trades", 0, 0, 0},
		{"perfect", 10, 10, 1.0},
		{"half", 10, 5, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ReputationSnapshot{TotalTrades: tt.total, SuccessfulTrades: tt.success}
			if got := s.SuccessRate(); got != tt.expected {
				t.Errorf("SuccessRate() = %v, want %v", got, tt.expected)
			}
		})
	}
}
