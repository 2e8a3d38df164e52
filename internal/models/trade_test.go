package models

import "testing"

func TestIsValidTradeTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{TradeStatusOpen, TradeStatusInProgress, true},
		{TradeStatusInProgress, TradeStatusPaymentPending, true},
		{TradeStatusPaymentPending, TradeStatusCompleted, true},

		// Dispute branches
		{TradeStatusInProgress, TradeStatusDisputed, true},
		{TradeStatusPaymentPending, TradeStatusDisputed, true},
		{TradeStatusDisputed, TradeStatusCompleted, true},
		{TradeStatusDisputed, TradeStatusCancelled, true},

		// Cancellation paths
		{TradeStatusOpen, TradeStatusCancelled, true},
		{TradeStatusInProgress, TradeStatusCancelled, true},

		// Invalid
		{TradeStatusOpen, TradeStatusPaymentPending, false},
		{TradeStatusOpen, TradeStatusDisputed, false},
		{TradeStatusOpen, TradeStatusCompleted, false},
		{TradeStatusPaymentPending, TradeStatusCancelled, false},
		{TradeStatusCompleted, TradeStatusDisputed, false},
		{TradeStatusCompleted, TradeStatusCancelled, false},
		{TradeStatusCancelled, TradeStatusInProgress, false},
		{TradeStatusDisputed, TradeStatusInProgress, false},
		{TradeStatusDisputed, TradeStatusPaymentPending, false},
		{"nonexistent", TradeStatusOpen, false},
		{TradeStatusOpen, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidTradeTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidTradeTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestIsValidEscrowTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{EscrowStatusPending, EscrowStatusFunded, true},
		{EscrowStatusFunded, EscrowStatusReleased, true},
		{EscrowStatusFunded, EscrowStatusRefunded, true},

		{EscrowStatusPending, EscrowStatusReleased, false},
		{EscrowStatusPending, EscrowStatusRefunded, false},
		{EscrowStatusReleased, EscrowStatusRefunded, false},
		{EscrowStatusRefunded, EscrowStatusReleased, false},
		{EscrowStatusReleased, EscrowStatusFunded, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidEscrowTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidEscrowTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestTerminalTradeStatuses(t *testing.T) {
	terminal := []string{TradeStatusCompleted, TradeStatusCancelled}
	for _, status := range terminal {
		if !IsTerminalTradeStatus(status) {
			t.Errorf("status %q should be terminal", status)
		}
	}

	nonTerminal := []string{TradeStatusOpen, TradeStatusInProgress, TradeStatusPaymentPending, TradeStatusDisputed}
	for _, status := range nonTerminal {
		if IsTerminalTradeStatus(status) {
			t.Errorf("status %q should not be terminal", status)
		}
	}
}

func TestIsDisputable(t *testing.T) {
	tests := []struct {
		status   string
		expected bool
	}{
		{TradeStatusInProgress, true},
		{TradeStatusPaymentPending, true},
		{TradeStatusOpen, false},
		{TradeStatusCompleted, false},
		{TradeStatusCancelled, false},
		{TradeStatusDisputed, false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			if got := IsDisputable(tt.status); got != tt.expected {
				t.Errorf("IsDisputable(%q) = %v, want %v", tt.status, got, tt.expected)
			}
		})
	}
}

func TestAllTradeStatusesHaveTransitionEntry(t *testing.T) {
	allStatuses := []string{
		TradeStatusOpen, TradeStatusInProgress, TradeStatusPaymentPending,
		TradeStatusCompleted, TradeStatusCancelled, TradeStatusDisputed,
	}

	for _, status := range allStatuses {
		if _, ok := ValidTradeTransitions[status]; !ok {
			t.Errorf("status %q missing from ValidTradeTransitions map", status)
		}
	}
}
