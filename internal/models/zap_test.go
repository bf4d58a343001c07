package models

import "testing"

func TestIsValidZapTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path: remote transport pays
		{ZapStatusIdle, ZapStatusRequestingInvoice, true},
		{ZapStatusRequestingInvoice, ZapStatusAwaitingTransport, true},
		{ZapStatusAwaitingTransport, ZapStatusSettled, true},

		// No transports: straight to manual settlement
		{ZapStatusRequestingInvoice, ZapStatusAwaitingManual, true},

		// Transport failure degrades to manual, never terminates
		{ZapStatusAwaitingTransport, ZapStatusAwaitingManual, true},
		{ZapStatusAwaitingManual, ZapStatusSettled, true},

		// Failure / cancel paths
		{ZapStatusRequestingInvoice, ZapStatusIdle, true},
		{ZapStatusAwaitingManual, ZapStatusIdle, true},

		// Invalid transitions
		{ZapStatusIdle, ZapStatusSettled, false},
		{ZapStatusIdle, ZapStatusAwaitingTransport, false},
		{ZapStatusAwaitingTransport, ZapStatusIdle, false},
		{ZapStatusAwaitingTransport, ZapStatusRequestingInvoice, false},
		{ZapStatusSettled, ZapStatusIdle, false},
		{ZapStatusSettled, ZapStatusRequestingInvoice, false},
		{"nonexistent", ZapStatusIdle, false},
		{ZapStatusIdle, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidZapTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidZapTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestSettledIsTerminal(t *testing.T) {
	if transitions := ValidZapTransitions[ZapStatusSettled]; len(transitions) != 0 {
		t.Errorf("settled should have no transitions, got %v", transitions)
	}
}
