package models

// Zap dispatch statuses
const (
	ZapStatusIdle              = "idle"
	ZapStatusRequestingInvoice = "requesting_invoice"
	ZapStatusAwaitingTransport = "awaiting_transport"
	ZapStatusAwaitingManual    = "awaiting_manual_settlement"
	ZapStatusSettled           = "settled"
)

// Valid state transitions: from -> []to.
// A failed invoice request drops back to idle; a failed transport attempt
// degrades to manual settlement instead of terminating the flow. Manual
// settlement is a valid terminal UX state: the payment happens out of band
// and the only transitions out are settled (observed externally) or idle
// (dialog closed).
var ValidZapTransitions = map[string][]string{
	ZapStatusIdle:              {ZapStatusRequestingInvoice},
	ZapStatusRequestingInvoice: {ZapStatusAwaitingTransport, ZapStatusAwaitingManual, ZapStatusIdle},
	ZapStatusAwaitingTransport: {ZapStatusSettled, ZapStatusAwaitingManual},
	ZapStatusAwaitingManual:    {ZapStatusSettled, ZapStatusIdle},
	ZapStatusSettled:           {},
}

func IsValidZapTransition(from, to string) bool {
	allowed, ok := ValidZapTransitions[from]
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
