package events

import "context"

// Event types
const (
	EventZapStatusChanged = "zap_status_changed"
	EventZapSettled       = "zap_settled"
	EventZapFallback      = "zap_fallback"
	EventReceiptObserved  = "receipt_observed"
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
