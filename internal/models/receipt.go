package models

import (
	gonostr "github.com/nbd-wtf/go-nostr"
)

// ReceivedZap is a zap receipt observed on the public event log, with sender
// and amount derived from the embedded zap request. The sender pubkey is
// whatever the original request claimed; it is not re-verified here.
type ReceivedZap struct {
	ID           string         `json:"id"`
	SenderPubkey string         `json:"sender_pubkey"`
	AmountSats   int64          `json:"amount_sats"`
	Comment      string         `json:"comment,omitempty"`
	Timestamp    int64          `json:"timestamp"`
	Bolt11       string         `json:"bolt11,omitempty"`
	ZapRequest   *gonostr.Event `json:"zap_request,omitempty"`
}

// ReceiptSummary aggregates receipts for one recipient. Recomputed on every
// fetch; there is no persisted ledger behind it.
type ReceiptSummary struct {
	TotalSats     int64         `json:"total_sats"`
	ZapCount      int           `json:"zap_count"`
	UniqueSenders int           `json:"unique_senders"`
	Receipts      []ReceivedZap `json:"receipts"`
}
