package models

import (
	"encoding/json"
	"time"
)

// BalanceSnapshot is the bot-reported balance. AsOf is the snapshot's own
// timestamp, not the query time. The latest snapshot replaces any previous
// one; it is never merged with receipt aggregation totals.
type BalanceSnapshot struct {
	ValueSats    int64             `json:"value_sats"`
	AsOf         time.Time         `json:"as_of"`
	Transactions []json.RawMessage `json:"transactions,omitempty"`
}
