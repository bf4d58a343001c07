package models

import "time"

// WalletConnection is a remote-wallet (NWC) connection descriptor.
// The connection string is the primary key; it embeds the wallet pubkey,
// relay and secret, so it is never logged in full.
type WalletConnection struct {
	ConnectionString string    `json:"connection_string"`
	Alias            string    `json:"alias,omitempty"`
	IsConnected      bool      `json:"is_connected"` // last-known liveness, best-effort
	AddedAt          time.Time `json:"added_at"`
}
