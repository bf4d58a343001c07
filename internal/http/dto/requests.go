package dto

import gonostr "github.com/nbd-wtf/go-nostr"

type AuthSessionRequest struct {
	AuthEvent *gonostr.Event `json:"auth_event"`
}

type CreateZapRequest struct {
	Target          *gonostr.Event `json:"target,omitempty"`
	RecipientPubkey string         `json:"recipient_pubkey,omitempty"`
	AmountSats      int64          `json:"amount_sats"`
	Comment         string         `json:"comment,omitempty"`
}

type AddWalletRequest struct {
	ConnectionString string `json:"connection_string"`
	Alias            string `json:"alias,omitempty"`
}

type SetActiveWalletRequest struct {
	ConnectionString string `json:"connection_string"`
}
