package dto

import "github.com/zapchat/backend/internal/models"

type AuthResponse struct {
	Token  string `json:"token"`
	Pubkey string `json:"pubkey"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type WalletListResponse struct {
	Connections []models.WalletConnection `json:"connections"`
	Active      string                    `json:"active,omitempty"`
}

type BalanceResponse struct {
	BalanceSats  int64 `json:"balance_sats"`
	AsOf         int64 `json:"as_of"`
	Transactions any   `json:"transactions,omitempty"`
}
