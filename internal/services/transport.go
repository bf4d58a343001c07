package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Typed pay failures. A transport failure downgrades the dispatch to the
// next transport in the chain instead of aborting the whole flow.
var (
	ErrPayTimeout          = errors.New("payment timed out")
	ErrInsufficientBalance = errors.New("insufficient balance in connected wallet")
	ErrInvalidInvoice      = errors.New("invalid invoice or connection")
)

// PaymentTransport attempts settlement of a single invoice.
type PaymentTransport interface {
	Name() string
	Pay(ctx context.Context, invoice string) (preimage string, err error)
}

// LocalWallet is an optional same-device payment capability discovered from
// the environment (WebLN-style). Enable is idempotent; implementations may
// return a fresh handle or mutate in place and return themselves — callers
// accept either. No timeout is imposed on SendPayment: the capability's own
// confirmation UX governs it.
type LocalWallet interface {
	Enable(ctx context.Context) (LocalWallet, error)
	SendPayment(ctx context.Context, invoice string) (string, error)
}

type localWalletTransport struct {
	wallet LocalWallet
}

func NewLocalWalletTransport(w LocalWallet) PaymentTransport {
	return &localWalletTransport{wallet: w}
}

func (t *localWalletTransport) Name() string { return "local_wallet" }

func (t *localWalletTransport) Pay(ctx context.Context, invoice string) (string, error) {
	provider := t.wallet
	enabled, err := t.wallet.Enable(ctx)
	if err != nil {
		return "", fmt.Errorf("enable local wallet: %w", err)
	}
	if enabled != nil {
		provider = enabled
	}
	return provider.SendPayment(ctx, invoice)
}

// classifyPayError maps an underlying transport error onto the typed
// taxonomy by substring; unrecognized errors pass through wrapped.
func classifyPayError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return ErrPayTimeout
	case strings.Contains(msg, "insufficient"):
		return ErrInsufficientBalance
	case strings.Contains(msg, "invalid"):
		return ErrInvalidInvoice
	default:
		return fmt.Errorf("payment failed: %w", err)
	}
}
