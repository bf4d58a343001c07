package auth

import (
	"fmt"
	"time"

	gonostr "github.com/nbd-wtf/go-nostr"
)

// kindAuth is the ephemeral HTTP auth event kind (NIP-98).
const kindAuth = 27235

// VerifyAuthEvent checks a client-signed auth event: correct kind, a valid
// schnorr signature over the canonical serialization, and a created_at
// within maxAge of now (either direction, to tolerate clock skew). Returns
// the proven pubkey.
func VerifyAuthEvent(ev *gonostr.Event, maxAge time.Duration) (string, error) {
	if ev == nil {
		return "", fmt.Errorf("auth event is required")
	}
	if ev.Kind != kindAuth {
		return "", fmt.Errorf("unexpected auth event kind %d", ev.Kind)
	}

	age := time.Since(ev.CreatedAt.Time())
	if age > maxAge || age < -maxAge {
		return "", fmt.Errorf("auth event is stale")
	}

	ok, err := ev.CheckSignature()
	if err != nil {
		return "", fmt.Errorf("verify auth event: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("auth event signature is invalid")
	}
	return ev.PubKey, nil
}
