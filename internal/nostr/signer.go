package nostr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gonostr "github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip04"
	"github.com/nbd-wtf/go-nostr/nip19"
)

var (
	// ErrNoSigner is returned when an operation requires a signing identity
	// and none is configured.
	ErrNoSigner = errors.New("no signer available")

	// ErrDecryptUnsupported is returned by signers without NIP-04 support.
	ErrDecryptUnsupported = errors.New("signer does not support decryption")
)

// Signer is the identity capability: signing plus NIP-04 encryption for
// direct messages. Implementations may lack decrypt support; callers must
// treat ErrDecryptUnsupported as a typed failure, not a fault.
type Signer interface {
	PublicKey() string
	SignEvent(ctx context.Context, ev *gonostr.Event) error
	Encrypt(ctx context.Context, peerPubkey, plaintext string) (string, error)
	Decrypt(ctx context.Context, peerPubkey, ciphertext string) (string, error)
}

// LocalSigner holds the service user's secret key in memory.
type LocalSigner struct {
	sk string
	pk string
}

// NewLocalSigner accepts a hex secret key or an nsec bech32 string.
func NewLocalSigner(key string) (*LocalSigner, error) {
	sk := strings.TrimSpace(key)
	if sk == "" {
		return nil, ErrNoSigner
	}

	if strings.HasPrefix(sk, "nsec1") {
		prefix, decoded, err := nip19.Decode(sk)
		if err != nil || prefix != "nsec" {
			return nil, fmt.Errorf("invalid nsec key: %w", err)
		}
		sk = decoded.(string)
	}

	pk, err := gonostr.GetPublicKey(sk)
	if err != nil {
		return nil, fmt.Errorf("invalid secret key: %w", err)
	}

	return &LocalSigner{sk: sk, pk: pk}, nil
}

func (s *LocalSigner) PublicKey() string {
	return s.pk
}

func (s *LocalSigner) SignEvent(_ context.Context, ev *gonostr.Event) error {
	return ev.Sign(s.sk)
}

func (s *LocalSigner) Encrypt(_ context.Context, peerPubkey, plaintext string) (string, error) {
	shared, err := nip04.ComputeSharedSecret(peerPubkey, s.sk)
	if err != nil {
		return "", fmt.Errorf("compute shared secret: %w", err)
	}
	return nip04.Encrypt(plaintext, shared)
}

func (s *LocalSigner) Decrypt(_ context.Context, peerPubkey, ciphertext string) (string, error) {
	shared, err := nip04.ComputeSharedSecret(peerPubkey, s.sk)
	if err != nil {
		return "", fmt.Errorf("compute shared secret: %w", err)
	}
	return nip04.Decrypt(ciphertext, shared)
}
