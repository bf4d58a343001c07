package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	gonostr "github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip04"
	"go.uber.org/zap"
)

// NIP-47 wallet service event kinds.
const (
	kindNWCRequest  = 23194
	kindNWCResponse = 23195
)

var nwcPrefixes = []string{"nostr+walletconnect://", "nostrwalletconnect://"}

var hexKeyRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

var ErrUnrecognizedURI = errors.New("unrecognized wallet connection string")

// HasNWCPrefix reports whether a connection string carries a recognized
// wallet-connect scheme. Checked before any connectivity probe so malformed
// input fails without network traffic.
func HasNWCPrefix(uri string) bool {
	for _, p := range nwcPrefixes {
		if strings.HasPrefix(uri, p) {
			return true
		}
	}
	return false
}

// NWCClient pays invoices through a remote wallet reachable over the relay
// named in the connection string.
type NWCClient struct {
	walletPubkey string
	relayURL     string
	secret       string
	clientPubkey string
	shared       []byte
	timeout      time.Duration
	log          *zap.Logger
}

func NewNWCClient(connectionString string, payTimeout time.Duration, log *zap.Logger) (*NWCClient, error) {
	if !HasNWCPrefix(connectionString) {
		return nil, ErrUnrecognizedURI
	}
	u, err := url.Parse(connectionString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	walletPubkey := u.Host
	if !hexKeyRe.MatchString(walletPubkey) {
		return nil, fmt.Errorf("connection string has no valid wallet pubkey")
	}
	relayURL := u.Query().Get("relay")
	if relayURL == "" {
		return nil, fmt.Errorf("connection string has no relay")
	}
	secret := u.Query().Get("secret")
	if !hexKeyRe.MatchString(secret) {
		return nil, fmt.Errorf("connection string has no valid secret")
	}
	clientPubkey, err := gonostr.GetPublicKey(secret)
	if err != nil {
		return nil, fmt.Errorf("derive client pubkey: %w", err)
	}
	shared, err := nip04.ComputeSharedSecret(walletPubkey, secret)
	if err != nil {
		return nil, fmt.Errorf("compute shared secret: %w", err)
	}
	return &NWCClient{
		walletPubkey: walletPubkey,
		relayURL:     relayURL,
		secret:       secret,
		clientPubkey: clientPubkey,
		shared:       shared,
		timeout:      payTimeout,
		log:          log,
	}, nil
}

func (c *NWCClient) Name() string { return "nwc" }

// Probe dials the connection's relay within the caller's deadline. It does
// not exchange wallet messages; reachability is the acceptance bar.
func (c *NWCClient) Probe(ctx context.Context) error {
	relay, err := gonostr.RelayConnect(ctx, c.relayURL)
	if err != nil {
		return fmt.Errorf("wallet relay unreachable: %w", err)
	}
	_ = relay.Close()
	return nil
}

type nwcRequest struct {
	Method string    `json:"method"`
	Params nwcParams `json:"params"`
}

type nwcParams struct {
	Invoice string `json:"invoice"`
}

type nwcResponse struct {
	ResultType string `json:"result_type"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Result *struct {
		Preimage string `json:"preimage"`
	} `json:"result"`
}

// Pay publishes an encrypted pay_invoice request and waits for the wallet's
// reply. The configured timeout races the reply; a late reply is discarded.
func (c *NWCClient) Pay(ctx context.Context, invoice string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	relay, err := gonostr.RelayConnect(ctx, c.relayURL)
	if err != nil {
		return "", classifyPayError(fmt.Errorf("connect wallet relay: %w", err))
	}
	defer relay.Close()

	payload, err := json.Marshal(nwcRequest{Method: "pay_invoice", Params: nwcParams{Invoice: invoice}})
	if err != nil {
		return "", fmt.Errorf("encode pay request: %w", err)
	}
	content, err := nip04.Encrypt(string(payload), c.shared)
	if err != nil {
		return "", fmt.Errorf("encrypt pay request: %w", err)
	}

	req := gonostr.Event{
		Kind:      kindNWCRequest,
		CreatedAt: gonostr.Now(),
		Tags:      gonostr.Tags{{"p", c.walletPubkey}},
		Content:   content,
	}
	if err := req.Sign(c.secret); err != nil {
		return "", fmt.Errorf("sign pay request: %w", err)
	}

	sub, err := relay.Subscribe(ctx, gonostr.Filters{{
		Kinds:   []int{kindNWCResponse},
		Authors: []string{c.walletPubkey},
		Tags:    gonostr.TagMap{"e": []string{req.ID}},
	}})
	if err != nil {
		return "", classifyPayError(err)
	}
	defer sub.Unsub()

	if err := relay.Publish(ctx, req); err != nil {
		return "", classifyPayError(err)
	}

	select {
	case <-ctx.Done():
		return "", ErrPayTimeout
	case ev, ok := <-sub.Events:
		if !ok {
			return "", ErrPayTimeout
		}
		plaintext, err := nip04.Decrypt(ev.Content, c.shared)
		if err != nil {
			return "", classifyPayError(fmt.Errorf("decrypt wallet response: %w", err))
		}
		var resp nwcResponse
		if err := json.Unmarshal([]byte(plaintext), &resp); err != nil {
			return "", classifyPayError(fmt.Errorf("decode wallet response: %w", err))
		}
		if resp.Error != nil {
			return "", classifyPayError(fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message))
		}
		if resp.Result == nil || resp.Result.Preimage == "" {
			return "", classifyPayError(fmt.Errorf("wallet returned no preimage"))
		}
		c.log.Info("invoice paid via wallet connection",
			zap.String("wallet", c.walletPubkey[:8]))
		return resp.Result.Preimage, nil
	}
}
