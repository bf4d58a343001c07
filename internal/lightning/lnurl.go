package lightning

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"go.uber.org/zap"
)

var hexPubkeyRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

// PayEndpoint is the LNURL-pay descriptor served by the recipient's
// payment endpoint.
type PayEndpoint struct {
	Callback    string `json:"callback"`
	MinSendable int64  `json:"minSendable"`
	MaxSendable int64  `json:"maxSendable"`
	AllowsNostr bool   `json:"allowsNostr"`
	NostrPubkey string `json:"nostrPubkey"`
	Tag         string `json:"tag"`
}

type invoiceResponse struct {
	PR     string `json:"pr"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Client fetches LNURL-pay descriptors and invoices from recipient-controlled
// endpoints. All fetches are bounded by both the client timeout and the
// caller's context.
type Client struct {
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// EndpointURLFromMetadata maps profile metadata to the LNURL-pay URL.
// lud06 (bech32-encoded URL) takes precedence over lud16 (name@domain),
// matching the reference resolution order.
func EndpointURLFromMetadata(lud06, lud16 string) (string, error) {
	if lud06 != "" {
		return decodeLNURL(lud06)
	}
	if lud16 != "" {
		name, domain, ok := strings.Cut(lud16, "@")
		if !ok || name == "" || domain == "" {
			return "", fmt.Errorf("malformed lud16 address %q", lud16)
		}
		return fmt.Sprintf("https://%s/.well-known/lnurlp/%s", domain, name), nil
	}
	return "", fmt.Errorf("no lightning address in profile metadata")
}

func decodeLNURL(lud06 string) (string, error) {
	hrp, data, err := bech32.DecodeNoLimit(strings.ToLower(lud06))
	if err != nil {
		return "", fmt.Errorf("decode lud06: %w", err)
	}
	if hrp != "lnurl" {
		return "", fmt.Errorf("unexpected lud06 prefix %q", hrp)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", fmt.Errorf("decode lud06 payload: %w", err)
	}
	return string(raw), nil
}

// FetchPayEndpoint retrieves the LNURL-pay descriptor and verifies it can
// receive zaps (allowsNostr with a valid nostr pubkey).
func (c *Client) FetchPayEndpoint(ctx context.Context, endpointURL string) (*PayEndpoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment endpoint unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("payment endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var ep PayEndpoint
	if err := json.NewDecoder(resp.Body).Decode(&ep); err != nil {
		return nil, fmt.Errorf("decode payment endpoint descriptor: %w", err)
	}

	if ep.Callback == "" {
		return nil, fmt.Errorf("payment endpoint has no callback")
	}
	if !ep.AllowsNostr || !hexPubkeyRe.MatchString(ep.NostrPubkey) {
		return nil, fmt.Errorf("payment endpoint does not support zaps")
	}

	return &ep, nil
}

// RequestInvoice asks the callback for an invoice covering amountMsat, with
// the signed zap request attached. Any non-2xx status or a response without
// a usable invoice is a hard failure; there is no retry at this layer.
func (c *Client) RequestInvoice(ctx context.Context, callback string, amountMsat int64, signedZapRequest []byte) (string, error) {
	u, err := url.Parse(callback)
	if err != nil {
		return "", fmt.Errorf("malformed callback URL: %w", err)
	}
	q := u.Query()
	q.Set("amount", strconv.FormatInt(amountMsat, 10))
	q.Set("nostr", string(signedZapRequest))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("invoice request failed: %w", err)
	}
	defer resp.Body.Close()

	var ir invoiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return "", fmt.Errorf("decode invoice response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := ir.Reason
		if reason == "" {
			reason = "unknown error"
		}
		return "", fmt.Errorf("invoice request returned %d: %s", resp.StatusCode, reason)
	}

	if ir.PR == "" {
		return "", fmt.Errorf("lightning service did not return a valid invoice")
	}

	return ir.PR, nil
}
