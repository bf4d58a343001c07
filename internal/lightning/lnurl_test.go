package lightning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func encodeLNURL(t *testing.T, rawURL string) string {
	t.Helper()
	conv, err := bech32.ConvertBits([]byte(rawURL), 8, 5, true)
	require.NoError(t, err)
	encoded, err := bech32.Encode("lnurl", conv)
	require.NoError(t, err)
	return encoded
}

func TestEndpointURLFromMetadata(t *testing.T) {
	t.Run("lud16", func(t *testing.T) {
		got, err := EndpointURLFromMetadata("", "satoshi@example.com")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/.well-known/lnurlp/satoshi", got)
	})

	t.Run("lud06 takes precedence", func(t *testing.T) {
		lud06 := encodeLNURL(t, "https://pay.example.com/lnurlp/alice")
		got, err := EndpointURLFromMetadata(lud06, "bob@other.example")
		require.NoError(t, err)
		assert.Equal(t, "https://pay.example.com/lnurlp/alice", got)
	})

	t.Run("malformed lud16", func(t *testing.T) {
		_, err := EndpointURLFromMetadata("", "not-an-address")
		assert.Error(t, err)
	})

	t.Run("malformed lud06", func(t *testing.T) {
		_, err := EndpointURLFromMetadata("lnurl1garbage", "")
		assert.Error(t, err)
	})

	t.Run("neither set", func(t *testing.T) {
		_, err := EndpointURLFromMetadata("", "")
		assert.Error(t, err)
	})
}

func TestFetchPayEndpoint(t *testing.T) {
	log := zap.NewNop()

	t.Run("valid zap endpoint", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(PayEndpoint{
				Callback:    "https://pay.example.com/callback",
				AllowsNostr: true,
				NostrPubkey: "618be242c2e25d3e1b86e5ecabf32929a7c24d6cd2a797e8292a1f6252cb702e",
				Tag:         "payRequest",
			})
		}))
		defer srv.Close()

		ep, err := NewClient(2*time.Second, log).FetchPayEndpoint(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "https://pay.example.com/callback", ep.Callback)
	})

	t.Run("endpoint without nostr support", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(PayEndpoint{Callback: "https://x", AllowsNostr: false})
		}))
		defer srv.Close()

		_, err := NewClient(2*time.Second, log).FetchPayEndpoint(context.Background(), srv.URL)
		assert.Error(t, err)
	})

	t.Run("non-200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := NewClient(2*time.Second, log).FetchPayEndpoint(context.Background(), srv.URL)
		assert.Error(t, err)
	})
}

func TestRequestInvoice(t *testing.T) {
	log := zap.NewNop()

	t.Run("success", func(t *testing.T) {
		var gotAmount, gotNostr string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAmount = r.URL.Query().Get("amount")
			gotNostr = r.URL.Query().Get("nostr")
			_ = json.NewEncoder(w).Encode(map[string]string{"pr": "lnbc100n1pvjluezpp5qqqsyq"})
		}))
		defer srv.Close()

		pr, err := NewClient(2*time.Second, log).RequestInvoice(context.Background(), srv.URL, 100000, []byte(`{"kind":9734}`))
		require.NoError(t, err)
		assert.Equal(t, "lnbc100n1pvjluezpp5qqqsyq", pr)
		assert.Equal(t, "100000", gotAmount)
		assert.JSONEq(t, `{"kind":9734}`, gotNostr)
	})

	t.Run("error status with reason", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "ERROR", "reason": "amount too low"})
		}))
		defer srv.Close()

		_, err := NewClient(2*time.Second, log).RequestInvoice(context.Background(), srv.URL, 1, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "amount too low")
	})

	t.Run("missing invoice field", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "OK"})
		}))
		defer srv.Close()

		_, err := NewClient(2*time.Second, log).RequestInvoice(context.Background(), srv.URL, 1000, nil)
		assert.Error(t, err)
	})
}
