package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/bech32"
	gonostr "github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zapchat/backend/internal/config"
	"github.com/zapchat/backend/internal/db"
	"github.com/zapchat/backend/internal/repositories"
)

const (
	testSecretKey = "0000000000000000000000000000000000000000000000000000000000000001"
	testBotPubkey = "c4899d1312a7ccf42cc4bfd0559826d20f7564293de4588cb5744a2cf7fe2d18"
)

func testConfig() *config.Config {
	return &config.Config{
		RelayURLs:              []string{"wss://relay.test"},
		BotPubkey:              testBotPubkey,
		ProfileQueryTimeout:    time.Second,
		ReceiptQueryTimeout:    time.Second,
		ReceiptFetchLimit:      100,
		ReceiptCacheTTL:        time.Second,
		ConnectionProbeTimeout: 100 * time.Millisecond,
		PayTimeout:             time.Second,
		PublishTimeout:         time.Second,
		BalanceQueryTimeout:    time.Second,
		BalancePollAttempts:    3,
		BalancePollInterval:    time.Millisecond,
		BalanceLookbackWindow:  5 * time.Minute,
		BalanceCacheTTL:        time.Second,
		BalanceRefreshInterval: time.Minute,
	}
}

type fakeRelay struct {
	queryFn   func(ctx context.Context, filters gonostr.Filters) ([]*gonostr.Event, error)
	publishFn func(ctx context.Context, ev gonostr.Event) error

	queries   int
	published []gonostr.Event
}

func (f *fakeRelay) Query(ctx context.Context, filters gonostr.Filters) ([]*gonostr.Event, error) {
	f.queries++
	if f.queryFn == nil {
		return nil, nil
	}
	return f.queryFn(ctx, filters)
}

func (f *fakeRelay) Publish(ctx context.Context, ev gonostr.Event) error {
	f.published = append(f.published, ev)
	if f.publishFn == nil {
		return nil
	}
	return f.publishFn(ctx, ev)
}

type fakeTransport struct {
	name     string
	preimage string
	err      error
	calls    int
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Pay(ctx context.Context, invoice string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.preimage, nil
}

type fakeLocalWallet struct {
	preimage  string
	enableErr error
	payErr    error
	payCalls  int
}

func (f *fakeLocalWallet) Enable(ctx context.Context) (LocalWallet, error) {
	if f.enableErr != nil {
		return nil, f.enableErr
	}
	return f, nil
}

func (f *fakeLocalWallet) SendPayment(ctx context.Context, invoice string) (string, error) {
	f.payCalls++
	if f.payErr != nil {
		return "", f.payErr
	}
	return f.preimage, nil
}

type fakeSigner struct {
	pubkey    string
	plaintext string
	decErr    error
}

func (f *fakeSigner) PublicKey() string { return f.pubkey }

func (f *fakeSigner) SignEvent(_ context.Context, ev *gonostr.Event) error {
	ev.PubKey = f.pubkey
	ev.ID = fmt.Sprintf("signed-%d", ev.Kind)
	ev.Sig = "sig"
	return nil
}

func (f *fakeSigner) Encrypt(_ context.Context, _, plaintext string) (string, error) {
	return plaintext, nil
}

func (f *fakeSigner) Decrypt(_ context.Context, _, _ string) (string, error) {
	if f.decErr != nil {
		return "", f.decErr
	}
	return f.plaintext, nil
}

func newTestWalletService(t *testing.T) *WalletService {
	t.Helper()
	log := zap.NewNop()
	database, err := db.NewBoltDB(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	repo, err := repositories.NewConnectionRepo(database)
	require.NoError(t, err)

	ws := NewWalletService(repo, testConfig(), log)
	ws.SetProbe(func(ctx context.Context, uri string) error { return nil })
	return ws
}

// encodeLNURL produces a lud06 value for an arbitrary URL so tests can point
// profiles at a local HTTP server.
func encodeLNURL(t *testing.T, rawURL string) string {
	t.Helper()
	converted, err := bech32.ConvertBits([]byte(rawURL), 8, 5, true)
	require.NoError(t, err)
	encoded, err := bech32.Encode("lnurl", converted)
	require.NoError(t, err)
	return encoded
}
