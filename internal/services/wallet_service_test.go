package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validURI(n byte) string {
	pubkey := testWalletPubkey[:63] + string('0'+n)
	return "nostr+walletconnect://" + pubkey + "?relay=wss://relay.wallet.test&secret=" + testWalletSecret
}

func TestAddConnectionRejectsBadPrefixWithoutProbe(t *testing.T) {
	ws := newTestWalletService(t)
	probed := false
	ws.SetProbe(func(ctx context.Context, uri string) error {
		probed = true
		return nil
	})

	_, err := ws.AddConnection(context.Background(), "https://notawallet.example", "x")
	assert.ErrorIs(t, err, ErrUnrecognizedURI)
	assert.False(t, probed, "malformed input must fail before any probe")
}

func TestAddConnectionDuplicateRejectedBeforeProbe(t *testing.T) {
	ws := newTestWalletService(t)
	uri := validURI(1)

	_, err := ws.AddConnection(context.Background(), uri, "first")
	require.NoError(t, err)

	probes := 0
	ws.SetProbe(func(ctx context.Context, uri string) error {
		probes++
		return nil
	})
	_, err = ws.AddConnection(context.Background(), uri, "again")
	assert.Error(t, err)
	assert.Zero(t, probes)
}

func TestAddConnectionProbeFailure(t *testing.T) {
	ws := newTestWalletService(t)
	ws.SetProbe(func(ctx context.Context, uri string) error {
		return errors.New("relay refused")
	})

	_, err := ws.AddConnection(context.Background(), validURI(1), "broken")
	require.Error(t, err)

	conns, err := ws.Connections(context.Background())
	require.NoError(t, err)
	assert.Empty(t, conns, "failed probe must not persist the connection")
}

func TestFirstConnectionBecomesActive(t *testing.T) {
	ws := newTestWalletService(t)
	ctx := context.Background()

	first := validURI(1)
	_, err := ws.AddConnection(ctx, first, "first")
	require.NoError(t, err)

	active, err := ws.ActiveConnection(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first, active.ConnectionString)

	// A second connection does not displace the active one.
	_, err = ws.AddConnection(ctx, validURI(2), "second")
	require.NoError(t, err)

	active, err = ws.ActiveConnection(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, active.ConnectionString)
}

func TestRemoveActiveConnectionPromotesRemaining(t *testing.T) {
	ws := newTestWalletService(t)
	ctx := context.Background()

	first := validURI(1)
	second := validURI(2)
	_, err := ws.AddConnection(ctx, first, "first")
	require.NoError(t, err)
	_, err = ws.AddConnection(ctx, second, "second")
	require.NoError(t, err)

	require.NoError(t, ws.RemoveConnection(ctx, first))

	active, err := ws.ActiveConnection(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second, active.ConnectionString)

	require.NoError(t, ws.RemoveConnection(ctx, second))

	active, err = ws.ActiveConnection(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestRemoveInactiveConnectionKeepsActive(t *testing.T) {
	ws := newTestWalletService(t)
	ctx := context.Background()

	first := validURI(1)
	second := validURI(2)
	_, err := ws.AddConnection(ctx, first, "first")
	require.NoError(t, err)
	_, err = ws.AddConnection(ctx, second, "second")
	require.NoError(t, err)

	require.NoError(t, ws.RemoveConnection(ctx, second))

	active, err := ws.ActiveConnection(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first, active.ConnectionString)
}

func TestSetActiveConnectionRejectsUnknown(t *testing.T) {
	ws := newTestWalletService(t)
	ctx := context.Background()

	err := ws.SetActiveConnection(ctx, validURI(9))
	assert.Error(t, err)

	uri := validURI(1)
	_, err = ws.AddConnection(ctx, uri, "w")
	require.NoError(t, err)
	assert.NoError(t, ws.SetActiveConnection(ctx, uri))
}

func TestActiveConnectionHealsMissingPointer(t *testing.T) {
	ws := newTestWalletService(t)
	ctx := context.Background()

	uri := validURI(1)
	_, err := ws.AddConnection(ctx, uri, "w")
	require.NoError(t, err)

	// Simulate a pointer left dangling by an out-of-band deletion.
	require.NoError(t, ws.repo.SetActive(""))

	active, err := ws.ActiveConnection(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, uri, active.ConnectionString)
}
