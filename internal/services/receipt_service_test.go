package services

import (
	"context"
	"encoding/json"
	"testing"

	gonostr "github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zapchat/backend/internal/models"
)

const (
	senderA = "aaaa111111111111111111111111111111111111111111111111111111111111"
	senderB = "bbbb222222222222222222222222222222222222222222222222222222222222"
)

func receiptEvent(t *testing.T, id, sender string, at int64, tags gonostr.Tags, comment string, reqTags gonostr.Tags) *gonostr.Event {
	t.Helper()
	ev := &gonostr.Event{
		ID:        id,
		Kind:      kindZapReceipt,
		CreatedAt: gonostr.Timestamp(at),
		Tags:      tags,
	}
	if sender != "" {
		req := gonostr.Event{Kind: 9734, PubKey: sender, Content: comment, Tags: reqTags}
		desc, err := json.Marshal(req)
		require.NoError(t, err)
		ev.Tags = append(ev.Tags, gonostr.Tag{"description", string(desc)})
	}
	return ev
}

func TestParseReceiptAmountChain(t *testing.T) {
	// Receipt-level amount tag wins over everything.
	ev := receiptEvent(t, "r1", senderA, 100,
		gonostr.Tags{{"amount", "21000"}, {"bolt11", "lnbc100u1pjunused"}},
		"hi", gonostr.Tags{{"amount", "99000"}})
	rz, ok := ParseReceipt(ev)
	require.True(t, ok)
	assert.Equal(t, int64(21), rz.AmountSats)
	assert.Equal(t, senderA, rz.SenderPubkey)
	assert.Equal(t, "hi", rz.Comment)

	// Falls back to the embedded request's amount tag.
	ev = receiptEvent(t, "r2", senderA, 100,
		gonostr.Tags{{"bolt11", "lnbc100u1pjunused"}},
		"", gonostr.Tags{{"amount", "42000"}})
	rz, ok = ParseReceipt(ev)
	require.True(t, ok)
	assert.Equal(t, int64(42), rz.AmountSats)

	// Falls back to the bolt11 invoice amount.
	ev = receiptEvent(t, "r3", senderA, 100,
		gonostr.Tags{{"bolt11", "lnbc2500n1pjsomething"}},
		"", nil)
	rz, ok = ParseReceipt(ev)
	require.True(t, ok)
	assert.Equal(t, int64(250), rz.AmountSats)

	// Nothing extractable: kept with a zero amount.
	ev = receiptEvent(t, "r4", senderA, 100, nil, "", nil)
	rz, ok = ParseReceipt(ev)
	require.True(t, ok)
	assert.Zero(t, rz.AmountSats)
}

func TestParseReceiptSubSatTruncation(t *testing.T) {
	// 5999 msat is 5 sats, never 6.
	ev := receiptEvent(t, "r1", senderA, 100,
		gonostr.Tags{{"amount", "5999"}}, "", nil)
	rz, ok := ParseReceipt(ev)
	require.True(t, ok)
	assert.Equal(t, int64(5), rz.AmountSats)
}

func TestParseReceiptRequiresSender(t *testing.T) {
	// No description tag at all.
	ev := &gonostr.Event{ID: "r1", Kind: kindZapReceipt, Tags: gonostr.Tags{{"amount", "1000"}}}
	_, ok := ParseReceipt(ev)
	assert.False(t, ok)

	// Description present but not valid JSON.
	ev = &gonostr.Event{ID: "r2", Kind: kindZapReceipt, Tags: gonostr.Tags{{"description", "not json"}}}
	_, ok = ParseReceipt(ev)
	assert.False(t, ok)

	// Valid JSON with an empty pubkey.
	ev = &gonostr.Event{ID: "r3", Kind: kindZapReceipt, Tags: gonostr.Tags{{"description", `{"kind":9734}`}}}
	_, ok = ParseReceipt(ev)
	assert.False(t, ok)
}

func newTestReceiptService(relay *fakeRelay) *ReceiptService {
	return NewReceiptService(relay, nil, testConfig(), zap.NewNop())
}

func TestFetchReceiptsOrderingAndDedup(t *testing.T) {
	older := receiptEvent(t, "r1", senderA, 100, gonostr.Tags{{"amount", "1000"}}, "", nil)
	newer := receiptEvent(t, "r2", senderB, 200, gonostr.Tags{{"amount", "2000"}}, "", nil)
	dup := receiptEvent(t, "r2", senderB, 200, gonostr.Tags{{"amount", "2000"}}, "", nil)
	noSender := receiptEvent(t, "r3", "", 300, gonostr.Tags{{"amount", "9000"}}, "", nil)

	relay := &fakeRelay{
		queryFn: func(ctx context.Context, filters gonostr.Filters) ([]*gonostr.Event, error) {
			return []*gonostr.Event{older, newer, dup, noSender}, nil
		},
	}
	svc := newTestReceiptService(relay)

	receipts, err := svc.FetchReceipts(context.Background(), testRecipient, 0)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, "r2", receipts[0].ID, "newest first")
	assert.Equal(t, "r1", receipts[1].ID)
}

func TestFetchReceiptsRelayUnavailable(t *testing.T) {
	relay := &fakeRelay{
		queryFn: func(ctx context.Context, filters gonostr.Filters) ([]*gonostr.Event, error) {
			return nil, assert.AnError
		},
	}
	svc := newTestReceiptService(relay)

	receipts, err := svc.FetchReceipts(context.Background(), testRecipient, 0)
	require.NoError(t, err, "relay unavailability is not an error")
	assert.Empty(t, receipts)
}

func TestSummarize(t *testing.T) {
	receipts := []struct {
		id     string
		sender string
		amount string
	}{
		{"r1", senderA, "21000"},
		{"r2", senderA, "5000"},
		{"r3", senderB, "100000"},
	}

	var evs []*gonostr.Event
	for _, r := range receipts {
		evs = append(evs, receiptEvent(t, r.id, r.sender, 100, gonostr.Tags{{"amount", r.amount}}, "", nil))
	}

	var parsedReceipts []models.ReceivedZap
	for _, ev := range evs {
		p, ok := ParseReceipt(ev)
		require.True(t, ok)
		parsedReceipts = append(parsedReceipts, *p)
	}

	summary := Summarize(parsedReceipts, "")
	assert.Equal(t, int64(126), summary.TotalSats)
	assert.Equal(t, 3, summary.ZapCount)
	assert.Equal(t, 2, summary.UniqueSenders)

	filtered := Summarize(parsedReceipts, senderA)
	assert.Equal(t, int64(26), filtered.TotalSats)
	assert.Equal(t, 2, filtered.ZapCount)
	assert.Equal(t, 1, filtered.UniqueSenders)

	empty := Summarize(nil, "")
	assert.Zero(t, empty.TotalSats)
	assert.Zero(t, empty.ZapCount)
	assert.NotNil(t, empty.Receipts)
}

func TestAggregateWithoutCache(t *testing.T) {
	ev := receiptEvent(t, "r1", senderA, 100, gonostr.Tags{{"amount", "21000"}}, "", nil)
	relay := &fakeRelay{
		queryFn: func(ctx context.Context, filters gonostr.Filters) ([]*gonostr.Event, error) {
			return []*gonostr.Event{ev}, nil
		},
	}
	svc := newTestReceiptService(relay)

	summary, err := svc.Aggregate(context.Background(), testRecipient, "", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(21), summary.TotalSats)
	assert.Equal(t, 1, summary.ZapCount)
}
