package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	gonostr "github.com/nbd-wtf/go-nostr"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zapchat/backend/internal/config"
	"github.com/zapchat/backend/internal/lightning"
	"github.com/zapchat/backend/internal/models"
	"github.com/zapchat/backend/internal/nostr"
)

const kindZapReceipt = 9735

// ReceiptService reads zap receipts addressed to a pubkey from the relay
// set and folds them into per-recipient summaries, with a short-lived
// redis cache in front.
type ReceiptService struct {
	relay nostr.RelayClient
	rdb   *redis.Client
	cfg   *config.Config
	log   *zap.Logger
}

func NewReceiptService(relay nostr.RelayClient, rdb *redis.Client, cfg *config.Config, log *zap.Logger) *ReceiptService {
	return &ReceiptService{relay: relay, rdb: rdb, cfg: cfg, log: log}
}

// FetchReceipts queries relays for receipts tagged with the recipient,
// newest first, deduplicated by event ID. Relay unavailability yields an
// empty list: the receipt log lives on relays and showing nothing is the
// honest answer when they cannot be reached.
func (s *ReceiptService) FetchReceipts(ctx context.Context, recipient string, limit int) ([]models.ReceivedZap, error) {
	if limit <= 0 {
		limit = s.cfg.ReceiptFetchLimit
	}

	qctx, cancel := context.WithTimeout(ctx, s.cfg.ReceiptQueryTimeout)
	defer cancel()

	evs, err := s.relay.Query(qctx, gonostr.Filters{{
		Kinds: []int{kindZapReceipt},
		Tags:  gonostr.TagMap{"p": []string{recipient}},
		Limit: limit,
	}})
	if err != nil {
		s.log.Warn("receipt query failed", zap.Error(err))
		return nil, nil
	}

	sort.Slice(evs, func(i, j int) bool { return evs[i].CreatedAt > evs[j].CreatedAt })

	seen := make(map[string]bool, len(evs))
	receipts := make([]models.ReceivedZap, 0, len(evs))
	for _, ev := range evs {
		if ev == nil || seen[ev.ID] {
			continue
		}
		seen[ev.ID] = true
		rz, ok := ParseReceipt(ev)
		if !ok {
			s.log.Debug("dropping receipt without a derivable sender", zap.String("id", ev.ID))
			continue
		}
		if rz.AmountSats == 0 {
			s.log.Warn("receipt amount not extractable, counting as zero", zap.String("id", ev.ID))
		}
		receipts = append(receipts, *rz)
	}
	return receipts, nil
}

// ParseReceipt derives the sender and amount from a receipt event. The
// sender comes exclusively from the embedded zap request's claimed pubkey;
// a receipt with no derivable sender is dropped. The amount is resolved
// through a fallback chain: the receipt's own amount tag, the embedded
// request's amount tag, then the bolt11 invoice.
func ParseReceipt(ev *gonostr.Event) (*models.ReceivedZap, bool) {
	bolt11 := tagValue(ev.Tags, "bolt11")
	description := tagValue(ev.Tags, "description")

	var zapRequest *gonostr.Event
	if description != "" {
		var req gonostr.Event
		if err := json.Unmarshal([]byte(description), &req); err == nil {
			zapRequest = &req
		}
	}
	if zapRequest == nil || zapRequest.PubKey == "" {
		return nil, false
	}

	return &models.ReceivedZap{
		ID:           ev.ID,
		SenderPubkey: zapRequest.PubKey,
		AmountSats:   extractAmountSats(ev, zapRequest, bolt11),
		Comment:      zapRequest.Content,
		Timestamp:    int64(ev.CreatedAt),
		Bolt11:       bolt11,
		ZapRequest:   zapRequest,
	}, true
}

func extractAmountSats(receipt, zapRequest *gonostr.Event, bolt11 string) int64 {
	if msat, ok := parseMsatTag(receipt.Tags); ok {
		return msat / 1000
	}
	if msat, ok := parseMsatTag(zapRequest.Tags); ok {
		return msat / 1000
	}
	if bolt11 != "" {
		if sats, err := lightning.SatoshisFromBolt11(bolt11); err == nil {
			return sats
		}
	}
	return 0
}

func parseMsatTag(tags gonostr.Tags) (int64, bool) {
	raw := tagValue(tags, "amount")
	if raw == "" {
		return 0, false
	}
	var msat int64
	if _, err := fmt.Sscanf(raw, "%d", &msat); err != nil || msat < 0 {
		return 0, false
	}
	return msat, true
}

func tagValue(tags gonostr.Tags, name string) string {
	if t := tags.GetFirst([]string{name}); t != nil {
		return t.Value()
	}
	return ""
}

// Summarize folds receipts into totals, optionally restricted to a single
// sender. Zero-amount receipts count toward ZapCount but add nothing.
func Summarize(receipts []models.ReceivedZap, sender string) *models.ReceiptSummary {
	summary := &models.ReceiptSummary{Receipts: []models.ReceivedZap{}}
	senders := make(map[string]bool)
	for _, rz := range receipts {
		if sender != "" && rz.SenderPubkey != sender {
			continue
		}
		summary.Receipts = append(summary.Receipts, rz)
		summary.TotalSats += rz.AmountSats
		summary.ZapCount++
		senders[rz.SenderPubkey] = true
	}
	summary.UniqueSenders = len(senders)
	return summary
}

// Aggregate serves a summary for recipient (and optional sender filter),
// consulting the cache first.
func (s *ReceiptService) Aggregate(ctx context.Context, recipient, sender string, limit int) (*models.ReceiptSummary, error) {
	cacheKey := fmt.Sprintf("receipts:agg:%s:%s", recipient, sender)
	if s.rdb != nil {
		if data, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var cached models.ReceiptSummary
			if json.Unmarshal([]byte(data), &cached) == nil {
				return &cached, nil
			}
		}
	}

	receipts, err := s.FetchReceipts(ctx, recipient, limit)
	if err != nil {
		return nil, err
	}
	summary := Summarize(receipts, sender)

	if s.rdb != nil {
		if data, err := json.Marshal(summary); err == nil {
			_ = s.rdb.Set(ctx, cacheKey, data, s.cfg.ReceiptCacheTTL).Err()
		}
	}
	return summary, nil
}

// Invalidate drops every cached summary for the recipient. Called after a
// settled dispatch so the next read reflects the new receipt sooner.
func (s *ReceiptService) Invalidate(ctx context.Context, recipient string) {
	if s.rdb == nil {
		return
	}
	iter := s.rdb.Scan(ctx, 0, fmt.Sprintf("receipts:agg:%s:*", recipient), 0).Iterator()
	for iter.Next(ctx) {
		_ = s.rdb.Del(ctx, iter.Val()).Err()
	}
}
