package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	retry "github.com/avast/retry-go"
	gonostr "github.com/nbd-wtf/go-nostr"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zapchat/backend/internal/config"
	"github.com/zapchat/backend/internal/models"
	"github.com/zapchat/backend/internal/nostr"
)

const (
	kindBalanceRequest = 1006
	kindEncryptedDM    = 4
)

// BalanceService reconciles the custodial balance held by the bot: it
// publishes a signed balance request, then polls for the bot's encrypted
// reply a bounded number of times. Exhaustion yields the zero-balance
// default, never an error.
type BalanceService struct {
	relay  nostr.RelayClient
	signer nostr.Signer
	rdb    *redis.Client
	cfg    *config.Config
	log    *zap.Logger
}

func NewBalanceService(relay nostr.RelayClient, signer nostr.Signer, rdb *redis.Client, cfg *config.Config, log *zap.Logger) *BalanceService {
	return &BalanceService{relay: relay, signer: signer, rdb: rdb, cfg: cfg, log: log}
}

type balancePayload struct {
	Balance      *float64          `json:"balance"`
	Timestamp    int64             `json:"timestamp"`
	Transactions []json.RawMessage `json:"transactions"`
}

// CurrentBalance returns the latest snapshot, serving from cache unless
// force is set.
func (s *BalanceService) CurrentBalance(ctx context.Context, force bool) (*models.BalanceSnapshot, error) {
	if s.signer == nil || s.cfg.BotPubkey == "" {
		return &models.BalanceSnapshot{AsOf: time.Now()}, nil
	}

	cacheKey := "balance:" + s.signer.PublicKey()
	if !force && s.rdb != nil {
		if data, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var snap models.BalanceSnapshot
			if json.Unmarshal([]byte(data), &snap) == nil {
				return &snap, nil
			}
		}
	}

	s.requestBalance(ctx)
	snap := s.pollForSnapshot(ctx)

	if s.rdb != nil {
		if data, err := json.Marshal(snap); err == nil {
			_ = s.rdb.Set(ctx, cacheKey, data, s.cfg.BalanceCacheTTL).Err()
		}
	}
	return snap, nil
}

// requestBalance publishes the signed request event. A failed publish is
// logged and the poll proceeds anyway: an earlier request may still get a
// reply within the lookback window.
func (s *BalanceService) requestBalance(ctx context.Context) {
	req := gonostr.Event{
		Kind:      kindBalanceRequest,
		CreatedAt: gonostr.Now(),
		Tags:      gonostr.Tags{{"balance"}, {"p", s.cfg.BotPubkey}},
	}
	if err := s.signer.SignEvent(ctx, &req); err != nil {
		s.log.Warn("could not sign balance request", zap.Error(err))
		return
	}

	pctx, cancel := context.WithTimeout(ctx, s.cfg.PublishTimeout)
	defer cancel()
	if err := s.relay.Publish(pctx, req); err != nil {
		s.log.Warn("balance request publish failed", zap.Error(err))
	}
}

func (s *BalanceService) pollForSnapshot(ctx context.Context) *models.BalanceSnapshot {
	var snap *models.BalanceSnapshot
	err := retry.Do(
		func() error {
			found, err := s.fetchSnapshot(ctx)
			if err != nil {
				return err
			}
			snap = found
			return nil
		},
		retry.Attempts(uint(s.cfg.BalancePollAttempts)),
		retry.Delay(s.cfg.BalancePollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil || snap == nil {
		s.log.Debug("no balance reply within poll window, reporting zero", zap.Error(err))
		return &models.BalanceSnapshot{AsOf: time.Now()}
	}
	return snap
}

// fetchSnapshot scans recent encrypted DMs from the bot, newest first, for
// the first one that decrypts and carries both a numeric balance and a
// transactions array. Anything else is skipped, not treated as an error.
func (s *BalanceService) fetchSnapshot(ctx context.Context) (*models.BalanceSnapshot, error) {
	since := gonostr.Timestamp(time.Now().Add(-s.cfg.BalanceLookbackWindow).Unix())

	qctx, cancel := context.WithTimeout(ctx, s.cfg.BalanceQueryTimeout)
	defer cancel()

	evs, err := s.relay.Query(qctx, gonostr.Filters{{
		Kinds:   []int{kindEncryptedDM},
		Authors: []string{s.cfg.BotPubkey},
		Tags:    gonostr.TagMap{"p": []string{s.signer.PublicKey()}},
		Since:   &since,
		Limit:   16,
	}})
	if err != nil {
		return nil, err
	}

	sort.Slice(evs, func(i, j int) bool { return evs[i].CreatedAt > evs[j].CreatedAt })

	for _, ev := range evs {
		plaintext, err := s.signer.Decrypt(ctx, s.cfg.BotPubkey, ev.Content)
		if err != nil {
			if errors.Is(err, nostr.ErrDecryptUnsupported) {
				return nil, retry.Unrecoverable(err)
			}
			continue
		}
		var payload balancePayload
		if err := json.Unmarshal([]byte(plaintext), &payload); err != nil {
			continue
		}
		if payload.Balance == nil || payload.Transactions == nil {
			continue
		}
		asOf := time.Unix(int64(ev.CreatedAt), 0)
		if payload.Timestamp > 0 {
			asOf = time.Unix(payload.Timestamp, 0)
		}
		return &models.BalanceSnapshot{
			ValueSats:    int64(*payload.Balance),
			AsOf:         asOf,
			Transactions: payload.Transactions,
		}, nil
	}
	return nil, fmt.Errorf("no valid balance reply yet")
}

// StartRefresher keeps the cached snapshot warm in the background until the
// context is canceled.
func (s *BalanceService) StartRefresher(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.BalanceRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.CurrentBalance(ctx, true); err != nil {
					s.log.Warn("background balance refresh failed", zap.Error(err))
				}
			}
		}
	}()
}
