package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	gonostr "github.com/nbd-wtf/go-nostr"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zapchat/backend/internal/config"
	"github.com/zapchat/backend/internal/db"
	"github.com/zapchat/backend/internal/events"
	"github.com/zapchat/backend/internal/nostr"
	"github.com/zapchat/backend/internal/services"
)

const (
	redisCursor    = "receipt-indexer:cursor"
	redisProcessed = "receipt-indexer:receipt:"
	processedTTL   = 7 * 24 * time.Hour
	kindZapReceipt = 9735
)

// The indexer tails the relay set for zap receipts addressed to the watched
// pubkey and republishes each one, once, onto the event bus. Relays offer no
// exactly-once delivery, so dedup keys in redis carry the burden.
func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.WatchPubkey == "" {
		log.Fatal("WATCH_PUBKEY is required")
	}

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	relayPool := nostr.NewPool(cfg.RelayURLs, log)
	defer relayPool.Close()

	publisher := events.NewRedisPublisher(rdb, log)

	log.Info("receipt indexer started",
		zap.String("watch_pubkey", cfg.WatchPubkey),
		zap.Strings("relays", cfg.RelayURLs),
	)

	ticker := time.NewTicker(cfg.IndexerPollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if err := pollAndProcess(ctx, cfg, relayPool, publisher, rdb, log); err != nil {
				log.Error("poll cycle failed", zap.Error(err))
			}
		case <-sigCh:
			log.Info("shutting down receipt indexer")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func loadCursor(ctx context.Context, rdb *redis.Client) gonostr.Timestamp {
	raw, err := rdb.Get(ctx, redisCursor).Result()
	if err != nil {
		return gonostr.Now()
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return gonostr.Now()
	}
	return gonostr.Timestamp(ts)
}

func pollAndProcess(
	ctx context.Context,
	cfg *config.Config,
	relay nostr.RelayClient,
	publisher events.Publisher,
	rdb *redis.Client,
	log *zap.Logger,
) error {
	// A one-minute overlap behind the cursor absorbs relays that deliver
	// events late; the dedup keys swallow the resulting repeats.
	cursor := loadCursor(ctx, rdb)
	since := cursor - 60

	qctx, cancel := context.WithTimeout(ctx, cfg.ReceiptQueryTimeout)
	defer cancel()

	evs, err := relay.Query(qctx, gonostr.Filters{{
		Kinds: []int{kindZapReceipt},
		Tags:  gonostr.TagMap{"p": []string{cfg.WatchPubkey}},
		Since: &since,
		Limit: cfg.ReceiptFetchLimit,
	}})
	if err != nil {
		return fmt.Errorf("query receipts: %w", err)
	}

	maxSeen := cursor
	for _, ev := range evs {
		if ev == nil {
			continue
		}
		if ev.CreatedAt > maxSeen {
			maxSeen = ev.CreatedAt
		}

		set, err := rdb.SetNX(ctx, redisProcessed+ev.ID, 1, processedTTL).Result()
		if err != nil {
			log.Warn("dedup check failed", zap.String("id", ev.ID), zap.Error(err))
			continue
		}
		if !set {
			continue
		}

		rz, ok := services.ParseReceipt(ev)
		if !ok {
			log.Debug("skipping receipt without a derivable sender", zap.String("id", ev.ID))
			continue
		}

		if err := publisher.Publish(ctx, "events:receipts", events.Event{
			Type: events.EventReceiptObserved,
			Payload: map[string]any{
				"id":          rz.ID,
				"recipient":   cfg.WatchPubkey,
				"sender":      rz.SenderPubkey,
				"amount_sats": rz.AmountSats,
				"comment":     rz.Comment,
				"timestamp":   rz.Timestamp,
			},
		}); err != nil {
			log.Error("failed to publish receipt event", zap.String("id", ev.ID), zap.Error(err))
			continue
		}

		log.Info("receipt observed",
			zap.String("id", rz.ID),
			zap.Int64("amount_sats", rz.AmountSats),
		)
	}

	if maxSeen > cursor {
		if err := rdb.Set(ctx, redisCursor, strconv.FormatInt(int64(maxSeen), 10), 0).Err(); err != nil {
			log.Warn("failed to persist cursor", zap.Error(err))
		}
	}
	return nil
}
