package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	// Storage
	RedisURL string
	BoltPath string

	// Nostr
	RelayURLs           []string
	SecretKey           string // hex or nsec; the service user's signing key
	BotPubkey           string // counterparty that answers balance requests
	ProfileQueryTimeout time.Duration

	// Receipts
	ReceiptQueryTimeout time.Duration
	ReceiptFetchLimit   int
	ReceiptCacheTTL     time.Duration

	// Wallet connections / payment
	ConnectionProbeTimeout time.Duration
	PayTimeout             time.Duration
	PublishTimeout         time.Duration

	// Balance reconciliation
	BalanceQueryTimeout    time.Duration
	BalancePollAttempts    int
	BalancePollInterval    time.Duration
	BalanceLookbackWindow  time.Duration
	BalanceCacheTTL        time.Duration
	BalanceRefreshInterval time.Duration

	// Receipt indexer
	IndexerPollInterval time.Duration
	WatchPubkey         string // recipient whose receipts the indexer follows

	// Auth
	JWTSecret       string
	JWTExpiration   time.Duration
	AuthEventMaxAge time.Duration

	// Server
	APIPort string
}

func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		BoltPath: getEnv("BOLT_PATH", "zapchat.db"),

		RelayURLs:           parseRelayList(getEnv("RELAY_URLS", "wss://relay.nostr.band")),
		SecretKey:           getEnv("NOSTR_SECRET_KEY", ""),
		BotPubkey:           getEnv("BOT_PUBKEY", ""),
		ProfileQueryTimeout: getEnvDuration("PROFILE_QUERY_TIMEOUT_MS", 5000),

		ReceiptQueryTimeout: getEnvDuration("RECEIPT_QUERY_TIMEOUT_MS", 10000),
		ReceiptFetchLimit:   getEnvInt("RECEIPT_FETCH_LIMIT", 100),
		ReceiptCacheTTL:     getEnvDuration("RECEIPT_CACHE_TTL_MS", 30000),

		ConnectionProbeTimeout: getEnvDuration("CONNECTION_PROBE_TIMEOUT_MS", 10000),
		PayTimeout:             getEnvDuration("PAY_TIMEOUT_MS", 15000),
		PublishTimeout:         getEnvDuration("PUBLISH_TIMEOUT_MS", 5000),

		BalanceQueryTimeout:    getEnvDuration("BALANCE_QUERY_TIMEOUT_MS", 5000),
		BalancePollAttempts:    getEnvInt("BALANCE_POLL_ATTEMPTS", 8),
		BalancePollInterval:    getEnvDuration("BALANCE_POLL_INTERVAL_MS", 2000),
		BalanceLookbackWindow:  getEnvDuration("BALANCE_LOOKBACK_WINDOW_MS", 300000),
		BalanceCacheTTL:        getEnvDuration("BALANCE_CACHE_TTL_MS", 30000),
		BalanceRefreshInterval: getEnvDuration("BALANCE_REFRESH_INTERVAL_MS", 60000),

		IndexerPollInterval: getEnvDuration("INDEXER_POLL_INTERVAL_MS", 5000),
		WatchPubkey:         getEnv("WATCH_PUBKEY", ""),

		JWTSecret:       getEnv("JWT_SECRET", "change-me-in-production"),
		JWTExpiration:   time.Duration(getEnvInt("JWT_EXPIRATION_HOURS", 24)) * time.Hour,
		AuthEventMaxAge: getEnvDuration("AUTH_EVENT_MAX_AGE_MS", 300000),

		APIPort: getEnv("API_PORT", "3000"),
	}

	if cfg.WatchPubkey == "" {
		cfg.WatchPubkey = cfg.BotPubkey
	}

	return cfg
}

func (c *Config) Validate(log *zap.Logger) {
	if c.SecretKey == "" {
		log.Warn("NOSTR_SECRET_KEY is not set, zap dispatch and balance requests are unavailable")
	}
	if c.BotPubkey == "" {
		log.Warn("BOT_PUBKEY is not set, balance reconciliation is disabled")
	}
	if len(c.RelayURLs) == 0 {
		log.Warn("RELAY_URLS is empty")
	}
	if c.JWTSecret == "change-me-in-production" {
		log.Warn("JWT_SECRET is default, change in production")
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallbackMS int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackMS)) * time.Millisecond
}

func parseRelayList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var urls []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			urls = append(urls, p)
		}
	}
	return urls
}
