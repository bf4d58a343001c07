package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/zapchat/backend/internal/config"
	"github.com/zapchat/backend/internal/db"
	"github.com/zapchat/backend/internal/events"
	apphttp "github.com/zapchat/backend/internal/http"
	"github.com/zapchat/backend/internal/http/handlers"
	"github.com/zapchat/backend/internal/lightning"
	"github.com/zapchat/backend/internal/nostr"
	"github.com/zapchat/backend/internal/repositories"
	"github.com/zapchat/backend/internal/services"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Local store
	boltDB, err := db.NewBoltDB(cfg.BoltPath, log)
	if err != nil {
		log.Fatal("failed to open bolt store", zap.Error(err))
	}
	defer boltDB.Close()

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Nostr identity and relay pool
	var signer nostr.Signer
	if cfg.SecretKey != "" {
		s, err := nostr.NewLocalSigner(cfg.SecretKey)
		if err != nil {
			log.Fatal("invalid NOSTR_SECRET_KEY", zap.Error(err))
		}
		signer = s
	} else {
		log.Warn("no signing key configured, zap dispatch and balance will be unavailable")
	}

	relayPool := nostr.NewPool(cfg.RelayURLs, log)
	defer relayPool.Close()

	// Repositories
	connectionRepo, err := repositories.NewConnectionRepo(boltDB)
	if err != nil {
		log.Fatal("failed to init connection repo", zap.Error(err))
	}

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	lnClient := lightning.NewClient(cfg.PayTimeout, log)
	walletService := services.NewWalletService(connectionRepo, cfg, log)
	receiptService := services.NewReceiptService(relayPool, rdb, cfg, log)
	zapService := services.NewZapService(relayPool, signer, walletService, nil, lnClient, receiptService, publisher, cfg, log)
	balanceService := services.NewBalanceService(relayPool, signer, rdb, cfg, log)
	balanceService.StartRefresher(ctx)

	// Handlers
	authHandler := handlers.NewAuthHandler(cfg, log)
	zapHandler := handlers.NewZapHandler(zapService, log)
	walletHandler := handlers.NewWalletHandler(walletService, log)
	receiptHandler := handlers.NewReceiptHandler(receiptService, log)
	balanceHandler := handlers.NewBalanceHandler(balanceService, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	wsHub.Start(ctx)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, zapHandler, walletHandler, receiptHandler, balanceHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
