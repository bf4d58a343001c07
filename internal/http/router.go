package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zapchat/backend/internal/config"
	"github.com/zapchat/backend/internal/http/handlers"
	"github.com/zapchat/backend/internal/middleware"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	zapHandler *handlers.ZapHandler,
	walletHandler *handlers.WalletHandler,
	receiptHandler *handlers.ReceiptHandler,
	balanceHandler *handlers.BalanceHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/session", authHandler.CreateSession)

	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// Zaps
	protected.Post("/zaps", zapHandler.CreateZap)

	// Receipts and balance
	protected.Get("/receipts", receiptHandler.GetReceipts)
	protected.Get("/balance", balanceHandler.GetBalance)

	// Wallet connections
	protected.Get("/wallet/connections", walletHandler.ListWallets)
	protected.Post("/wallet/connections", walletHandler.AddWallet)
	protected.Delete("/wallet/connections", walletHandler.RemoveWallet)
	protected.Put("/wallet/connections/active", walletHandler.SetActiveWallet)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
