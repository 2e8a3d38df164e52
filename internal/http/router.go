package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/p2p-exchange/backend/internal/config"
	"github.com/p2p-exchange/backend/internal/http/handlers"
	"github.com/p2p-exchange/backend/internal/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	userHandler *handlers.UserHandler,
	tradeHandler *handlers.TradeHandler,
	disputeHandler *handlers.DisputeHandler,
	adminHandler *handlers.AdminHandler,
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
	api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute))

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// User
	protected.Get("/me", userHandler.GetMe)
	protected.Get("/users/:id/reputation", userHandler.GetReputation)

	// Trades
	protected.Post("/trades", tradeHandler.CreateTrade)
	protected.Get("/trades", tradeHandler.ListTrades)
	protected.Get("/trades/:id", tradeHandler.GetTrade)
	protected.Post("/trades/:id/join", tradeHandler.JoinTrade)
	protected.Post("/trades/:id/fund", tradeHandler.FundEscrow)
	protected.Post("/trades/:id/confirm-payment", tradeHandler.ConfirmPayment)
	protected.Post("/trades/:id/release", tradeHandler.ReleaseFunds)
	protected.Post("/trades/:id/cancel", tradeHandler.CancelTrade)
	protected.Get("/trades/:id/events", tradeHandler.GetTradeEvents)
	protected.Post("/trades/:id/dispute", disputeHandler.RaiseDispute)

	// Disputes
	protected.Get("/disputes/:id", disputeHandler.GetDispute)
	protected.Get("/disputes/:id/evaluate", disputeHandler.Evaluate)
	protected.Post("/disputes/:id/evidence", disputeHandler.SubmitEvidence)
	protected.Post("/disputes/:id/messages", disputeHandler.SendMessage)
	protected.Post("/disputes/:id/accept", disputeHandler.AcceptResolution)
	protected.Post("/disputes/:id/appeal", disputeHandler.Appeal)

	// Admin adjudication
	admin := protected.Group("/admin", middleware.AdminMiddleware())
	admin.Get("/disputes", disputeHandler.ListDisputes)
	admin.Post("/disputes/:id/resolve", adminHandler.ResolveDispute)
	admin.Post("/disputes/:id/notes", adminHandler.AddNote)
	admin.Post("/disputes/:id/reevaluate", adminHandler.Reevaluate)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
