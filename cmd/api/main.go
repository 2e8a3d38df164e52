package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/p2p-exchange/backend/internal/config"
	"github.com/p2p-exchange/backend/internal/db"
	"github.com/p2p-exchange/backend/internal/events"
	apphttp "github.com/p2p-exchange/backend/internal/http"
	"github.com/p2p-exchange/backend/internal/http/handlers"
	"github.com/p2p-exchange/backend/internal/repositories"
	"github.com/p2p-exchange/backend/internal/resolver"
	"github.com/p2p-exchange/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	tradeRepo := repositories.NewTradeRepo(pool)
	disputeRepo := repositories.NewDisputeRepo(pool)
	eventRepo := repositories.NewEventRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	aggregator := resolver.NewAggregator(resolver.Config{
		PaymentWindow:        cfg.PaymentWindow,
		AutoResolveThreshold: cfg.AutoResolveThreshold,
		ReputationGap:        cfg.ReputationGap,
		MinTotalTrades:       cfg.MinTotalTrades,
		SuccessRateGap:       cfg.SuccessRateGap,
		EvidenceGap:          cfg.EvidenceGap,
		ResponseLatencyGap:   cfg.ResponseLatencyGap,
	})
	tradeService := services.NewTradeService(tradeRepo, eventRepo, publisher, log)
	disputeService := services.NewDisputeService(disputeRepo, tradeService, userRepo, aggregator, publisher, cfg.AppealWindow, log)

	// Handlers
	userHandler := handlers.NewUserHandler(userRepo, log)
	tradeHandler := handlers.NewTradeHandler(tradeService, log)
	disputeHandler := handlers.NewDisputeHandler(disputeService, log)
	adminHandler := handlers.NewAdminHandler(disputeService, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, userHandler, tradeHandler, disputeHandler, adminHandler, wsHub)

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
