package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p2p-exchange/backend/internal/config"
	"github.com/p2p-exchange/backend/internal/db"
	"github.com/p2p-exchange/backend/internal/events"
	"github.com/p2p-exchange/backend/internal/repositories"
	"github.com/p2p-exchange/backend/internal/resolver"
	"github.com/p2p-exchange/backend/internal/services"
	"go.uber.org/zap"
)

// The worker runs the periodic dispute sweeps: re-evaluating active
// disputes (so time-based signals like the payment window eventually fire
// without per-trade timers) and closing resolutions whose appeal window
// lapsed.
func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repos
	userRepo := repositories.NewUserRepo(pool)
	tradeRepo := repositories.NewTradeRepo(pool)
	disputeRepo := repositories.NewDisputeRepo(pool)
	eventRepo := repositories.NewEventRepo(pool)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
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

	log.Info("worker started",
		zap.Duration("reeval_interval", cfg.ReevalInterval),
		zap.Duration("appeal_sweep_interval", cfg.AppealSweepInterval))

	reevalTicker := time.NewTicker(cfg.ReevalInterval)
	appealTicker := time.NewTicker(cfg.AppealSweepInterval)
	defer reevalTicker.Stop()
	defer appealTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-reevalTicker.C:
			disputeService.ReevaluateActive(ctx)
		case <-appealTicker.C:
			disputeService.CloseLapsedAppeals(ctx)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}
