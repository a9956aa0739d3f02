package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/bloodlink/bloodlink-api/internal/config"
	"github.com/bloodlink/bloodlink-api/internal/repository/postgres"
	"github.com/bloodlink/bloodlink-api/pkg/logger"
	redisbroker "github.com/bloodlink/bloodlink-api/pkg/messaging/redis"
	"github.com/bloodlink/bloodlink-api/pkg/metrics"
	"github.com/bloodlink/bloodlink-api/pkg/worker"
)

// The relay worker drains the outbox table and publishes request
// lifecycle events to Redis for downstream consumers.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	outboxRepo := postgres.NewOutboxRepository(postgres.NewBaseRepository(db))

	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{URL: cfg.Redis.URL})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	processor := worker.NewOutboxProcessor(
		outboxRepo,
		broker,
		worker.OutboxProcessorConfig{
			BatchSize:    cfg.OutboxWorker.BatchSize,
			PollInterval: cfg.OutboxWorker.PollInterval,
			MaxRetries:   cfg.OutboxWorker.MaxRetries,
		},
		logger.NewLogger(nil),
		metrics.NewMetrics("bloodlink_worker"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go processor.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker...")
	cancel()
}
