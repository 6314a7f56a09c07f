package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/project-tktt/request-relay/internal/common/cleaner"
	"github.com/project-tktt/request-relay/internal/common/indexer"
	"github.com/project-tktt/request-relay/internal/common/normalizer"
	"github.com/project-tktt/request-relay/internal/config"
	"github.com/project-tktt/request-relay/internal/logx"
	"github.com/project-tktt/request-relay/internal/module/worker"
	"github.com/project-tktt/request-relay/internal/queue"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger := logx.New(logx.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger.Info().Msg("starting job worker")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis connection failed")
	}
	logger.Info().Str("queue", cfg.Redis.JobQueue).Msg("redis connected")

	store, err := indexer.Open(ctx, cfg.Worker.Store, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.Worker.Store).Msg("store unavailable")
	}
	defer store.Close()

	consumer := queue.NewConsumer(rdb, cfg.Redis.JobQueue, 5*time.Second, logger)
	w := worker.NewWorker(consumer, normalizer.NewNormalizer(), cleaner.NewCleaner(), store, worker.Config{
		Concurrency: cfg.Worker.Concurrency,
		BatchSize:   cfg.Worker.BatchSize,
	}, logger)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup

	// queue -> clean -> normalize -> index
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("worker stopped")
		}
	}()

	<-sigChan
	logger.Info().Msg("shutdown signal received, stopping")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("graceful shutdown complete")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timeout, forcing exit")
	}
}
