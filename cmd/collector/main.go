package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/project-tktt/request-relay/internal/collector"
	"github.com/project-tktt/request-relay/internal/common/cleaner"
	"github.com/project-tktt/request-relay/internal/common/extractor"
	"github.com/project-tktt/request-relay/internal/common/indexer"
	"github.com/project-tktt/request-relay/internal/config"
	"github.com/project-tktt/request-relay/internal/logx"
	"github.com/project-tktt/request-relay/internal/queue"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger := logx.New(logx.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis connection failed")
	}

	store, err := indexer.Open(ctx, cfg.Collector.Store, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.Collector.Store).Msg("store unavailable")
	}
	defer store.Close()

	profile, err := extractor.LoadProfile(cfg.Relay.ProfilePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid selector profile")
	}
	ext, err := extractor.NewFromProfile(profile, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid selector profile")
	}
	scraper := collector.NewPageScraper(cfg.Relay.PageURL, extractor.LoaderConfig{
		UserAgent:   cfg.Relay.UserAgent,
		ProxyURL:    cfg.Relay.ProxyURL,
		Timeout:     cfg.Relay.PageTimeout,
		CookieName:  cfg.Relay.SessionCookieName,
		CookieValue: cfg.Relay.SessionCookieValue,
	}, ext)

	srv := collector.NewServer(cfg.Collector.Addr, queue.NewPublisher(rdb, cfg.Redis.JobQueue), store, cleaner.NewCleaner(), logger,
		collector.WithScraper(scraper),
		collector.WithSettings(collector.NewRedisSettings(rdb, cfg.Redis.PrefsKey)),
	)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr()).Str("store", cfg.Collector.Store).Msg("collector listening")
		errCh <- srv.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("collector failed")
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("shutdown timeout, forcing exit")
		return
	}
	logger.Info().Msg("graceful shutdown complete")
}
