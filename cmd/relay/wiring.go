package main

import (
	"context"
	"fmt"

	"github.com/project-tktt/request-relay/internal/common/extractor"
	"github.com/project-tktt/request-relay/internal/config"
	"github.com/project-tktt/request-relay/internal/dispatch"
	"github.com/project-tktt/request-relay/internal/domain"
	"github.com/project-tktt/request-relay/internal/queue"
	"github.com/project-tktt/request-relay/internal/trigger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// relayDeps is everything one relay command needs
type relayDeps struct {
	pipeline *trigger.Pipeline
	loader   extractor.DocumentLoader
	redis    *redis.Client // nil until a command needs Redis
}

func (d *relayDeps) Close() {
	if d.redis != nil {
		_ = d.redis.Close()
	}
}

func buildPipeline(ctx context.Context, cfg *config.Config, src sourceFlags, logger zerolog.Logger) (*relayDeps, error) {
	profile, err := extractor.LoadProfile(cfg.Relay.ProfilePath)
	if err != nil {
		return nil, err
	}
	ext, err := extractor.NewFromProfile(profile, logger)
	if err != nil {
		return nil, err
	}

	loader, err := newLoader(cfg, src)
	if err != nil {
		return nil, err
	}

	deps := &relayDeps{loader: loader}

	var sink dispatch.Sink
	switch src.sink {
	case "http", "":
		sink = dispatch.NewHTTPSink(cfg.Relay.SinkURL, cfg.Relay.SinkTimeout)
	case "queue":
		rdb, err := connectRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		deps.redis = rdb
		sink = dispatch.NewQueueSink(queue.NewPublisher(rdb, cfg.Redis.JobQueue), domain.SourceQueue)
	default:
		return nil, fmt.Errorf("unknown sink %q", src.sink)
	}

	disp := dispatch.NewDispatcher(sink, dispatch.Config{Delay: cfg.Relay.SendDelay}, logger)
	deps.pipeline = trigger.NewPipeline(ext, disp, trigger.Config{SettleDelay: cfg.Relay.SettleDelay}, logger)

	logger.Info().
		Str("page", loader.Name()).
		Str("sink", src.sink).
		Int("card_selectors", len(profile.Cards)).
		Msg("relay ready")
	return deps, nil
}

func newLoader(cfg *config.Config, src sourceFlags) (extractor.DocumentLoader, error) {
	if src.file != "" {
		return extractor.NewFileLoader(src.file), nil
	}
	return extractor.NewCollyLoader(src.url, extractor.LoaderConfig{
		UserAgent:   cfg.Relay.UserAgent,
		ProxyURL:    cfg.Relay.ProxyURL,
		Timeout:     cfg.Relay.PageTimeout,
		CookieName:  cfg.Relay.SessionCookieName,
		CookieValue: cfg.Relay.SessionCookieValue,
	})
}

func connectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return rdb, nil
}

// openPreferences prefers the shared Redis store and falls back to the
// AUTO_SCRAPE setting when Redis is unreachable.
func openPreferences(ctx context.Context, cfg *config.Config, deps *relayDeps, logger zerolog.Logger) trigger.PreferenceStore {
	if deps.redis == nil {
		rdb, err := connectRedis(ctx, cfg)
		if err != nil {
			logger.Warn().Err(err).Bool("auto_scrape", cfg.Relay.AutoScrape).Msg("using local preference")
			return trigger.NewMemoryPreferences(map[string]bool{trigger.AutoScrapeKey: cfg.Relay.AutoScrape})
		}
		deps.redis = rdb
	}
	return trigger.NewRedisPreferences(deps.redis, cfg.Redis.PrefsKey)
}
