// Package dispatch delivers extracted records to a sink, one at a time.
package dispatch

import (
	"context"
	"time"

	"github.com/project-tktt/request-relay/internal/domain"
	"github.com/project-tktt/request-relay/internal/logx"
	"github.com/rs/zerolog"
)

const DefaultDelay = 200 * time.Millisecond

// Config holds dispatcher configuration
type Config struct {
	// Pause between consecutive sends
	Delay time.Duration
}

// Dispatcher sends records sequentially with a fixed pause between attempts.
type Dispatcher struct {
	sink  Sink
	delay time.Duration
	log   zerolog.Logger

	sleep func(ctx context.Context, d time.Duration)
}

// NewDispatcher creates a dispatcher writing to sink
func NewDispatcher(sink Sink, cfg Config, logger zerolog.Logger) *Dispatcher {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	return &Dispatcher{
		sink:  sink,
		delay: cfg.Delay,
		log:   logx.Component(logger, "dispatcher"),
		sleep: sleepCtx,
	}
}

// SendJob makes exactly one delivery attempt. Errors are logged, never returned.
func (d *Dispatcher) SendJob(ctx context.Context, rec domain.JobRecord) bool {
	if err := ctx.Err(); err != nil {
		d.log.Warn().Err(err).Str("title", rec.Title).Msg("send skipped")
		return false
	}

	ok, err := d.sink.Submit(ctx, rec)
	if err != nil {
		d.log.Warn().Err(err).Str("title", rec.Title).Msg("send failed")
		return false
	}
	if !ok {
		d.log.Info().Str("title", rec.Title).Msg("sink did not accept record")
	}
	return ok
}

// SendAll delivers records in order and counts the accepted ones.
// One failed record never stops the rest.
func (d *Dispatcher) SendAll(ctx context.Context, records []domain.JobRecord) domain.DeliverySummary {
	summary := domain.DeliverySummary{Total: len(records)}

	for i, rec := range records {
		if i > 0 {
			d.sleep(ctx, d.delay)
		}
		if d.SendJob(ctx, rec) {
			summary.Sent++
		}
	}

	d.log.Info().Int("sent", summary.Sent).Int("total", summary.Total).Msg("dispatch finished")
	return summary
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
