package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/project-tktt/request-relay/internal/domain"
	"github.com/project-tktt/request-relay/internal/logx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Consumer pops envelopes from the Redis list in FIFO order
type Consumer struct {
	client    *redis.Client
	queueName string
	timeout   time.Duration
	log       zerolog.Logger
}

// NewConsumer creates a new queue consumer. timeout bounds each blocking pop.
func NewConsumer(client *redis.Client, queueName string, timeout time.Duration, logger zerolog.Logger) *Consumer {
	if queueName == "" {
		queueName = DefaultQueue
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Consumer{
		client:    client,
		queueName: queueName,
		timeout:   timeout,
		log:       logx.Component(logger, "queue").With().Str("queue", queueName).Logger(),
	}
}

// Consume blocks for one envelope. It returns nil, nil when the wait times out.
func (c *Consumer) Consume(ctx context.Context) (*domain.RawJob, error) {
	result, err := c.client.BRPop(ctx, c.timeout, c.queueName).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("brpop: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}
	return decode(result[1])
}

// ConsumeBatch blocks for the first envelope, then drains up to maxBatch
// without blocking. Malformed entries are dropped and logged.
func (c *Consumer) ConsumeBatch(ctx context.Context, maxBatch int) ([]*domain.RawJob, error) {
	jobs := make([]*domain.RawJob, 0, maxBatch)

	first, err := c.client.BRPop(ctx, c.timeout, c.queueName).Result()
	if errors.Is(err, redis.Nil) {
		return jobs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("brpop: %w", err)
	}
	if len(first) >= 2 {
		jobs = c.appendDecoded(jobs, first[1])
	}

	for len(jobs) < maxBatch {
		raw, err := c.client.RPop(ctx, c.queueName).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return jobs, fmt.Errorf("rpop: %w", err)
		}
		jobs = c.appendDecoded(jobs, raw)
	}

	return jobs, nil
}

// Run hands each envelope to handler until ctx is cancelled.
// Handler errors are logged and do not stop the loop.
func (c *Consumer) Run(ctx context.Context, handler func(*domain.RawJob) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		job, err := c.Consume(ctx)
		if err != nil {
			return fmt.Errorf("consume: %w", err)
		}
		if job == nil {
			continue
		}

		if err := handler(job); err != nil {
			c.log.Error().Err(err).Str("job_id", job.ID).Msg("handler error")
		}
	}
}

func (c *Consumer) appendDecoded(jobs []*domain.RawJob, raw string) []*domain.RawJob {
	job, err := decode(raw)
	if err != nil {
		c.log.Warn().Err(err).Msg("dropping malformed envelope")
		return jobs
	}
	return append(jobs, job)
}

func decode(raw string) (*domain.RawJob, error) {
	var job domain.RawJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}
