package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/project-tktt/request-relay/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultQueue is used when no queue name is configured
const DefaultQueue = "jobs:submitted"

// Publisher pushes accepted records onto a Redis list
type Publisher struct {
	client    *redis.Client
	queueName string
}

// NewPublisher creates a new queue publisher
func NewPublisher(client *redis.Client, queueName string) *Publisher {
	if queueName == "" {
		queueName = DefaultQueue
	}
	return &Publisher{
		client:    client,
		queueName: queueName,
	}
}

// Publish pushes a single envelope to the queue
func (p *Publisher) Publish(ctx context.Context, job *domain.RawJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if err := p.client.LPush(ctx, p.queueName, data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

// PublishBatch pushes several envelopes in one round trip
func (p *Publisher) PublishBatch(ctx context.Context, jobs []*domain.RawJob) error {
	if len(jobs) == 0 {
		return nil
	}

	pipe := p.client.Pipeline()
	for _, job := range jobs {
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("marshal job %s: %w", job.ID, err)
		}
		pipe.LPush(ctx, p.queueName, data)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pipeline exec: %w", err)
	}
	return nil
}

// QueueLength returns the number of envelopes waiting for the worker
func (p *Publisher) QueueLength(ctx context.Context) (int64, error) {
	return p.client.LLen(ctx, p.queueName).Result()
}
