package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/project-tktt/request-relay/internal/domain"
	"github.com/project-tktt/request-relay/internal/queue"
)

// QueueSink enqueues records directly for the worker, bypassing the
// collector's HTTP endpoint. A record counts as delivered once pushed.
type QueueSink struct {
	publisher *queue.Publisher
	source    domain.JobSource
	now       func() time.Time
}

// NewQueueSink creates a sink that publishes through p
func NewQueueSink(p *queue.Publisher, source domain.JobSource) *QueueSink {
	if source == "" {
		source = domain.SourceQueue
	}
	return &QueueSink{publisher: p, source: source, now: time.Now}
}

func (s *QueueSink) Submit(ctx context.Context, rec domain.JobRecord) (bool, error) {
	env := &domain.RawJob{
		ID:         uuid.NewString(),
		Source:     string(s.source),
		Record:     rec,
		ReceivedAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, env); err != nil {
		return false, err
	}
	return true, nil
}
