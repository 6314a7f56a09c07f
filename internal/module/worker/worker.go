package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/project-tktt/request-relay/internal/common/cleaner"
	"github.com/project-tktt/request-relay/internal/common/indexer"
	"github.com/project-tktt/request-relay/internal/common/normalizer"
	"github.com/project-tktt/request-relay/internal/domain"
	"github.com/project-tktt/request-relay/internal/logx"
	"github.com/project-tktt/request-relay/internal/queue"
	"github.com/rs/zerolog"
)

// Worker processes submitted records from the queue and indexes them to storage
type Worker struct {
	consumer   *queue.Consumer
	normalizer *normalizer.Normalizer
	cleaner    *cleaner.Cleaner
	indexer    indexer.Indexer
	log        zerolog.Logger

	batchSize   int
	concurrency int
}

// Config holds worker configuration
type Config struct {
	Concurrency int
	BatchSize   int
}

// NewWorker creates a new worker
func NewWorker(
	consumer *queue.Consumer,
	norm *normalizer.Normalizer,
	clean *cleaner.Cleaner,
	idx indexer.Indexer,
	cfg Config,
	logger zerolog.Logger,
) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	return &Worker{
		consumer:    consumer,
		normalizer:  norm,
		cleaner:     clean,
		indexer:     idx,
		log:         logx.Component(logger, "worker"),
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
	}
}

// Run starts the worker pool and blocks until ctx is done or a worker fails
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Int("workers", w.concurrency).Msg("starting worker pool")

	var wg sync.WaitGroup
	errChan := make(chan error, w.concurrency)

	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			if err := w.runSingle(ctx, workerID); err != nil {
				errChan <- fmt.Errorf("worker %d: %w", workerID, err)
			}
		}(i)
	}

	// Wait for all workers or context cancellation
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errChan:
		return err
	case <-done:
		return nil
	}
}

func (w *Worker) runSingle(ctx context.Context, workerID int) error {
	log := w.log.With().Int("worker_id", workerID).Logger()
	log.Debug().Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("worker stopping")
			return nil
		default:
		}

		// ConsumeBatch blocks on BRPOP for the first item
		rawJobs, err := w.consumer.ConsumeBatch(ctx, w.batchSize)
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Msg("consume")
			}
			continue
		}

		if len(rawJobs) == 0 {
			continue // BRPOP timeout
		}

		jobs := w.processJobs(rawJobs)
		if len(jobs) == 0 {
			continue
		}
		if err := w.indexer.BulkIndex(ctx, jobs); err != nil {
			log.Error().Err(err).Int("jobs", len(jobs)).Msg("index")
			continue
		}
		log.Info().Int("received", len(rawJobs)).Int("indexed", len(jobs)).Msg("batch indexed")
	}
}

// processJobs cleans and normalizes a batch. Records outside every category
// and records that fail to normalize are dropped.
func (w *Worker) processJobs(rawJobs []*domain.RawJob) []*domain.Job {
	jobs := make([]*domain.Job, 0, len(rawJobs))

	for _, raw := range rawJobs {
		raw.Record = w.cleaner.CleanRecord(raw.Record)

		job, err := w.normalizer.Normalize(raw)
		if errors.Is(err, normalizer.ErrUnsupportedCategory) {
			w.log.Debug().Str("job_id", raw.ID).Str("title", raw.Record.Title).Msg("skipping uncategorised job")
			continue
		}
		if err != nil {
			w.log.Warn().Err(err).Str("job_id", raw.ID).Msg("normalize")
			continue
		}
		jobs = append(jobs, job)
	}

	return jobs
}
