package indexer

import (
	"context"
	"fmt"
	"strings"

	"github.com/project-tktt/request-relay/internal/config"
	"github.com/project-tktt/request-relay/internal/domain"
	"github.com/rs/zerolog"
)

// HighScoreThreshold is the score from which a job counts as a strong lead
const HighScoreThreshold = 70

// Indexer defines the interface for job indexing backends
type Indexer interface {
	// BulkIndex indexes multiple jobs at once
	BulkIndex(ctx context.Context, jobs []*domain.Job) error
}

// Store is an Indexer that the collector can read back from
type Store interface {
	Indexer

	// Count returns the number of stored jobs
	Count(ctx context.Context) (int, error)

	// List returns the jobs matching f, highest score first
	List(ctx context.Context, f Filter) ([]*domain.Job, error)

	// Stats summarises the stored jobs
	Stats(ctx context.Context) (Stats, error)

	Close() error
}

// Filter narrows a listing. Empty or "all" category matches every job;
// a nil MaxBudget means no upper bound. An explicit 0 is a real bound.
type Filter struct {
	Category  string
	MinBudget int
	MaxBudget *int
	Limit     int
}

// BudgetCap returns an upper budget bound for Filter.MaxBudget
func BudgetCap(n int) *int {
	return &n
}

func (f Filter) anyCategory() bool {
	return f.Category == "" || f.Category == "all"
}

// Matches reports whether job passes the filter
func (f Filter) Matches(job *domain.Job) bool {
	if !f.anyCategory() && job.Category != f.Category {
		return false
	}
	if job.Budget < f.MinBudget {
		return false
	}
	if f.MaxBudget != nil && job.Budget > *f.MaxBudget {
		return false
	}
	return true
}

// Stats is the dashboard summary
type Stats struct {
	TotalJobs        int `json:"total_jobs"`
	HighScoreCount   int `json:"high_score_count"`
	PotentialRevenue int `json:"potential_revenue"`
}

// Open connects the backend named by kind: postgres, elasticsearch or memory
func Open(ctx context.Context, kind string, cfg *config.Config, logger zerolog.Logger) (Store, error) {
	switch strings.ToLower(kind) {
	case "postgres", "pg", "":
		pg, err := NewPostgresIndexer(ctx, cfg.Postgres.ConnectionString, cfg.Postgres.TableName, logger)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case "elasticsearch", "es":
		es, err := NewElasticsearchIndexer(cfg.Elasticsearch.Addresses, cfg.Elasticsearch.Index, logger)
		if err != nil {
			return nil, err
		}
		if err := es.EnsureIndex(ctx); err != nil {
			return nil, fmt.Errorf("ensure index: %w", err)
		}
		return es, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}
}
