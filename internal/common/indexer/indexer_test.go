package indexer

import (
	"context"
	"testing"

	"github.com/project-tktt/request-relay/internal/config"
	"github.com/project-tktt/request-relay/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleJobs() []*domain.Job {
	return []*domain.Job{
		{ID: "1", Title: "Landing page", Category: "website", Budget: 120, Score: 41},
		{ID: "2", Title: "Scraper", Category: "scraping", Budget: 80, Score: 20},
		{ID: "3", Title: "Blog posts", Category: "writing", Budget: 150, Score: 75},
		{ID: "4", Title: "Quote calculator", Category: "website", Budget: 200, Score: 80},
	}
}

func TestFilter_Matches(t *testing.T) {
	job := &domain.Job{Category: "website", Budget: 120}

	tests := []struct {
		name string
		f    Filter
		want bool
	}{
		{"zero filter", Filter{}, true},
		{"all", Filter{Category: "all"}, true},
		{"category hit", Filter{Category: "website"}, true},
		{"category miss", Filter{Category: "writing"}, false},
		{"min ok", Filter{MinBudget: 120}, true},
		{"min too high", Filter{MinBudget: 121}, false},
		{"max ok", Filter{MaxBudget: BudgetCap(120)}, true},
		{"max too low", Filter{MaxBudget: BudgetCap(100)}, false},
		{"explicit zero max", Filter{MaxBudget: BudgetCap(0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.f.Matches(job))
		})
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.BulkIndex(ctx, sampleJobs()))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	jobs, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	assert.Equal(t, []string{"4", "3", "1", "2"}, ids)

	jobs, err = s.List(ctx, Filter{Category: "website", MaxBudget: BudgetCap(150)})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "1", jobs[0].ID)

	jobs, err = s.List(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalJobs: 4, HighScoreCount: 2, PotentialRevenue: 550}, st)
}

func TestMemoryStore_Upsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.BulkIndex(ctx, []*domain.Job{{ID: "1", Title: "old", Score: 10}}))
	require.NoError(t, s.BulkIndex(ctx, []*domain.Job{{ID: "1", Title: "new", Score: 10}}))

	jobs, _ := s.List(ctx, Filter{})
	require.Len(t, jobs, 1)
	assert.Equal(t, "new", jobs[0].Title)
}

func TestOpen(t *testing.T) {
	cfg := &config.Config{}

	s, err := Open(context.Background(), "memory", cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open(context.Background(), "mongo", cfg, zerolog.Nop())
	assert.Error(t, err)
}
