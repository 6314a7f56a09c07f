package indexer

import (
	"context"
	"sort"
	"sync"

	"github.com/project-tktt/request-relay/internal/domain"
)

// MemoryStore keeps jobs in process. Used for local runs and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	jobs  map[string]*domain.Job
	order []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*domain.Job)}
}

// BulkIndex upserts jobs by ID
func (s *MemoryStore) BulkIndex(_ context.Context, jobs []*domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range jobs {
		if _, ok := s.jobs[job.ID]; !ok {
			s.order = append(s.order, job.ID)
		}
		cp := *job
		s.jobs[job.ID] = &cp
	}
	return nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs), nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]*domain.Job, error) {
	s.mu.RLock()
	out := make([]*domain.Job, 0, len(s.order))
	for _, id := range s.order {
		job := s.jobs[id]
		if f.Matches(job) {
			cp := *job
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{TotalJobs: len(s.jobs)}
	for _, job := range s.jobs {
		if job.Score >= HighScoreThreshold {
			st.HighScoreCount++
		}
		st.PotentialRevenue += job.Budget
	}
	return st, nil
}

func (s *MemoryStore) Close() error { return nil }
