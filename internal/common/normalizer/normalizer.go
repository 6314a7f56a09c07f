package normalizer

import (
	"errors"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/project-tktt/request-relay/internal/domain"
)

// ErrUnsupportedCategory is returned for records outside every known category.
// The worker drops these.
var ErrUnsupportedCategory = errors.New("unsupported category")

// Normalizer converts RawJob to a categorised, scored Job
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a new normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// Normalize converts a RawJob to a Job
func (n *Normalizer) Normalize(raw *domain.RawJob) (*domain.Job, error) {
	if raw == nil {
		return nil, errors.New("nil raw job")
	}
	rec := raw.Record

	// Decode HTML entities left by the page
	title := strings.TrimSpace(html.UnescapeString(rec.Title))
	description := strings.TrimSpace(html.UnescapeString(rec.Description))
	if title == "" {
		return nil, errors.New("empty title")
	}

	category := Categorize(title, description)
	if category == CategoryOther {
		return nil, ErrUnsupportedCategory
	}

	job := &domain.Job{
		ID:          raw.ID,
		Title:       title,
		Description: description,
		Budget:      rec.Budget,
		Category:    category,
		Effort:      EstimateEffort(description),
		Tags:        ExtractTags(description),
		Source:      raw.Source,
		ReceivedAt:  raw.ReceivedAt,
		IndexedAt:   n.now().UTC(),
	}
	job.Score = CalculateScore(job.Budget, job.Description)
	job.Proposal = GenerateProposal(job)

	return job, nil
}

// NormalizeAll normalizes a batch, dropping records that fail, and returns
// the rest sorted by score, highest first.
func (n *Normalizer) NormalizeAll(raws []*domain.RawJob) []*domain.Job {
	jobs := make([]*domain.Job, 0, len(raws))
	for _, raw := range raws {
		job, err := n.Normalize(raw)
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	SortByScore(jobs)
	return jobs
}

// SortByScore orders jobs by score descending, keeping input order for ties
func SortByScore(jobs []*domain.Job) {
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].Score > jobs[j].Score
	})
}
