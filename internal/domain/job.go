package domain

import "time"

// Field limits applied to every extracted record.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 500
	MinDescriptionLength = 20
	DefaultBudget        = 100
)

// JobRecord is the normalized unit produced by the extractor and sent to a sink.
type JobRecord struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Budget      int    `json:"budget"`
}

// DeliverySummary aggregates the outcome of one dispatch run.
type DeliverySummary struct {
	Sent  int `json:"sent"`
	Total int `json:"total"`
}

// Failed returns the number of records that were not delivered.
func (s DeliverySummary) Failed() int {
	return s.Total - s.Sent
}

// RawJob is the queue envelope for a record accepted by the collector
type RawJob struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Record     JobRecord `json:"record"`
	ReceivedAt time.Time `json:"received_at"`
}

// Job is a record after categorisation and scoring, ready for indexing
type Job struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Budget      int       `json:"budget"`
	Category    string    `json:"category"`
	Effort      float64   `json:"effort"` // estimated hours
	Tags        []string  `json:"tags"`
	Score       int       `json:"score"` // 0-100
	Proposal    string    `json:"proposal"`
	Source      string    `json:"source"`
	ReceivedAt  time.Time `json:"received_at"`
	IndexedAt   time.Time `json:"indexed_at"`
}

// JobSource identifies where a record was captured
type JobSource string

const (
	SourceRelay  JobSource = "relay"
	SourceQueue  JobSource = "queue"
	SourceScrape JobSource = "scrape"
)
