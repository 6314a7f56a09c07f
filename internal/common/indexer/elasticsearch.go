package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/project-tktt/request-relay/internal/domain"
	"github.com/project-tktt/request-relay/internal/logx"
	"github.com/rs/zerolog"
)

// ElasticsearchIndexer indexes jobs to Elasticsearch
type ElasticsearchIndexer struct {
	client    *elasticsearch.Client
	indexName string
	log       zerolog.Logger
}

// NewElasticsearchIndexer creates a new Elasticsearch indexer
func NewElasticsearchIndexer(addresses []string, indexName string, logger zerolog.Logger) (*ElasticsearchIndexer, error) {
	cfg := elasticsearch.Config{
		Addresses: addresses,
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create es client: %w", err)
	}

	// Check connection
	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("es info: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("es error: %s", res.Status())
	}

	return &ElasticsearchIndexer{
		client:    client,
		indexName: indexName,
		log:       logx.Component(logger, "elasticsearch"),
	}, nil
}

// BulkIndex indexes multiple jobs at once
func (i *ElasticsearchIndexer) BulkIndex(ctx context.Context, jobs []*domain.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	var buf bytes.Buffer

	for _, job := range jobs {
		docBytes, err := json.Marshal(job)
		if err != nil {
			i.log.Error().Err(err).Str("job_id", job.ID).Msg("marshal job")
			continue
		}

		// Meta line
		meta := map[string]any{
			"index": map[string]any{
				"_index": i.indexName,
				"_id":    job.ID,
			},
		}
		metaBytes, _ := json.Marshal(meta)
		buf.Write(metaBytes)
		buf.WriteByte('\n')

		// Document line
		buf.Write(docBytes)
		buf.WriteByte('\n')
	}

	res, err := i.client.Bulk(bytes.NewReader(buf.Bytes()), i.client.Bulk.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk error: %s", res.Status())
	}

	// Parse response to check for individual errors
	var bulkRes struct {
		Errors bool `json:"errors"`
		Items  []struct {
			Index struct {
				ID     string `json:"_id"`
				Status int    `json:"status"`
				Error  struct {
					Type   string `json:"type"`
					Reason string `json:"reason"`
				} `json:"error"`
			} `json:"index"`
		} `json:"items"`
	}

	if err := json.NewDecoder(res.Body).Decode(&bulkRes); err != nil {
		return fmt.Errorf("parse bulk response: %w", err)
	}

	if bulkRes.Errors {
		for _, item := range bulkRes.Items {
			if item.Index.Status >= 400 {
				i.log.Error().
					Str("job_id", item.Index.ID).
					Str("type", item.Index.Error.Type).
					Msg(item.Index.Error.Reason)
			}
		}
	}

	return nil
}

func (i *ElasticsearchIndexer) Count(ctx context.Context) (int, error) {
	res, err := i.client.Count(
		i.client.Count.WithContext(ctx),
		i.client.Count.WithIndex(i.indexName),
	)
	if err != nil {
		return 0, fmt.Errorf("count request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("count error: %s", res.Status())
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("parse count response: %w", err)
	}
	return body.Count, nil
}

// searchQuery turns f into a bool filter query sorted by score
func searchQuery(f Filter) map[string]any {
	var filters []map[string]any
	if !f.anyCategory() {
		filters = append(filters, map[string]any{"term": map[string]any{"category": f.Category}})
	}
	budget := map[string]any{}
	if f.MinBudget > 0 {
		budget["gte"] = f.MinBudget
	}
	if f.MaxBudget != nil {
		budget["lte"] = *f.MaxBudget
	}
	if len(budget) > 0 {
		filters = append(filters, map[string]any{"range": map[string]any{"budget": budget}})
	}

	size := f.Limit
	if size <= 0 {
		size = 1000
	}

	query := map[string]any{"match_all": map[string]any{}}
	if len(filters) > 0 {
		query = map[string]any{"bool": map[string]any{"filter": filters}}
	}

	return map[string]any{
		"query": query,
		"sort":  []any{map[string]any{"score": "desc"}},
		"size":  size,
	}
}

func (i *ElasticsearchIndexer) search(ctx context.Context, body map[string]any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.indexName),
		i.client.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("search error: %s", res.Status())
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("parse search response: %w", err)
	}
	return nil
}

func (i *ElasticsearchIndexer) List(ctx context.Context, f Filter) ([]*domain.Job, error) {
	var body struct {
		Hits struct {
			Hits []struct {
				Source domain.Job `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := i.search(ctx, searchQuery(f), &body); err != nil {
		return nil, err
	}

	jobs := make([]*domain.Job, 0, len(body.Hits.Hits))
	for _, h := range body.Hits.Hits {
		job := h.Source
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

func (i *ElasticsearchIndexer) Stats(ctx context.Context) (Stats, error) {
	query := map[string]any{
		"size":             0,
		"track_total_hits": true,
		"aggs": map[string]any{
			"high_score": map[string]any{
				"filter": map[string]any{"range": map[string]any{"score": map[string]any{"gte": HighScoreThreshold}}},
			},
			"revenue": map[string]any{
				"sum": map[string]any{"field": "budget"},
			},
		},
	}

	var body struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
		} `json:"hits"`
		Aggregations struct {
			HighScore struct {
				DocCount int `json:"doc_count"`
			} `json:"high_score"`
			Revenue struct {
				Value float64 `json:"value"`
			} `json:"revenue"`
		} `json:"aggregations"`
	}
	if err := i.search(ctx, query, &body); err != nil {
		return Stats{}, err
	}

	return Stats{
		TotalJobs:        body.Hits.Total.Value,
		HighScoreCount:   body.Aggregations.HighScore.DocCount,
		PotentialRevenue: int(body.Aggregations.Revenue.Value),
	}, nil
}

// EnsureIndex creates the index with its mapping if it doesn't exist
func (i *ElasticsearchIndexer) EnsureIndex(ctx context.Context) error {
	res, err := i.client.Indices.Exists([]string{i.indexName}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == 200 {
		return nil // Index already exists
	}

	mapping := `{
		"settings": {
			"analysis": {
				"analyzer": {
					"folding_analyzer": {
						"type": "custom",
						"tokenizer": "standard",
						"filter": ["lowercase", "asciifolding"]
					}
				}
			}
		},
		"mappings": {
			"properties": {
				"id": {"type": "keyword"},
				"title": {
					"type": "text",
					"analyzer": "folding_analyzer",
					"fields": {"keyword": {"type": "keyword"}}
				},
				"description": {"type": "text", "analyzer": "folding_analyzer"},
				"budget": {"type": "integer"},
				"category": {"type": "keyword"},
				"effort": {"type": "float"},
				"tags": {"type": "keyword"},
				"score": {"type": "integer"},
				"proposal": {"type": "text", "index": false},
				"source": {"type": "keyword"},
				"received_at": {"type": "date"},
				"indexed_at": {"type": "date"}
			}
		}
	}`

	res, err = i.client.Indices.Create(
		i.indexName,
		i.client.Indices.Create.WithContext(ctx),
		i.client.Indices.Create.WithBody(bytes.NewReader([]byte(mapping))),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("create index error: %s", res.Status())
	}

	return nil
}

// Close satisfies Store
func (i *ElasticsearchIndexer) Close() error {
	return nil
}
