package indexer

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/project-tktt/request-relay/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeES answers the handful of endpoints the indexer uses
type fakeES struct {
	mu          sync.Mutex
	bulkLines   []string
	lastSearch  map[string]any
	indexExists bool
	created     bool
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == "/":
		_, _ = io.WriteString(w, `{"name":"fake","cluster_name":"test","version":{"number":"8.19.0"},"tagline":"You Know, for Search"}`)
	case r.URL.Path == "/_bulk":
		sc := bufio.NewScanner(r.Body)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				f.bulkLines = append(f.bulkLines, line)
			}
		}
		_, _ = io.WriteString(w, `{"took":1,"errors":true,"items":[{"index":{"_id":"2","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad budget"}}}]}`)
	case strings.HasSuffix(r.URL.Path, "/_count"):
		_, _ = io.WriteString(w, `{"count":3}`)
	case strings.HasSuffix(r.URL.Path, "/_search"):
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.lastSearch = body
		if _, ok := body["aggs"]; ok {
			_, _ = io.WriteString(w, `{"hits":{"total":{"value":4,"relation":"eq"},"hits":[]},"aggregations":{"high_score":{"doc_count":2},"revenue":{"value":550.0}}}`)
			return
		}
		_, _ = io.WriteString(w, `{"hits":{"hits":[{"_source":{"id":"4","title":"Quote calculator","budget":200,"category":"website","score":80}},{"_source":{"id":"1","title":"Landing page","budget":120,"category":"website","score":41}}]}}`)
	case r.Method == http.MethodHead:
		if !f.indexExists {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut:
		f.created = true
		_, _ = io.WriteString(w, `{"acknowledged":true}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeES) snapshot() (lines []string, search map[string]any, created bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bulkLines...), f.lastSearch, f.created
}

func (f *fakeES) setIndex(exists bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexExists = exists
	f.created = false
}

func newFakeES(t *testing.T) (*fakeES, *ElasticsearchIndexer) {
	t.Helper()
	fake := &fakeES{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	idx, err := NewElasticsearchIndexer([]string{srv.URL}, "buyer_requests", zerolog.Nop())
	require.NoError(t, err)
	return fake, idx
}

func TestElasticsearch_BulkIndex(t *testing.T) {
	fake, idx := newFakeES(t)

	err := idx.BulkIndex(context.Background(), sampleJobs()[:2])
	require.NoError(t, err, "per-item failures are logged, not returned")

	lines, _, _ := fake.snapshot()
	require.Len(t, lines, 4)
	assert.JSONEq(t, `{"index":{"_index":"buyer_requests","_id":"1"}}`, lines[0])

	var doc domain.Job
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &doc))
	assert.Equal(t, "Landing page", doc.Title)
}

func TestElasticsearch_BulkIndexEmpty(t *testing.T) {
	fake, idx := newFakeES(t)
	require.NoError(t, idx.BulkIndex(context.Background(), nil))
	lines, _, _ := fake.snapshot()
	assert.Empty(t, lines)
}

func TestElasticsearch_CountListStats(t *testing.T) {
	fake, idx := newFakeES(t)
	ctx := context.Background()

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	jobs, err := idx.List(ctx, Filter{Category: "website", MinBudget: 100})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "4", jobs[0].ID)
	_, search, _ := fake.snapshot()
	assert.Contains(t, search, "sort")

	st, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalJobs: 4, HighScoreCount: 2, PotentialRevenue: 550}, st)
}

func TestElasticsearch_EnsureIndex(t *testing.T) {
	fake, idx := newFakeES(t)

	require.NoError(t, idx.EnsureIndex(context.Background()))
	_, _, created := fake.snapshot()
	assert.True(t, created)

	fake.setIndex(true)
	require.NoError(t, idx.EnsureIndex(context.Background()))
	_, _, created = fake.snapshot()
	assert.False(t, created)
}

func TestSearchQuery(t *testing.T) {
	q := searchQuery(Filter{})
	assert.Equal(t, map[string]any{"match_all": map[string]any{}}, q["query"])
	assert.Equal(t, 1000, q["size"])

	q = searchQuery(Filter{Category: "writing", MinBudget: 50, MaxBudget: BudgetCap(200), Limit: 10})
	assert.Equal(t, 10, q["size"])
	filters := q["query"].(map[string]any)["bool"].(map[string]any)["filter"].([]map[string]any)
	require.Len(t, filters, 2)
	assert.Equal(t, map[string]any{"term": map[string]any{"category": "writing"}}, filters[0])
	assert.Equal(t, map[string]any{"range": map[string]any{"budget": map[string]any{"gte": 50, "lte": 200}}}, filters[1])

	q = searchQuery(Filter{MaxBudget: BudgetCap(0)})
	filters = q["query"].(map[string]any)["bool"].(map[string]any)["filter"].([]map[string]any)
	assert.Equal(t, []map[string]any{{"range": map[string]any{"budget": map[string]any{"lte": 0}}}}, filters)
}
