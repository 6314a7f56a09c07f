package indexer

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/project-tktt/request-relay/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgres_ListQuery(t *testing.T) {
	i := &PostgresIndexer{tableName: pq.QuoteIdentifier("buyer_requests")}

	query, args := i.listQuery(Filter{})
	assert.Equal(t, `SELECT `+pgColumns+` FROM "buyer_requests" ORDER BY score DESC, received_at DESC`, query)
	assert.Empty(t, args)

	query, args = i.listQuery(Filter{Category: "website", MinBudget: 50, MaxBudget: BudgetCap(9999), Limit: 20})
	assert.Equal(t, `SELECT `+pgColumns+` FROM "buyer_requests" WHERE category = $1 AND budget >= $2 AND budget <= $3 ORDER BY score DESC, received_at DESC LIMIT $4`, query)
	assert.Equal(t, []any{"website", 50, 9999, 20}, args)

	_, args = i.listQuery(Filter{Category: "all"})
	assert.Empty(t, args)

	query, args = i.listQuery(Filter{MaxBudget: BudgetCap(0)})
	assert.Equal(t, `SELECT `+pgColumns+` FROM "buyer_requests" WHERE budget <= $1 ORDER BY score DESC, received_at DESC`, query)
	assert.Equal(t, []any{0}, args)
}

// Runs against a live database when POSTGRES_TEST_URL is set
func TestPostgres_RoundTrip(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_URL")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}
	ctx := context.Background()
	table := "buyer_requests_test_" + time.Now().Format("150405")

	idx, err := NewPostgresIndexer(ctx, dsn, table, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = idx.db.Exec(`DROP TABLE IF EXISTS ` + idx.tableName)
		idx.Close()
	})

	jobs := sampleJobs()
	jobs[0].Tags = []string{"Mobile", "Quick"}
	jobs[0].ReceivedAt = time.Now().UTC().Truncate(time.Second)
	require.NoError(t, idx.BulkIndex(ctx, jobs))
	require.NoError(t, idx.BulkIndex(ctx, []*domain.Job{{ID: "2", Title: "Scraper v2", Category: "scraping", Budget: 80, Score: 20}}))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	list, err := idx.List(ctx, Filter{Category: "website"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "4", list[0].ID)
	assert.Equal(t, []string{"Mobile", "Quick"}, list[1].Tags)

	st, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalJobs: 4, HighScoreCount: 2, PotentialRevenue: 550}, st)
}
