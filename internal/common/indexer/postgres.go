package indexer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/project-tktt/request-relay/internal/domain"
	"github.com/project-tktt/request-relay/internal/logx"
	"github.com/rs/zerolog"
)

const pgColumns = `id, title, description, budget, category, effort, tags, score, proposal, source, received_at, indexed_at`

// PostgresIndexer indexes jobs to PostgreSQL
type PostgresIndexer struct {
	db        *sql.DB
	tableName string
	log       zerolog.Logger
}

// NewPostgresIndexer connects to PostgreSQL and creates the table if needed
func NewPostgresIndexer(ctx context.Context, connStr string, tableName string, logger zerolog.Logger) (*PostgresIndexer, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	indexer := &PostgresIndexer{
		db:        db,
		tableName: pq.QuoteIdentifier(tableName),
		log:       logx.Component(logger, "postgres"),
	}

	if err := indexer.ensureTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure table: %w", err)
	}

	return indexer, nil
}

// ensureTable creates the jobs table if it doesn't exist
func (i *PostgresIndexer) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			budget INTEGER NOT NULL DEFAULT 0,
			category TEXT,
			effort DOUBLE PRECISION,
			tags TEXT[],
			score INTEGER NOT NULL DEFAULT 0,
			proposal TEXT,
			source TEXT,
			received_at TIMESTAMP WITH TIME ZONE,
			indexed_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`, i.tableName)

	_, err := i.db.ExecContext(ctx, query)
	return err
}

func (i *PostgresIndexer) upsertQuery() string {
	return fmt.Sprintf(`
		INSERT INTO %s (`+pgColumns+`, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			budget = EXCLUDED.budget,
			category = EXCLUDED.category,
			effort = EXCLUDED.effort,
			tags = EXCLUDED.tags,
			score = EXCLUDED.score,
			proposal = EXCLUDED.proposal,
			source = EXCLUDED.source,
			received_at = EXCLUDED.received_at,
			indexed_at = EXCLUDED.indexed_at,
			updated_at = NOW()
	`, i.tableName)
}

// BulkIndex indexes multiple jobs at once using a transaction.
// Rows that fail are logged and skipped.
func (i *PostgresIndexer) BulkIndex(ctx context.Context, jobs []*domain.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, i.upsertQuery())
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, job := range jobs {
		_, err := stmt.ExecContext(ctx,
			job.ID, job.Title, job.Description, job.Budget, job.Category, job.Effort,
			pq.Array(job.Tags), job.Score, job.Proposal, job.Source, job.ReceivedAt, job.IndexedAt,
		)
		if err != nil {
			i.log.Error().Err(err).Str("job_id", job.ID).Msg("index job")
			continue
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func (i *PostgresIndexer) Count(ctx context.Context) (int, error) {
	var n int
	if err := i.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, i.tableName)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return n, nil
}

// listQuery builds the filtered SELECT and its arguments
func (i *PostgresIndexer) listQuery(f Filter) (string, []any) {
	var where []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if !f.anyCategory() {
		add("category = $%d", f.Category)
	}
	if f.MinBudget > 0 {
		add("budget >= $%d", f.MinBudget)
	}
	if f.MaxBudget != nil {
		add("budget <= $%d", *f.MaxBudget)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", pgColumns, i.tableName)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY score DESC, received_at DESC")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}

func (i *PostgresIndexer) List(ctx context.Context, f Filter) ([]*domain.Job, error) {
	query, args := i.listQuery(f)
	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		var (
			job         domain.Job
			description sql.NullString
			category    sql.NullString
			proposal    sql.NullString
			source      sql.NullString
			effort      sql.NullFloat64
			received    sql.NullTime
			indexed     sql.NullTime
		)
		if err := rows.Scan(&job.ID, &job.Title, &description, &job.Budget, &category, &effort,
			pq.Array(&job.Tags), &job.Score, &proposal, &source, &received, &indexed); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.Description = description.String
		job.Category = category.String
		job.Proposal = proposal.String
		job.Source = source.String
		job.Effort = effort.Float64
		job.ReceivedAt = received.Time
		job.IndexedAt = indexed.Time
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

func (i *PostgresIndexer) Stats(ctx context.Context) (Stats, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE score >= $1),
			COALESCE(SUM(budget), 0)
		FROM %s
	`, i.tableName)

	var st Stats
	if err := i.db.QueryRowContext(ctx, query, HighScoreThreshold).Scan(&st.TotalJobs, &st.HighScoreCount, &st.PotentialRevenue); err != nil {
		return Stats{}, fmt.Errorf("job stats: %w", err)
	}
	return st, nil
}

// Close closes the database connection
func (i *PostgresIndexer) Close() error {
	return i.db.Close()
}
