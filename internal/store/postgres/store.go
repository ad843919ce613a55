// Package postgres provides the Postgres-backed intelligence store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"llmrank/internal/intel"
)

// defaultDomainLimit caps unbounded domain listings.
const defaultDomainLimit = 500

// defaultInsightLimit caps unbounded insight listings.
const defaultInsightLimit = 10

// Config controls the Postgres connection pool.
type Config struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Store persists domains and insights in Postgres.
type Store struct {
	pool dbPool
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database.url is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool dbPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies connectivity to the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const upsertDomainSQL = `
INSERT INTO domains (domain_name, category, score, insights_count)
VALUES ($1, $2, $3, $4)
ON CONFLICT (domain_name) DO UPDATE SET
	category = EXCLUDED.category,
	score = EXCLUDED.score,
	insights_count = EXCLUDED.insights_count,
	updated_at = now()`

// UpsertDomain inserts or fully refreshes one domain record.
func (s *Store) UpsertDomain(ctx context.Context, record intel.DomainRecord) error {
	if record.Domain == "" {
		return fmt.Errorf("domain name is required")
	}
	category := record.Category
	if category == "" {
		category = intel.Categorize(record.Domain)
	}
	if _, err := s.pool.Exec(ctx, upsertDomainSQL, record.Domain, category, record.Score, record.InsightsCount); err != nil {
		return fmt.Errorf("upsert domain: %w", err)
	}
	return nil
}

const seedDomainSQL = `
INSERT INTO domains (domain_name, category)
VALUES ($1, $2)
ON CONFLICT (domain_name) DO NOTHING`

// SeedDomains inserts the named domains if absent, returning the
// number actually created.
func (s *Store) SeedDomains(ctx context.Context, records []intel.DomainRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var created int64
	for _, record := range records {
		if record.Domain == "" {
			continue
		}
		category := record.Category
		if category == "" {
			category = intel.Categorize(record.Domain)
		}
		tag, err := tx.Exec(ctx, seedDomainSQL, record.Domain, category)
		if err != nil {
			return 0, fmt.Errorf("seed domain %s: %w", record.Domain, err)
		}
		created += tag.RowsAffected()
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}
	return created, nil
}

// rankedColumns selects domain fields plus the global rank computed
// over all domains by score. The rank survives category filters.
const rankedColumns = `
SELECT domain_name, category, score, insights_count, content_hash, rank, last_processed_at, created_at, updated_at
FROM (
	SELECT domain_name, category, score, insights_count, content_hash, last_processed_at, created_at, updated_at,
		ROW_NUMBER() OVER (ORDER BY score DESC, domain_name) AS rank
	FROM domains
) ranked`

const domainSQL = rankedColumns + `
WHERE domain_name = $1`

// Domain returns one record with its global rank populated.
func (s *Store) Domain(ctx context.Context, name string) (intel.DomainRecord, error) {
	row := s.pool.QueryRow(ctx, domainSQL, name)
	record, err := scanDomain(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return intel.DomainRecord{}, intel.ErrDomainNotFound
		}
		return intel.DomainRecord{}, fmt.Errorf("query domain: %w", err)
	}
	return record, nil
}

const domainsSQL = rankedColumns + `
ORDER BY rank
LIMIT $1`

const domainsByCategorySQL = rankedColumns + `
WHERE lower(category) = lower($1)
ORDER BY rank
LIMIT $2`

// Domains lists records ordered by global rank.
func (s *Store) Domains(ctx context.Context, filter intel.DomainFilter) ([]intel.DomainRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultDomainLimit
	}

	var (
		rows pgx.Rows
		err  error
	)
	if filter.Category != "" {
		rows, err = s.pool.Query(ctx, domainsByCategorySQL, filter.Category, limit)
	} else {
		rows, err = s.pool.Query(ctx, domainsSQL, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query domains: %w", err)
	}
	defer rows.Close()

	return collectDomains(rows)
}

const countDomainsSQL = `SELECT COUNT(*) FROM domains`

// CountDomains reports the total number of domain records.
func (s *Store) CountDomains(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, countDomainsSQL).Scan(&count); err != nil {
		return 0, fmt.Errorf("count domains: %w", err)
	}
	return count, nil
}

const searchDomainsSQL = rankedColumns + `
WHERE strpos(lower(domain_name), lower($1)) > 0
ORDER BY rank`

// SearchDomains returns every record whose name contains q
// (case-insensitive), ordered by rank.
func (s *Store) SearchDomains(ctx context.Context, q string) ([]intel.DomainRecord, error) {
	rows, err := s.pool.Query(ctx, searchDomainsSQL, q)
	if err != nil {
		return nil, fmt.Errorf("search domains: %w", err)
	}
	defer rows.Close()

	return collectDomains(rows)
}

const categoriesSQL = `
SELECT category, COUNT(*) AS domain_count, COALESCE(AVG(score), 0) AS avg_score
FROM domains
GROUP BY category
ORDER BY avg_score DESC, category`

const topDomainsSQL = `
SELECT category, domain_name
FROM (
	SELECT category, domain_name,
		ROW_NUMBER() OVER (PARTITION BY category ORDER BY score DESC, domain_name) AS rn
	FROM domains
) t
WHERE rn <= 5
ORDER BY category, rn`

// Categories aggregates per-category counts, averages, and top domains.
func (s *Store) Categories(ctx context.Context) ([]intel.CategorySummary, error) {
	rows, err := s.pool.Query(ctx, categoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var summaries []intel.CategorySummary
	for rows.Next() {
		var summary intel.CategorySummary
		if err := rows.Scan(&summary.Category, &summary.DomainCount, &summary.AvgScore); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	topRows, err := s.pool.Query(ctx, topDomainsSQL)
	if err != nil {
		return nil, fmt.Errorf("query top domains: %w", err)
	}
	defer topRows.Close()

	top := make(map[string][]string)
	for topRows.Next() {
		var category, domain string
		if err := topRows.Scan(&category, &domain); err != nil {
			return nil, fmt.Errorf("scan top domain: %w", err)
		}
		top[category] = append(top[category], domain)
	}
	if err := topRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top domains: %w", err)
	}

	for i := range summaries {
		summaries[i].TopDomains = top[summaries[i].Category]
	}
	return summaries, nil
}

const nextDomainSQL = `
SELECT domain_name, category, score, insights_count, content_hash, last_processed_at, created_at, updated_at
FROM domains
ORDER BY last_processed_at ASC NULLS FIRST, domain_name
LIMIT 1`

// NextDomain returns the least recently processed domain.
func (s *Store) NextDomain(ctx context.Context) (intel.DomainRecord, error) {
	row := s.pool.QueryRow(ctx, nextDomainSQL)
	record, err := scanDomainNoRank(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return intel.DomainRecord{}, intel.ErrNoDomains
		}
		return intel.DomainRecord{}, fmt.Errorf("query next domain: %w", err)
	}
	return record, nil
}

const markProcessedSQL = `
UPDATE domains
SET last_processed_at = $2,
	content_hash = CASE WHEN $3 = '' THEN content_hash ELSE $3 END,
	updated_at = now()
WHERE domain_name = $1`

// MarkProcessed stamps the processing time and content hash. An empty
// hash preserves the previous one.
func (s *Store) MarkProcessed(ctx context.Context, name, contentHash string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, markProcessedSQL, name, at, contentHash)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return intel.ErrDomainNotFound
	}
	return nil
}

const insertInsightSQL = `
INSERT INTO insights (id, domain_name, category, insight_type, content, quality_score, source_model, source_content_length, snapshot_uri, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const foldInsightScoreSQL = `
UPDATE domains
SET score = ((score * insights_count) + $2) / (insights_count + 1),
	insights_count = insights_count + 1,
	category = $3,
	updated_at = now()
WHERE domain_name = $1`

// SaveInsight stores the insight and folds its quality score into the
// domain's cumulative mean, both inside one transaction.
func (s *Store) SaveInsight(ctx context.Context, insight intel.Insight) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save insight: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, insertInsightSQL,
		insight.ID,
		insight.Domain,
		insight.Category,
		insight.Type,
		insight.Content,
		insight.QualityScore,
		insight.SourceModel,
		insight.SourceContentLength,
		insight.SnapshotURI,
		insight.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert insight: %w", err)
	}

	tag, err := tx.Exec(ctx, foldInsightScoreSQL, insight.Domain, insight.QualityScore*100, insight.Category)
	if err != nil {
		return fmt.Errorf("fold insight score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return intel.ErrDomainNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save insight: %w", err)
	}
	return nil
}

const insightsForDomainSQL = `
SELECT id, domain_name, category, insight_type, content, quality_score, source_model, source_content_length, snapshot_uri, created_at
FROM insights
WHERE domain_name = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`

// InsightsForDomain lists a domain's insights, newest first. A
// non-positive limit falls back to the serving default.
func (s *Store) InsightsForDomain(ctx context.Context, name string, limit int) ([]intel.Insight, error) {
	if limit <= 0 {
		limit = defaultInsightLimit
	}
	rows, err := s.pool.Query(ctx, insightsForDomainSQL, name, limit)
	if err != nil {
		return nil, fmt.Errorf("query insights: %w", err)
	}
	defer rows.Close()

	var insights []intel.Insight
	for rows.Next() {
		var insight intel.Insight
		if err := rows.Scan(
			&insight.ID,
			&insight.Domain,
			&insight.Category,
			&insight.Type,
			&insight.Content,
			&insight.QualityScore,
			&insight.SourceModel,
			&insight.SourceContentLength,
			&insight.SnapshotURI,
			&insight.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		insights = append(insights, insight)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate insights: %w", err)
	}
	return insights, nil
}

const pruneInsightsSQL = `
DELETE FROM insights
WHERE id IN (
	SELECT id FROM insights ORDER BY created_at DESC, id DESC OFFSET $1
)`

// PruneInsights deletes all but the newest keep insights, returning
// the number removed.
func (s *Store) PruneInsights(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	tag, err := s.pool.Exec(ctx, pruneInsightsSQL, keep)
	if err != nil {
		return 0, fmt.Errorf("prune insights: %w", err)
	}
	return tag.RowsAffected(), nil
}

const refreshScoresSQL = `
UPDATE domains
SET score = sub.new_score,
	insights_count = sub.new_count,
	updated_at = now()
FROM (
	SELECT d.domain_name,
		COALESCE(AVG(i.quality_score) * 100, 0) AS new_score,
		COUNT(i.id) AS new_count
	FROM domains d
	LEFT JOIN insights i ON i.domain_name = d.domain_name
	GROUP BY d.domain_name
) sub
WHERE domains.domain_name = sub.domain_name
	AND (domains.score IS DISTINCT FROM sub.new_score
		OR domains.insights_count IS DISTINCT FROM sub.new_count)`

// RefreshScores recomputes domain scores from surviving insights,
// returning the number of domains whose score or count changed.
func (s *Store) RefreshScores(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, refreshScoresSQL)
	if err != nil {
		return 0, fmt.Errorf("refresh scores: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanDomain(row pgx.Row) (intel.DomainRecord, error) {
	var record intel.DomainRecord
	err := row.Scan(
		&record.Domain,
		&record.Category,
		&record.Score,
		&record.InsightsCount,
		&record.ContentHash,
		&record.Rank,
		&record.LastProcessedAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	return record, err
}

func scanDomainNoRank(row pgx.Row) (intel.DomainRecord, error) {
	var record intel.DomainRecord
	err := row.Scan(
		&record.Domain,
		&record.Category,
		&record.Score,
		&record.InsightsCount,
		&record.ContentHash,
		&record.LastProcessedAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	return record, err
}

func collectDomains(rows pgx.Rows) ([]intel.DomainRecord, error) {
	var records []intel.DomainRecord
	for rows.Next() {
		record, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate domains: %w", err)
	}
	return records, nil
}
