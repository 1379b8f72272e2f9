// Package postgres provides Postgres-backed persistence implementations.
//
// Expected schema:
//
//	CREATE TABLE articles (
//	    url             TEXT PRIMARY KEY,
//	    title           TEXT NOT NULL,
//	    content         TEXT NOT NULL,
//	    publish_date    TIMESTAMPTZ NOT NULL,
//	    source          TEXT NOT NULL,
//	    metadata        JSONB NOT NULL DEFAULT '{}',
//	    summary         TEXT NOT NULL DEFAULT '',
//	    entities        JSONB NOT NULL DEFAULT '[]',
//	    classification  TEXT NOT NULL DEFAULT '',
//	    sentiment_score INT NOT NULL DEFAULT 0,
//	    status          TEXT NOT NULL DEFAULT 'pending',
//	    scraped_at      TIMESTAMPTZ NOT NULL,
//	    analyzed_at     TIMESTAMPTZ
//	);
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"newswatch/internal/intel"
)

// ArticleStoreConfig controls the Postgres connection pool.
type ArticleStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// ArticleStore implements intel.ArticleStore on Postgres.
type ArticleStore struct {
	pool dbPool
}

// NewArticleStore connects a pool using the provided config.
func NewArticleStore(ctx context.Context, cfg ArticleStoreConfig) (*ArticleStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
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
	return &ArticleStore{pool: pool}, nil
}

// NewArticleStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewArticleStoreWithPool(pool dbPool) (*ArticleStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ArticleStore{pool: pool}, nil
}

// Close closes the underlying connection pool.
func (s *ArticleStore) Close() {
	s.pool.Close()
}

const articleColumns = `url, title, content, publish_date, source, metadata,
	summary, entities, classification, sentiment_score, status, scraped_at, analyzed_at`

// UpsertScraped inserts or replaces the row for the article URL. A
// replaced row loses its derived analysis fields and returns to pending.
func (s *ArticleStore) UpsertScraped(ctx context.Context, article intel.Article, scrapedAt time.Time) error {
	metadata, err := json.Marshal(article.Metadata)
	if err != nil {
		return fmt.Errorf("marshal article metadata: %w", err)
	}
	query := `
		INSERT INTO articles (url, title, content, publish_date, source, metadata, status, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (url) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			publish_date = EXCLUDED.publish_date,
			source = EXCLUDED.source,
			metadata = EXCLUDED.metadata,
			summary = '',
			entities = '[]',
			classification = '',
			sentiment_score = 0,
			status = EXCLUDED.status,
			scraped_at = EXCLUDED.scraped_at,
			analyzed_at = NULL;
	`
	_, err = s.pool.Exec(ctx, query,
		article.URL,
		article.Title,
		article.Content,
		article.PublishDate,
		article.Source,
		metadata,
		intel.StatusPending,
		scrapedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert article: %w", err)
	}
	return nil
}

// UpdateAnalysis records the analysis result and completes the row.
func (s *ArticleStore) UpdateAnalysis(ctx context.Context, url string, result intel.AnalysisResult, analyzedAt time.Time) error {
	entities, err := json.Marshal(result.Entities)
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}
	query := `
		UPDATE articles
		SET summary = $2, entities = $3, classification = $4,
			sentiment_score = $5, status = $6, analyzed_at = $7
		WHERE url = $1;
	`
	tag, err := s.pool.Exec(ctx, query,
		url, result.Summary, entities, result.Classification,
		result.SentimentScore, intel.StatusComplete, analyzedAt,
	)
	if err != nil {
		return fmt.Errorf("update analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return intel.ErrNotFound
	}
	return nil
}

// MarkFailed moves the row to failed and merges the reason into metadata.
func (s *ArticleStore) MarkFailed(ctx context.Context, url, reason string, failedAt time.Time) error {
	failure, err := json.Marshal(map[string]any{
		intel.MetaError:    reason,
		intel.MetaFailedAt: failedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal failure metadata: %w", err)
	}
	query := `
		UPDATE articles
		SET status = $2, metadata = metadata || $3::jsonb
		WHERE url = $1;
	`
	tag, err := s.pool.Exec(ctx, query, url, intel.StatusFailed, failure)
	if err != nil {
		return fmt.Errorf("mark article failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return intel.ErrNotFound
	}
	return nil
}

// FindByStatus returns up to limit rows in scrape order.
func (s *ArticleStore) FindByStatus(ctx context.Context, status intel.ArticleStatus, limit int) ([]intel.StoredArticle, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM articles
		WHERE status = $1
		ORDER BY scraped_at ASC, url ASC
		LIMIT $2;
	`, articleColumns)
	rows, err := s.pool.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("find articles by status: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// GetByURL returns the row for a URL or intel.ErrNotFound.
func (s *ArticleStore) GetByURL(ctx context.Context, url string) (intel.StoredArticle, error) {
	query := fmt.Sprintf(`SELECT %s FROM articles WHERE url = $1;`, articleColumns)
	row := s.pool.QueryRow(ctx, query, url)
	article, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return intel.StoredArticle{}, intel.ErrNotFound
		}
		return intel.StoredArticle{}, fmt.Errorf("get article: %w", err)
	}
	return article, nil
}

// List returns completed articles matching the filter, newest first,
// along with the total match count before pagination.
func (s *ArticleStore) List(ctx context.Context, filter intel.ListFilter) ([]intel.StoredArticle, int, error) {
	where, args := buildListWhere(filter)

	var total int
	countQuery := "SELECT COUNT(*) FROM articles " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}

	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	args = append(args, size, (page-1)*size)
	query := fmt.Sprintf(`SELECT %s FROM articles %s ORDER BY publish_date DESC, url ASC LIMIT $%d OFFSET $%d;`,
		articleColumns, where, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	articles, err := scanArticles(rows)
	if err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

// Stats counts rows by lifecycle state.
func (s *ArticleStore) Stats(ctx context.Context) (intel.Stats, error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'complete'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM articles;
	`
	var stats intel.Stats
	err := s.pool.QueryRow(ctx, query).Scan(&stats.Total, &stats.Pending, &stats.Complete, &stats.Failed)
	if err != nil {
		return intel.Stats{}, fmt.Errorf("count article stats: %w", err)
	}
	return stats, nil
}

// Ping verifies database connectivity.
func (s *ArticleStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// buildListWhere assembles the WHERE clause for List. The listing only
// ever exposes completed rows.
func buildListWhere(filter intel.ListFilter) (string, []any) {
	conditions := []string{"status = 'complete'"}
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.Classification != "" {
		add("classification = $%d", filter.Classification)
	}
	if filter.MinSentiment > 0 {
		add("sentiment_score >= $%d", filter.MinSentiment)
	}
	if filter.MaxSentiment > 0 {
		add("sentiment_score <= $%d", filter.MaxSentiment)
	}
	if filter.StartDate != nil {
		add("publish_date >= $%d", *filter.StartDate)
	}
	if filter.EndDate != nil {
		add("publish_date <= $%d", *filter.EndDate)
	}
	if filter.Search != "" {
		args = append(args, filter.Search)
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(title ILIKE '%%' || $%d || '%%' OR content ILIKE '%%' || $%d || '%%')", n, n))
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

func scanArticle(row pgx.Row) (intel.StoredArticle, error) {
	var (
		article      intel.StoredArticle
		metadataJSON []byte
		entitiesJSON []byte
	)
	err := row.Scan(
		&article.URL,
		&article.Title,
		&article.Content,
		&article.PublishDate,
		&article.Source,
		&metadataJSON,
		&article.Summary,
		&entitiesJSON,
		&article.Classification,
		&article.SentimentScore,
		&article.Status,
		&article.ScrapedAt,
		&article.AnalyzedAt,
	)
	if err != nil {
		return intel.StoredArticle{}, err
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &article.Metadata); err != nil {
			return intel.StoredArticle{}, fmt.Errorf("unmarshal article metadata: %w", err)
		}
	}
	if len(entitiesJSON) > 0 {
		if err := json.Unmarshal(entitiesJSON, &article.Entities); err != nil {
			return intel.StoredArticle{}, fmt.Errorf("unmarshal article entities: %w", err)
		}
	}
	return article, nil
}

func scanArticles(rows pgx.Rows) ([]intel.StoredArticle, error) {
	var articles []intel.StoredArticle
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article row: %w", err)
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate article rows: %w", err)
	}
	return articles, nil
}
