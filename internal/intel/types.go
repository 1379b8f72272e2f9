// Package intel defines core types shared across subsystems.
package intel

import (
	"context"
	"time"
)

// ArticleStatus represents the lifecycle state of an ingested article.
type ArticleStatus string

// Article status values persisted in the article store. Complete and
// failed are terminal.
const (
	StatusPending  ArticleStatus = "pending"
	StatusComplete ArticleStatus = "complete"
	StatusFailed   ArticleStatus = "failed"
)

// Entity types the analysis schema accepts.
const (
	EntityCompany    = "company"
	EntityPerson     = "person"
	EntityProduct    = "product"
	EntityTechnology = "technology"
)

// Classifications the analysis schema accepts.
const (
	ClassCompetitiveNews  = "competitive_news"
	ClassPersonnelChange  = "personnel_change"
	ClassProductLaunch    = "product_launch"
	ClassMarketTrend      = "market_trend"
)

// ValidEntityType reports whether t is one of the four entity types.
func ValidEntityType(t string) bool {
	switch t {
	case EntityCompany, EntityPerson, EntityProduct, EntityTechnology:
		return true
	default:
		return false
	}
}

// ValidClassification reports whether c is one of the four classifications.
func ValidClassification(c string) bool {
	switch c {
	case ClassCompetitiveNews, ClassPersonnelChange, ClassProductLaunch, ClassMarketTrend:
		return true
	default:
		return false
	}
}

// Metadata keys recorded against articles.
const (
	MetaExtractionMethod = "extractionMethod"
	MetaContentTruncated = "contentTruncated"
	MetaProcessingTime   = "processingTime"
	MetaSnapshotURI      = "snapshotURI"
	MetaError            = "error"
	MetaFailedAt         = "failedAt"
)

// Article is a raw article produced by the extractor. The URL is the
// stable identity; re-extraction of the same URL replaces the stored row.
type Article struct {
	URL         string         `json:"url"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	PublishDate time.Time      `json:"publishDate"`
	Source      string         `json:"source"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Entity is a named entity extracted from article content.
type Entity struct {
	Text     string `json:"text"`
	Type     string `json:"type"`
	Mentions int    `json:"mentions"`
}

// AnalysisResult is the structured output of one inference pass.
type AnalysisResult struct {
	Summary        string   `json:"summary"`
	Entities       []Entity `json:"entities"`
	Classification string   `json:"classification"`
	SentimentScore int      `json:"sentimentScore"`
}

// StoredArticle is the persisted record: the raw article plus lifecycle
// and derived fields. AnalyzedAt is set only on the transition to
// complete; failure details live in Metadata under MetaError/MetaFailedAt.
type StoredArticle struct {
	Article
	Summary        string        `json:"summary"`
	Entities       []Entity      `json:"entities"`
	Classification string        `json:"classification"`
	SentimentScore int           `json:"sentimentScore"`
	Status         ArticleStatus `json:"status"`
	ScrapedAt      time.Time     `json:"scrapedAt"`
	AnalyzedAt     *time.Time    `json:"analyzedAt,omitempty"`
}

// SourceConfig describes one extraction source.
type SourceConfig struct {
	Name        string        `mapstructure:"name"`
	ListingURL  string        `mapstructure:"listing_url"`
	MaxArticles int           `mapstructure:"max_articles"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// RunReport summarizes one pipeline run.
type RunReport struct {
	RunID      string    `json:"run_id"`
	Source     string    `json:"source"`
	Discovered int       `json:"discovered"`
	Extracted  int       `json:"extracted"`
	Stored     int       `json:"stored"`
	Analyzed   int       `json:"analyzed"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Stats counts stored articles by lifecycle state.
type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Complete int `json:"complete"`
	Failed   int `json:"failed"`
}

// ListFilter narrows the read-only article listing. Zero values mean
// "not set"; sentiment bounds use 0 as unset since valid scores are 1-10.
type ListFilter struct {
	Page           int
	PageSize       int
	Classification string
	MinSentiment   int
	MaxSentiment   int
	StartDate      *time.Time
	EndDate        *time.Time
	Search         string
}

// Extractor turns a source into raw articles.
type Extractor interface {
	Discover(ctx context.Context) ([]string, error)
	ExtractOne(ctx context.Context, url string) (Article, error)
}

// Analyzer derives structured intelligence from a raw article.
type Analyzer interface {
	Analyze(ctx context.Context, article Article) (AnalysisResult, error)
}

// ArticleStore is the persistence surface the pipeline requires. Every
// operation touches a single row; no multi-row transactions are assumed.
type ArticleStore interface {
	UpsertScraped(ctx context.Context, article Article, scrapedAt time.Time) error
	UpdateAnalysis(ctx context.Context, url string, result AnalysisResult, analyzedAt time.Time) error
	MarkFailed(ctx context.Context, url string, reason string, failedAt time.Time) error
	FindByStatus(ctx context.Context, status ArticleStatus, limit int) ([]StoredArticle, error)
	GetByURL(ctx context.Context, url string) (StoredArticle, error)
	List(ctx context.Context, filter ListFilter) ([]StoredArticle, int, error)
	Stats(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
}

// SnapshotStore archives raw fetched page bodies.
type SnapshotStore interface {
	PutObject(ctx context.Context, path, contentType string, data []byte) (string, error)
}

// OutcomeEvent is published per article once analysis settles.
type OutcomeEvent struct {
	RunID          string        `json:"run_id"`
	URL            string        `json:"url"`
	Status         ArticleStatus `json:"status"`
	Classification string        `json:"classification,omitempty"`
	Error          string        `json:"error,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}

// EventPublisher delivers outcome events to interested consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event OutcomeEvent) error
	Close() error
}

// Clock abstracts time.Now so lifecycle timestamps are testable.
type Clock interface {
	Now() time.Time
}
