package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"newswatch/internal/intel"
	"newswatch/internal/metrics"
	"newswatch/internal/textutil"
)

const (
	methodStatic   = "static"
	methodRendered = "rendered"
)

// renderFetcher is the rendered fallback strategy contract.
type renderFetcher interface {
	Render(ctx context.Context, url string) (renderedPage, error)
}

// Config controls the extraction pipeline stage.
type Config struct {
	Source         intel.SourceConfig
	MaxAttempts    int
	SnapshotPrefix string
	// BackoffUnit scales the exponential backoff between attempts.
	// Production uses one second; tests inject something tiny.
	BackoffUnit time.Duration
}

// Extractor implements intel.Extractor over a discovery source, a
// static fetch strategy, and an optional rendered fallback.
type Extractor struct {
	cfg       Config
	source    Source
	static    fetcher
	rendered  renderFetcher
	snapshots intel.SnapshotStore
	clock     intel.Clock
	logger    *zap.Logger
	sleep     func(time.Duration)
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithRendered enables the headless-browser fallback.
func WithRendered(r renderFetcher) Option {
	return func(e *Extractor) { e.rendered = r }
}

// WithSnapshots archives raw page markup for each extracted article.
func WithSnapshots(s intel.SnapshotStore) Option {
	return func(e *Extractor) { e.snapshots = s }
}

// WithSleep replaces the backoff sleep function.
func WithSleep(fn func(time.Duration)) Option {
	return func(e *Extractor) { e.sleep = fn }
}

// New builds an Extractor.
func New(cfg Config, source Source, static fetcher, clock intel.Clock, logger *zap.Logger, opts ...Option) *Extractor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.BackoffUnit <= 0 {
		cfg.BackoffUnit = time.Second
	}
	if cfg.SnapshotPrefix == "" {
		cfg.SnapshotPrefix = "snapshots"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Extractor{
		cfg:    cfg,
		source: source,
		static: static,
		clock:  clock,
		logger: logger,
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Discover lists candidate article URLs from the configured source.
func (e *Extractor) Discover(ctx context.Context) ([]string, error) {
	return e.source.Discover(ctx)
}

// ExtractOne extracts a single article, retrying the whole attempt
// (static plus fallback) up to the configured ceiling with exponential
// backoff between attempts.
func (e *Extractor) ExtractOne(ctx context.Context, url string) (intel.Article, error) {
	attempts := 0
	for {
		attempts++
		article, err := e.extractAttempt(ctx, url)
		if err == nil {
			return article, nil
		}
		if attempts >= e.cfg.MaxAttempts || ctx.Err() != nil {
			return intel.Article{}, &intel.ExtractionError{URL: url, Attempts: attempts, Err: err}
		}
		backoff := time.Duration(1<<uint(attempts)) * e.cfg.BackoffUnit
		e.logger.Warn("extraction attempt failed, retrying",
			zap.String("url", url),
			zap.Int("attempt", attempts),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		e.sleep(backoff)
	}
}

// extractAttempt runs one full extraction pass: static first, rendered
// fallback when the static pass yields no content.
func (e *Extractor) extractAttempt(ctx context.Context, url string) (intel.Article, error) {
	start := e.clock.Now()

	article, err := e.extractStatic(ctx, url)
	if err != nil {
		if e.rendered == nil {
			return intel.Article{}, err
		}
		e.logger.Info("static extraction empty, falling back to rendered",
			zap.String("url", url), zap.Error(err))
		article, err = e.extractRendered(ctx, url)
		if err != nil {
			return intel.Article{}, err
		}
	}

	elapsed := e.clock.Now().Sub(start)
	method, _ := article.Metadata[intel.MetaExtractionMethod].(string)
	article.Metadata[intel.MetaProcessingTime] = elapsed.Seconds()
	metrics.RecordExtraction(e.cfg.Source.Name, method, elapsed)

	e.logger.Info("extracted article",
		zap.String("url", url),
		zap.String("method", method),
		zap.Int("content_chars", len(article.Content)))
	return article, nil
}

func (e *Extractor) extractStatic(ctx context.Context, url string) (intel.Article, error) {
	body, err := e.static.Fetch(ctx, url)
	if err != nil {
		return intel.Article{}, err
	}
	page, err := parseStaticPage(body)
	if err != nil {
		return intel.Article{}, err
	}
	content := textutil.CleanText(page.Content)
	if content == "" {
		return intel.Article{}, fmt.Errorf("static extraction of %s: %w", url, intel.ErrEmptyContent)
	}
	article := e.buildArticle(url, page.Title, content, methodStatic)
	if !page.PublishedAt.IsZero() {
		article.PublishDate = page.PublishedAt
	}
	e.archiveSnapshot(ctx, &article, body)
	return article, nil
}

func (e *Extractor) extractRendered(ctx context.Context, url string) (intel.Article, error) {
	page, err := e.rendered.Render(ctx, url)
	if err != nil {
		return intel.Article{}, err
	}
	content := textutil.CleanText(page.Content)
	if content == "" {
		return intel.Article{}, fmt.Errorf("rendered extraction of %s: %w", url, intel.ErrEmptyContent)
	}
	article := e.buildArticle(url, page.Title, content, methodRendered)
	e.archiveSnapshot(ctx, &article, []byte(page.HTML))
	return article, nil
}

// buildArticle assembles the canonical article record. When the page
// carried no usable title one is derived from the content itself.
func (e *Extractor) buildArticle(url, title, content, method string) intel.Article {
	if title == "" {
		title = textutil.TitleFromContent(content)
	}
	return intel.Article{
		URL:         url,
		Title:       title,
		Content:     content,
		PublishDate: e.clock.Now(),
		Source:      e.cfg.Source.Name,
		Metadata: map[string]any{
			intel.MetaExtractionMethod: method,
			intel.MetaContentTruncated: false,
		},
	}
}

// archiveSnapshot stores the raw markup when an archive is configured.
// Archive failures are logged, never fatal.
func (e *Extractor) archiveSnapshot(ctx context.Context, article *intel.Article, raw []byte) {
	if e.snapshots == nil || len(raw) == 0 {
		return
	}
	sum := sha256.Sum256([]byte(article.URL))
	path := fmt.Sprintf("%s/%s/%s.html", e.cfg.SnapshotPrefix, e.cfg.Source.Name, hex.EncodeToString(sum[:8]))
	uri, err := e.snapshots.PutObject(ctx, path, "text/html", raw)
	if err != nil {
		e.logger.Warn("snapshot archive failed",
			zap.String("url", article.URL), zap.Error(err))
		return
	}
	article.Metadata[intel.MetaSnapshotURI] = uri
}
