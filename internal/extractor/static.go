// Package extractor fetches source pages and turns them into raw
// articles using a static-first strategy with a rendered-browser
// fallback, each full attempt retried with exponential backoff.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// StaticConfig controls the static fetch strategy.
type StaticConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// StaticFetcher retrieves pages over plain HTTP using a Colly collector.
type StaticFetcher struct {
	cfg           StaticConfig
	baseCollector *colly.Collector
}

// NewStatic builds a StaticFetcher.
func NewStatic(cfg StaticConfig) *StaticFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	return &StaticFetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET and returns the raw page body.
func (f *StaticFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("static fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("static fetch failed: %w", err)
		}
		if fetchErr != nil {
			return nil, fmt.Errorf("static fetch response failed: %w", fetchErr)
		}
		return body, nil
	}
}

// staticPage is what the static strategy extracts from a fetched body.
type staticPage struct {
	Title       string
	Content     string
	PublishedAt time.Time
}

// parseStaticPage pulls the document title, article text, and (when
// present) the published timestamp out of raw HTML. Title preference:
// og:title, then <title>, then the first <h1>; the caller falls back to
// deriving one from content when all three are absent. Content is the
// paragraph text of the <article> element, or of the whole body when no
// article element exists.
func parseStaticPage(html []byte) (staticPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return staticPage{}, fmt.Errorf("parse document: %w", err)
	}

	var page staticPage

	if v, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		page.Title = strings.TrimSpace(v)
	}
	if page.Title == "" {
		page.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if page.Title == "" {
		page.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	if v, ok := doc.Find(`meta[property="article:published_time"]`).Attr("content"); ok {
		if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(v)); err == nil {
			page.PublishedAt = ts.UTC()
		}
	}

	scope := doc.Find("article").First()
	if scope.Length() == 0 {
		scope = doc.Find("body").First()
	}

	var paragraphs []string
	scope.Find("p").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	page.Content = strings.Join(paragraphs, "\n\n")

	return page, nil
}
