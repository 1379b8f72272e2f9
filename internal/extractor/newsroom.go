package extractor

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"newswatch/internal/intel"
)

// fetcher is the minimal page-retrieval contract the discovery sources
// and the extractor depend on.
type fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// NewsroomSource discovers article links from a corporate newsroom
// listing page. The listing markup follows the common pattern of
// article cards with a heading link.
type NewsroomSource struct {
	cfg    intel.SourceConfig
	fetch  fetcher
	logger *zap.Logger
}

// NewNewsroom builds a NewsroomSource over the given fetch strategy.
func NewNewsroom(cfg intel.SourceConfig, fetch fetcher, logger *zap.Logger) *NewsroomSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NewsroomSource{cfg: cfg, fetch: fetch, logger: logger}
}

// Name returns the configured source name.
func (s *NewsroomSource) Name() string { return s.cfg.Name }

// Discover fetches the listing page and returns up to MaxArticles
// absolute article URLs in listing order, deduplicated.
func (s *NewsroomSource) Discover(ctx context.Context) ([]string, error) {
	body, err := s.fetch.Fetch(ctx, s.cfg.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", s.cfg.ListingURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing %s: %w", s.cfg.ListingURL, err)
	}

	base, err := url.Parse(s.cfg.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}

	seen := make(map[string]struct{})
	var urls []string
	doc.Find("article h3 a, article h2 a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref).String()
		if _, dup := seen[abs]; dup {
			return true
		}
		seen[abs] = struct{}{}
		urls = append(urls, abs)
		return s.cfg.MaxArticles <= 0 || len(urls) < s.cfg.MaxArticles
	})

	s.logger.Info("discovered articles",
		zap.String("source", s.cfg.Name),
		zap.Int("count", len(urls)))
	return urls, nil
}
