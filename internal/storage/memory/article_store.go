// Package memory provides an in-memory article store. It backs tests
// and the default zero-dependency configuration.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"newswatch/internal/intel"
)

// ArticleStore keeps articles in a map keyed by URL.
type ArticleStore struct {
	mu       sync.RWMutex
	articles map[string]intel.StoredArticle
}

// NewArticleStore creates an empty store.
func NewArticleStore() *ArticleStore {
	return &ArticleStore{articles: make(map[string]intel.StoredArticle)}
}

// UpsertScraped inserts or replaces the row for the article URL. A
// replaced row loses its derived analysis fields and returns to pending.
func (s *ArticleStore) UpsertScraped(_ context.Context, article intel.Article, scrapedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := intel.StoredArticle{
		Article:   article,
		Status:    intel.StatusPending,
		ScrapedAt: scrapedAt,
	}
	stored.Metadata = cloneMetadata(article.Metadata)
	s.articles[article.URL] = stored
	return nil
}

// UpdateAnalysis records the analysis result and completes the row.
func (s *ArticleStore) UpdateAnalysis(_ context.Context, url string, result intel.AnalysisResult, analyzedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.articles[url]
	if !ok {
		return intel.ErrNotFound
	}
	stored.Summary = result.Summary
	stored.Entities = append([]intel.Entity(nil), result.Entities...)
	stored.Classification = result.Classification
	stored.SentimentScore = result.SentimentScore
	stored.Status = intel.StatusComplete
	at := analyzedAt
	stored.AnalyzedAt = &at
	s.articles[url] = stored
	return nil
}

// MarkFailed moves the row to failed and records the reason in metadata.
func (s *ArticleStore) MarkFailed(_ context.Context, url, reason string, failedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.articles[url]
	if !ok {
		return intel.ErrNotFound
	}
	if stored.Metadata == nil {
		stored.Metadata = make(map[string]any)
	}
	stored.Metadata[intel.MetaError] = reason
	stored.Metadata[intel.MetaFailedAt] = failedAt.UTC().Format(time.RFC3339)
	stored.Status = intel.StatusFailed
	s.articles[url] = stored
	return nil
}

// FindByStatus returns up to limit rows in scrape order.
func (s *ArticleStore) FindByStatus(_ context.Context, status intel.ArticleStatus, limit int) ([]intel.StoredArticle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []intel.StoredArticle
	for _, stored := range s.articles {
		if stored.Status == status {
			out = append(out, stored)
		}
	}
	sortByScrapedAt(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetByURL returns the row for a URL or intel.ErrNotFound.
func (s *ArticleStore) GetByURL(_ context.Context, url string) (intel.StoredArticle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.articles[url]
	if !ok {
		return intel.StoredArticle{}, intel.ErrNotFound
	}
	return stored, nil
}

// List returns completed articles matching the filter, newest first,
// along with the total match count before pagination.
func (s *ArticleStore) List(_ context.Context, filter intel.ListFilter) ([]intel.StoredArticle, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []intel.StoredArticle
	for _, stored := range s.articles {
		if stored.Status != intel.StatusComplete {
			continue
		}
		if !matchesFilter(stored, filter) {
			continue
		}
		matched = append(matched, stored)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].PublishDate.Equal(matched[j].PublishDate) {
			return matched[i].PublishDate.After(matched[j].PublishDate)
		}
		return matched[i].URL < matched[j].URL
	})

	total := len(matched)
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	start := (page - 1) * size
	if start >= total {
		return nil, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// Stats counts rows by lifecycle state.
func (s *ArticleStore) Stats(_ context.Context) (intel.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats intel.Stats
	for _, stored := range s.articles {
		stats.Total++
		switch stored.Status {
		case intel.StatusPending:
			stats.Pending++
		case intel.StatusComplete:
			stats.Complete++
		case intel.StatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// Ping always succeeds.
func (s *ArticleStore) Ping(_ context.Context) error { return nil }

func matchesFilter(a intel.StoredArticle, f intel.ListFilter) bool {
	if f.Classification != "" && a.Classification != f.Classification {
		return false
	}
	if f.MinSentiment > 0 && a.SentimentScore < f.MinSentiment {
		return false
	}
	if f.MaxSentiment > 0 && a.SentimentScore > f.MaxSentiment {
		return false
	}
	if f.StartDate != nil && a.PublishDate.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && a.PublishDate.After(*f.EndDate) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(a.Title), needle) &&
			!strings.Contains(strings.ToLower(a.Content), needle) {
			return false
		}
	}
	return true
}

func sortByScrapedAt(rows []intel.StoredArticle) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].ScrapedAt.Equal(rows[j].ScrapedAt) {
			return rows[i].ScrapedAt.Before(rows[j].ScrapedAt)
		}
		return rows[i].URL < rows[j].URL
	})
}

func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
