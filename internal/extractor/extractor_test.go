package extractor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"newswatch/internal/intel"
)

type stubClock struct {
	now  time.Time
	step time.Duration
}

func (c *stubClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

type stubRenderer struct {
	page  renderedPage
	err   error
	calls int
}

func (r *stubRenderer) Render(_ context.Context, _ string) (renderedPage, error) {
	r.calls++
	return r.page, r.err
}

type stubSource struct {
	urls []string
	err  error
}

func (s *stubSource) Name() string { return "nvidia-newsroom" }

func (s *stubSource) Discover(_ context.Context) ([]string, error) {
	return s.urls, s.err
}

type stubSnapshots struct {
	paths []string
	uri   string
	err   error
}

func (s *stubSnapshots) PutObject(_ context.Context, path, _ string, _ []byte) (string, error) {
	s.paths = append(s.paths, path)
	return s.uri, s.err
}

// flakyFetcher fails a set number of times before serving the page.
type flakyFetcher struct {
	failures int
	body     []byte
	calls    int
}

func (f *flakyFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient network error")
	}
	return f.body, nil
}

func newTestExtractor(t *testing.T, fetch fetcher, opts ...Option) (*Extractor, *[]time.Duration) {
	t.Helper()
	var sleeps []time.Duration
	cfg := Config{
		Source:      intel.SourceConfig{Name: "nvidia-newsroom", ListingURL: "https://example.com/news", MaxArticles: 5},
		MaxAttempts: 2,
		BackoffUnit: time.Millisecond,
	}
	clock := &stubClock{now: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC), step: 250 * time.Millisecond}
	opts = append(opts, WithSleep(func(d time.Duration) { sleeps = append(sleeps, d) }))
	return New(cfg, &stubSource{}, fetch, clock, nil, opts...), &sleeps
}

func TestExtractOneStatic(t *testing.T) {
	t.Parallel()

	fetch := &flakyFetcher{body: []byte(articleHTML)}
	snaps := &stubSnapshots{uri: "mem://snapshots/abc.html"}
	e, sleeps := newTestExtractor(t, fetch, WithSnapshots(snaps))

	article, err := e.ExtractOne(context.Background(), "https://example.com/news/gpu-launch")
	require.NoError(t, err)

	require.Equal(t, "GPU Launch Announced", article.Title)
	require.Equal(t, "First paragraph of the piece.\n\nSecond paragraph with detail.", article.Content)
	require.Equal(t, "nvidia-newsroom", article.Source)
	require.Equal(t, time.Date(2026, 8, 20, 14, 0, 0, 0, time.UTC), article.PublishDate)

	require.Equal(t, "static", article.Metadata[intel.MetaExtractionMethod])
	require.Equal(t, false, article.Metadata[intel.MetaContentTruncated])
	require.Equal(t, "mem://snapshots/abc.html", article.Metadata[intel.MetaSnapshotURI])
	require.InDelta(t, 0.5, article.Metadata[intel.MetaProcessingTime], 0.001)

	require.Empty(t, *sleeps)
	require.Len(t, snaps.paths, 1)
	require.Contains(t, snaps.paths[0], "snapshots/nvidia-newsroom/")
}

func TestExtractOneRenderedFallback(t *testing.T) {
	t.Parallel()

	// The static page parses but has no paragraph content.
	fetch := &flakyFetcher{body: []byte(`<html><body><div>app shell</div></body></html>`)}
	renderer := &stubRenderer{page: renderedPage{
		Title:   "Rendered Heading",
		Content: "Body text from the rendered page.",
		HTML:    "<html>rendered</html>",
	}}
	e, sleeps := newTestExtractor(t, fetch, WithRendered(renderer))

	article, err := e.ExtractOne(context.Background(), "https://example.com/news/js-only")
	require.NoError(t, err)
	require.Equal(t, 1, renderer.calls)
	require.Equal(t, "Rendered Heading", article.Title)
	require.Equal(t, "Body text from the rendered page.", article.Content)
	require.Equal(t, "rendered", article.Metadata[intel.MetaExtractionMethod])
	require.Empty(t, *sleeps)
}

func TestExtractOneEmptyWithoutFallback(t *testing.T) {
	t.Parallel()

	fetch := &flakyFetcher{body: []byte(`<html><body></body></html>`)}
	e, _ := newTestExtractor(t, fetch)

	_, err := e.ExtractOne(context.Background(), "https://example.com/news/empty")
	require.ErrorIs(t, err, intel.ErrEmptyContent)

	var extErr *intel.ExtractionError
	require.ErrorAs(t, err, &extErr)
	require.Equal(t, 2, extErr.Attempts)
}

func TestExtractOneRetriesWithBackoff(t *testing.T) {
	t.Parallel()

	fetch := &flakyFetcher{failures: 1, body: []byte(articleHTML)}
	e, sleeps := newTestExtractor(t, fetch)

	article, err := e.ExtractOne(context.Background(), "https://example.com/news/gpu-launch")
	require.NoError(t, err)
	require.Equal(t, 2, fetch.calls)
	require.Equal(t, []time.Duration{2 * time.Millisecond}, *sleeps)
	require.Equal(t, "GPU Launch Announced", article.Title)
}

func TestExtractOneExhaustsAttempts(t *testing.T) {
	t.Parallel()

	fetch := &flakyFetcher{failures: 10}
	e, sleeps := newTestExtractor(t, fetch)

	_, err := e.ExtractOne(context.Background(), "https://example.com/news/broken")
	var extErr *intel.ExtractionError
	require.ErrorAs(t, err, &extErr)
	require.Equal(t, 2, extErr.Attempts)
	require.Equal(t, "https://example.com/news/broken", extErr.URL)
	require.Equal(t, 2, fetch.calls)
	require.Equal(t, []time.Duration{2 * time.Millisecond}, *sleeps)
}

func TestExtractOneDerivesTitleFromContent(t *testing.T) {
	t.Parallel()

	fetch := &flakyFetcher{body: []byte(`<html><body><p>Chipmaker posts record quarter.</p><p>More detail follows.</p></body></html>`)}
	e, _ := newTestExtractor(t, fetch)

	article, err := e.ExtractOne(context.Background(), "https://example.com/news/untitled")
	require.NoError(t, err)
	require.Equal(t, "Chipmaker posts record quarter.", article.Title)
}

func TestExtractOneSnapshotFailureNotFatal(t *testing.T) {
	t.Parallel()

	fetch := &flakyFetcher{body: []byte(articleHTML)}
	snaps := &stubSnapshots{err: errors.New("bucket unavailable")}
	e, _ := newTestExtractor(t, fetch, WithSnapshots(snaps))

	article, err := e.ExtractOne(context.Background(), "https://example.com/news/gpu-launch")
	require.NoError(t, err)
	require.NotContains(t, article.Metadata, intel.MetaSnapshotURI)
}
