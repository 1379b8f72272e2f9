package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head>
	<title>Fallback Title</title>
	<meta property="og:title" content="GPU Launch Announced">
	<meta property="article:published_time" content="2026-08-20T14:00:00Z">
</head>
<body>
	<h1>Heading Title</h1>
	<article>
		<p>First paragraph of the piece.</p>
		<p>   </p>
		<p>Second paragraph with detail.</p>
	</article>
	<p>Footer boilerplate outside the article.</p>
</body>
</html>`

func TestParseStaticPage(t *testing.T) {
	t.Parallel()

	page, err := parseStaticPage([]byte(articleHTML))
	require.NoError(t, err)

	require.Equal(t, "GPU Launch Announced", page.Title)
	require.Equal(t, "First paragraph of the piece.\n\nSecond paragraph with detail.", page.Content)
	require.Equal(t, time.Date(2026, 8, 20, 14, 0, 0, 0, time.UTC), page.PublishedAt)
}

func TestParseStaticPageTitleFallbacks(t *testing.T) {
	t.Parallel()

	page, err := parseStaticPage([]byte(`<html><head><title>Doc Title</title></head><body><p>x</p></body></html>`))
	require.NoError(t, err)
	require.Equal(t, "Doc Title", page.Title)

	page, err = parseStaticPage([]byte(`<html><body><h1>Only Heading</h1><p>x</p></body></html>`))
	require.NoError(t, err)
	require.Equal(t, "Only Heading", page.Title)
}

func TestParseStaticPageNoArticleElement(t *testing.T) {
	t.Parallel()

	page, err := parseStaticPage([]byte(`<html><body><p>body para one</p><p>body para two</p></body></html>`))
	require.NoError(t, err)
	require.Equal(t, "body para one\n\nbody para two", page.Content)
}

func TestStaticFetcherFetch(t *testing.T) {
	t.Parallel()

	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.UserAgent()
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	f := NewStatic(StaticConfig{UserAgent: "newswatch-test/1.0", Timeout: 5 * time.Second})
	body, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	require.Contains(t, string(body), "GPU Launch Announced")
	require.Equal(t, "newswatch-test/1.0", gotAgent)
}

func TestStaticFetcherFetchServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := NewStatic(StaticConfig{Timeout: 5 * time.Second})
	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)
}
