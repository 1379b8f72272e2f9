package extractor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// RenderedConfig controls the headless-browser fallback strategy.
type RenderedConfig struct {
	NavTimeout time.Duration
	UserAgent  string
}

// RenderedFetcher drives a headless Chrome instance for pages whose
// content only appears after JavaScript runs.
type RenderedFetcher struct {
	cfg       RenderedConfig
	allocCtx  context.Context
	allocStop context.CancelFunc
	logger    *zap.Logger
}

// NewRendered starts a shared browser allocator. Call Close when done.
func NewRendered(cfg RenderedConfig, logger *zap.Logger) *RenderedFetcher {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocStop := chromedp.NewExecAllocator(context.Background(), opts...)

	return &RenderedFetcher{
		cfg:       cfg,
		allocCtx:  allocCtx,
		allocStop: allocStop,
		logger:    logger,
	}
}

// renderedPage is what the rendered strategy extracts from a live page.
type renderedPage struct {
	Title   string
	Content string
	HTML    string
}

// docStatus records the HTTP status of the main document response so a
// rendered error page is not mistaken for content.
type docStatus struct {
	mu     sync.Mutex
	status int
}

func (d *docStatus) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	d.mu.Lock()
	d.status = int(resp.Response.Status)
	d.mu.Unlock()
}

func (d *docStatus) get() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Render navigates to the URL in a fresh tab, waits for the body, and
// returns its visible text plus the first h1 and the rendered markup.
func (f *RenderedFetcher) Render(ctx context.Context, url string) (renderedPage, error) {
	tabCtx, cancelTab := chromedp.NewContext(f.allocCtx)
	defer cancelTab()

	runCtx, cancelRun := context.WithTimeout(tabCtx, f.cfg.NavTimeout)
	defer cancelRun()

	status := &docStatus{}
	chromedp.ListenTarget(runCtx, status.captureEvent)

	var page renderedPage
	err := chromedp.Run(runCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Text("body", &page.Content, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// h1 may legitimately be absent; Evaluate tolerates that
			// where chromedp.Text would block on the selector.
			return chromedp.Evaluate(
				`document.querySelector("h1") ? document.querySelector("h1").innerText : ""`,
				&page.Title,
			).Do(ctx)
		}),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
	)
	if err != nil {
		// Surface ctx cancelation over chromedp's wrapped error.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return renderedPage{}, fmt.Errorf("render canceled: %w", ctxErr)
		}
		return renderedPage{}, fmt.Errorf("render %s: %w", url, err)
	}
	if code := status.get(); code >= 400 {
		return renderedPage{}, fmt.Errorf("render %s: document status %d", url, code)
	}
	f.logger.Debug("rendered page",
		zap.String("url", url),
		zap.Int("content_chars", len(page.Content)))
	return page, nil
}

// Close tears down the shared browser allocator.
func (f *RenderedFetcher) Close() {
	f.allocStop()
}
