// Package pipeline orchestrates the ingestion run: discover candidate
// URLs, extract articles, persist them, analyze each one, and report the
// outcome. A failure in any single article never aborts the run; only a
// store outage that swallows the whole batch does.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"newswatch/internal/intel"
	"newswatch/internal/metrics"
)

// ErrAlreadyRunning is returned when a run is requested while another
// run is still in flight.
var ErrAlreadyRunning = errors.New("pipeline run already in progress")

// Pipeline wires the stages together.
type Pipeline struct {
	extractor intel.Extractor
	analyzer  intel.Analyzer
	store     intel.ArticleStore
	events    intel.EventPublisher
	clock     intel.Clock
	logger    *zap.Logger
	source    string

	running atomic.Bool
}

// New builds a Pipeline. The events publisher may be nil.
func New(
	source string,
	extractor intel.Extractor,
	analyzer intel.Analyzer,
	store intel.ArticleStore,
	events intel.EventPublisher,
	clock intel.Clock,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		extractor: extractor,
		analyzer:  analyzer,
		store:     store,
		events:    events,
		clock:     clock,
		logger:    logger,
		source:    source,
	}
}

// Running reports whether a run is currently in flight.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// Run executes one full pipeline pass. Only one run may be in flight at
// a time; a second concurrent call returns ErrAlreadyRunning.
func (p *Pipeline) Run(ctx context.Context) (intel.RunReport, error) {
	if !p.running.CompareAndSwap(false, true) {
		return intel.RunReport{}, ErrAlreadyRunning
	}
	defer p.running.Store(false)
	return p.run(ctx)
}

// StartAsync begins a run in the background. The in-flight check happens
// synchronously so callers can reject a duplicate trigger immediately.
func (p *Pipeline) StartAsync(ctx context.Context, onDone func(intel.RunReport)) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	go func() {
		defer p.running.Store(false)
		report, err := p.run(ctx)
		if err != nil {
			p.logger.Error("pipeline run aborted", zap.Error(err))
		}
		if onDone != nil {
			onDone(report)
		}
	}()
	return nil
}

func (p *Pipeline) run(ctx context.Context) (intel.RunReport, error) {
	metrics.SetPipelineActive(true)
	defer metrics.SetPipelineActive(false)

	report := intel.RunReport{
		RunID:     uuid.NewString(),
		Source:    p.source,
		StartedAt: p.clock.Now(),
	}
	logger := p.logger.With(zap.String("run_id", report.RunID), zap.String("source", p.source))
	logger.Info("pipeline run started")

	// Stage 1: discovery. A failure here yields an empty candidate list
	// so the run still finishes and reports cleanly.
	urls, err := p.extractor.Discover(ctx)
	if err != nil {
		logger.Error("discovery failed", zap.Error(err))
		urls = nil
	}
	report.Discovered = len(urls)

	// Stages 2 and 2b: extract and persist each candidate. An article
	// that fails either step is skipped without touching the rest.
	var stored []intel.Article
	var lastStoreErr error
	for _, url := range urls {
		if ctx.Err() != nil {
			break
		}
		article, err := p.extractor.ExtractOne(ctx, url)
		if err != nil {
			logger.Warn("extraction failed, skipping article",
				zap.String("url", url), zap.Error(err))
			report.Failed++
			p.publish(ctx, report.RunID, url, intel.StatusFailed, "", err)
			continue
		}
		report.Extracted++

		if err := p.store.UpsertScraped(ctx, article, p.clock.Now()); err != nil {
			logger.Error("store upsert failed, skipping article",
				zap.String("url", url), zap.Error(err))
			report.Failed++
			lastStoreErr = err
			p.publish(ctx, report.RunID, url, intel.StatusFailed, "", err)
			continue
		}
		report.Stored++
		stored = append(stored, article)
	}

	// A non-empty batch that stores zero rows means the store itself is
	// down, not that the articles are bad. Abort the run rather than
	// report every article as individually skipped.
	if report.Extracted > 0 && report.Stored == 0 {
		report.FinishedAt = p.clock.Now()
		metrics.RecordRun("failed")
		logger.Error("article store rejected every upsert, aborting run",
			zap.Int("extracted", report.Extracted), zap.Error(lastStoreErr))
		return report, fmt.Errorf("article store unavailable: %w", lastStoreErr)
	}

	// Stage 3: analyze stored articles one at a time. The inference
	// backend is a single shared resource, so this stays sequential.
	for _, article := range stored {
		if ctx.Err() != nil {
			break
		}
		p.analyzeOne(ctx, logger, &report, article)
	}

	report.FinishedAt = p.clock.Now()
	outcome := "complete"
	if report.Failed > 0 {
		outcome = "partial"
	}
	if report.Discovered > 0 && report.Analyzed == 0 {
		outcome = "failed"
	}
	metrics.RecordRun(outcome)

	logger.Info("pipeline run finished",
		zap.String("outcome", outcome),
		zap.Int("discovered", report.Discovered),
		zap.Int("extracted", report.Extracted),
		zap.Int("stored", report.Stored),
		zap.Int("analyzed", report.Analyzed),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

// analyzeOne runs inference for one stored article and records the
// terminal state. Analysis failures mark the row failed and move on.
func (p *Pipeline) analyzeOne(ctx context.Context, logger *zap.Logger, report *intel.RunReport, article intel.Article) {
	result, err := p.analyzer.Analyze(ctx, article)
	if err != nil {
		logger.Warn("analysis failed, marking article failed",
			zap.String("url", article.URL), zap.Error(err))
		report.Failed++
		metrics.RecordAnalysis("failed")
		reason := fmt.Sprintf("analysis failed: %v", err)
		if markErr := p.store.MarkFailed(ctx, article.URL, reason, p.clock.Now()); markErr != nil {
			logger.Error("failed to mark article failed",
				zap.String("url", article.URL), zap.Error(markErr))
		}
		p.publish(ctx, report.RunID, article.URL, intel.StatusFailed, "", err)
		return
	}

	if err := p.store.UpdateAnalysis(ctx, article.URL, result, p.clock.Now()); err != nil {
		logger.Error("failed to persist analysis",
			zap.String("url", article.URL), zap.Error(err))
		report.Failed++
		metrics.RecordAnalysis("failed")
		p.publish(ctx, report.RunID, article.URL, intel.StatusFailed, "", err)
		return
	}

	report.Analyzed++
	metrics.RecordAnalysis("complete")
	p.publish(ctx, report.RunID, article.URL, intel.StatusComplete, result.Classification, nil)
}

// publish emits an outcome event when a publisher is configured.
// Publish failures are logged and ignored.
func (p *Pipeline) publish(ctx context.Context, runID, url string, status intel.ArticleStatus, classification string, cause error) {
	if p.events == nil {
		return
	}
	event := intel.OutcomeEvent{
		RunID:          runID,
		URL:            url,
		Status:         status,
		Classification: classification,
		Timestamp:      p.clock.Now(),
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if err := p.events.Publish(ctx, event); err != nil {
		p.logger.Warn("outcome event publish failed",
			zap.String("url", url), zap.Error(err))
	}
}
