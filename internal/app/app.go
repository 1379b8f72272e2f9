// Package app initializes and holds long-lived services, acting as the
// dependency injection container for the newswatch binary.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"newswatch/internal/analysis"
	"newswatch/internal/api"
	"newswatch/internal/archive"
	"newswatch/internal/clock/system"
	"newswatch/internal/config"
	"newswatch/internal/events"
	"newswatch/internal/extractor"
	"newswatch/internal/inference"
	"newswatch/internal/intel"
	"newswatch/internal/pipeline"
	"newswatch/internal/storage/memory"
	"newswatch/internal/storage/postgres"
)

// App holds all the shared, long-lived services. It is initialized once
// at startup and passed to the components that need it.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	store    intel.ArticleStore
	events   intel.EventPublisher
	client   *inference.Client
	pipeline *pipeline.Pipeline
	server   *api.Server

	closers []func()
}

// New builds the service graph from configuration. It fails fast when a
// critical backend cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	clk := system.Clock{}

	store, err := a.buildStore(ctx)
	if err != nil {
		return nil, err
	}
	a.store = store

	snapshots, err := a.buildArchive(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	publisher, err := a.buildEvents(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.events = publisher

	a.client = inference.New(inference.Config{
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.Model,
		Timeout:    time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.LLM.MaxRetries,
	}, logger.Named("inference"))

	analyzer := analysis.New(a.client, cfg.Analyzer.MaxContentChars, logger.Named("analysis"))

	static := extractor.NewStatic(extractor.StaticConfig{
		UserAgent: cfg.Extractor.UserAgent,
		Timeout:   time.Duration(cfg.Source.TimeoutSeconds) * time.Second,
	})
	source, err := extractor.ResolveSource(cfg.SourceSpec(), static, logger.Named("discovery"))
	if err != nil {
		a.Close()
		return nil, err
	}

	extractorOpts := []extractor.Option{extractor.WithSnapshots(snapshots)}
	if cfg.Extractor.RenderEnabled {
		rendered := extractor.NewRendered(extractor.RenderedConfig{
			NavTimeout: time.Duration(cfg.Extractor.NavTimeoutSec) * time.Second,
			UserAgent:  cfg.Extractor.UserAgent,
		}, logger.Named("rendered"))
		a.closers = append(a.closers, rendered.Close)
		extractorOpts = append(extractorOpts, extractor.WithRendered(rendered))
	}
	ext := extractor.New(extractor.Config{
		Source:         cfg.SourceSpec(),
		MaxAttempts:    cfg.Extractor.MaxAttempts,
		SnapshotPrefix: cfg.Archive.Prefix,
	}, source, static, clk, logger.Named("extractor"), extractorOpts...)

	a.pipeline = pipeline.New(cfg.Source.Name, ext, analyzer, store, publisher, clk, logger.Named("pipeline"))
	a.server = api.NewServer(store, a.pipeline, a.client, logger.Named("api"))

	logger.Info("application services initialized",
		zap.String("db_provider", cfg.DB.Provider),
		zap.String("archive_provider", cfg.Archive.Provider),
		zap.String("source", cfg.Source.Name))
	return a, nil
}

// Pipeline returns the run orchestrator.
func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// Server returns the HTTP API server.
func (a *App) Server() *api.Server {
	return a.server
}

// Close shuts down all services in reverse initialization order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) buildStore(ctx context.Context) (intel.ArticleStore, error) {
	switch a.cfg.DB.Provider {
	case "postgres":
		a.logger.Info("connecting to postgres")
		store, err := postgres.NewArticleStore(ctx, postgres.ArticleStoreConfig{DSN: a.cfg.DB.DSN})
		if err != nil {
			return nil, fmt.Errorf("initialize postgres store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case "memory":
		a.logger.Info("using in-memory article store, data will not survive restarts")
		return memory.NewArticleStore(), nil
	default:
		return nil, fmt.Errorf("unknown db provider: %s", a.cfg.DB.Provider)
	}
}

func (a *App) buildArchive(ctx context.Context) (intel.SnapshotStore, error) {
	switch a.cfg.Archive.Provider {
	case "gcs":
		a.logger.Info("using GCS snapshot archive", zap.String("bucket", a.cfg.Archive.GCSBucket))
		store, err := archive.NewGCS(ctx, a.cfg.Archive.GCSBucket, a.logger.Named("archive"))
		if err != nil {
			return nil, fmt.Errorf("initialize GCS archive: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := store.Close(); err != nil {
				a.logger.Warn("error closing GCS archive", zap.Error(err))
			}
		})
		return store, nil
	case "local":
		a.logger.Info("using local snapshot archive", zap.String("base_dir", a.cfg.Archive.BaseDir))
		store, err := archive.NewLocal(archive.LocalConfig{BaseDir: a.cfg.Archive.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("initialize local archive: %w", err)
		}
		return store, nil
	case "memory":
		return archive.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown archive provider: %s", a.cfg.Archive.Provider)
	}
}

func (a *App) buildEvents(ctx context.Context) (intel.EventPublisher, error) {
	if a.cfg.Events.Topic == "" {
		a.logger.Info("no events topic configured, outcome events disabled")
		return events.NewMemory(), nil
	}
	a.logger.Info("connecting to pubsub",
		zap.String("project", a.cfg.Events.ProjectID),
		zap.String("topic", a.cfg.Events.Topic))
	pub, err := events.NewPubSub(ctx, a.cfg.Events.ProjectID, a.cfg.Events.Topic, a.logger.Named("events"))
	if err != nil {
		return nil, fmt.Errorf("initialize pubsub publisher: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := pub.Close(); err != nil {
			a.logger.Warn("error closing pubsub publisher", zap.Error(err))
		}
	})
	return pub, nil
}
