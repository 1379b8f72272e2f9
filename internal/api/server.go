// Package api exposes the HTTP interface for the newswatch service:
// read-only article queries, service health, metrics, and a manual
// pipeline trigger.
package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"newswatch/internal/intel"
	"newswatch/internal/pipeline"
)

// healthChecker reports whether the inference backend is reachable.
type healthChecker interface {
	Healthy(ctx context.Context) bool
}

// runner is the slice of the pipeline the API needs.
type runner interface {
	StartAsync(ctx context.Context, onDone func(intel.RunReport)) error
	Running() bool
}

// Server wires HTTP handlers to the article store and the pipeline.
type Server struct {
	router   chi.Router
	store    intel.ArticleStore
	pipeline runner
	health   healthChecker
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The health
// checker and pipeline may be nil in read-only deployments.
func NewServer(store intel.ArticleStore, p runner, health healthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:    store,
		pipeline: p,
		health:   health,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/articles", s.listArticles)
		r.Get("/articles/{url}", s.getArticle)
		r.Get("/stats", s.getStats)
		r.Post("/pipeline/run", s.triggerRun)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// healthz always answers 200 and reports per-component state so the
// original pending/degraded distinction survives liveness probing.
func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	components := map[string]string{}
	if err := s.store.Ping(r.Context()); err != nil {
		components["store"] = "down"
		status = "degraded"
	} else {
		components["store"] = "up"
	}
	if s.health != nil {
		if s.health.Healthy(r.Context()) {
			components["inference"] = "up"
		} else {
			components["inference"] = "down"
			status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status, "components": components})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "article store unavailable")
		return
	}
	if s.health != nil && !s.health.Healthy(r.Context()) {
		writeError(w, http.StatusServiceUnavailable, "inference backend unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	articles, total, err := s.store.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("article listing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list articles")
		return
	}

	views := make([]articleView, 0, len(articles))
	for _, a := range articles {
		views = append(views, toArticleView(a))
	}

	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	writeJSON(w, http.StatusOK, listResponse{
		Articles: views,
		Total:    total,
		Page:     page,
		PageSize: size,
	})
}

func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "url")
	articleURL, err := url.QueryUnescape(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid article url")
		return
	}

	article, err := s.store.GetByURL(r.Context(), articleURL)
	if err != nil {
		if errors.Is(err, intel.ErrNotFound) {
			writeError(w, http.StatusNotFound, "article not found")
			return
		}
		s.logger.Error("article lookup failed", zap.String("url", articleURL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch article")
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) triggerRun(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		writeError(w, http.StatusNotImplemented, "pipeline not configured")
		return
	}
	// The run outlives the request, so it gets its own context.
	err := s.pipeline.StartAsync(context.Background(), nil)
	if err != nil {
		if errors.Is(err, pipeline.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "a pipeline run is already in progress")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

const defaultPageSize = 20

type listResponse struct {
	Articles []articleView `json:"data"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
}

// articleView is the listing projection: summary-level fields plus the
// most-mentioned entities, without the full content body.
type articleView struct {
	URL            string         `json:"url"`
	Title          string         `json:"title"`
	Source         string         `json:"source"`
	PublishDate    time.Time      `json:"publishDate"`
	Summary        string         `json:"summary"`
	Classification string         `json:"classification"`
	SentimentScore int            `json:"sentimentScore"`
	TopEntities    []intel.Entity `json:"topEntities"`
	AnalyzedAt     *time.Time     `json:"analyzedAt,omitempty"`
}

const topEntityCount = 3

func toArticleView(a intel.StoredArticle) articleView {
	entities := append([]intel.Entity(nil), a.Entities...)
	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].Mentions > entities[j].Mentions
	})
	if len(entities) > topEntityCount {
		entities = entities[:topEntityCount]
	}
	return articleView{
		URL:            a.URL,
		Title:          a.Title,
		Source:         a.Source,
		PublishDate:    a.PublishDate,
		Summary:        a.Summary,
		Classification: a.Classification,
		SentimentScore: a.SentimentScore,
		TopEntities:    entities,
		AnalyzedAt:     a.AnalyzedAt,
	}
}

func parseListFilter(query url.Values) (intel.ListFilter, error) {
	var filter intel.ListFilter
	var err error

	if filter.Page, err = parseIntParam(query, "page", 1); err != nil {
		return intel.ListFilter{}, err
	}
	if filter.PageSize, err = parseIntParam(query, "pageSize", defaultPageSize); err != nil {
		return intel.ListFilter{}, err
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}
	if filter.MinSentiment, err = parseIntParam(query, "minSentiment", 0); err != nil {
		return intel.ListFilter{}, err
	}
	if filter.MaxSentiment, err = parseIntParam(query, "maxSentiment", 0); err != nil {
		return intel.ListFilter{}, err
	}

	if v := query.Get("classification"); v != "" {
		if !intel.ValidClassification(v) {
			return intel.ListFilter{}, errors.New("invalid classification: " + v)
		}
		filter.Classification = v
	}
	if filter.StartDate, err = parseTimeParam(query, "startDate"); err != nil {
		return intel.ListFilter{}, err
	}
	if filter.EndDate, err = parseTimeParam(query, "endDate"); err != nil {
		return intel.ListFilter{}, err
	}
	filter.Search = query.Get("search")

	return filter, nil
}

func parseIntParam(query url.Values, name string, def int) (int, error) {
	v := query.Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + name + " parameter")
	}
	return n, nil
}

func parseTimeParam(query url.Values, name string) (*time.Time, error) {
	v := query.Get(name)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, v); err == nil {
			return &ts, nil
		}
	}
	return nil, errors.New("invalid " + name + " parameter")
}
