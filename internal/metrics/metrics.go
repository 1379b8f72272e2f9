// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineRunsTotal         *prometheus.CounterVec
	articlesExtractedTotal    *prometheus.CounterVec
	articlesAnalyzedTotal     *prometheus.CounterVec
	inferenceRequestsTotal    *prometheus.CounterVec
	inferenceDurationSeconds  prometheus.Histogram
	extractionDurationSeconds *prometheus.HistogramVec
	pipelineActive            prometheus.Gauge

	once sync.Once
)

// Init registers the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		pipelineRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newswatch_pipeline_runs_total",
				Help: "Total pipeline runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		articlesExtractedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newswatch_articles_extracted_total",
				Help: "Articles extracted, labeled by source and method.",
			},
			[]string{"source", "method"},
		)
		articlesAnalyzedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newswatch_articles_analyzed_total",
				Help: "Analysis outcomes per article, labeled by status.",
			},
			[]string{"status"},
		)
		inferenceRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newswatch_inference_requests_total",
				Help: "Inference HTTP requests, labeled by result.",
			},
			[]string{"result"},
		)
		inferenceDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "newswatch_inference_duration_seconds",
				Help:    "Latency of inference generate calls.",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
			},
		)
		extractionDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newswatch_extraction_duration_seconds",
				Help:    "Per-URL extraction latency, labeled by method.",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{"method"},
		)
		pipelineActive = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "newswatch_pipeline_active",
				Help: "1 while a pipeline run is in flight.",
			},
		)
	})
}

// RecordRun counts a finished pipeline run.
func RecordRun(outcome string) {
	if pipelineRunsTotal != nil {
		pipelineRunsTotal.WithLabelValues(outcome).Inc()
	}
}

// RecordExtraction counts one extracted article.
func RecordExtraction(source, method string, elapsed time.Duration) {
	if articlesExtractedTotal != nil {
		articlesExtractedTotal.WithLabelValues(source, method).Inc()
	}
	if extractionDurationSeconds != nil {
		extractionDurationSeconds.WithLabelValues(method).Observe(elapsed.Seconds())
	}
}

// RecordAnalysis counts one settled analysis outcome.
func RecordAnalysis(status string) {
	if articlesAnalyzedTotal != nil {
		articlesAnalyzedTotal.WithLabelValues(status).Inc()
	}
}

// RecordInference counts one inference request and its latency.
func RecordInference(result string, elapsed time.Duration) {
	if inferenceRequestsTotal != nil {
		inferenceRequestsTotal.WithLabelValues(result).Inc()
	}
	if inferenceDurationSeconds != nil {
		inferenceDurationSeconds.Observe(elapsed.Seconds())
	}
}

// SetPipelineActive flips the in-flight gauge.
func SetPipelineActive(active bool) {
	if pipelineActive == nil {
		return
	}
	if active {
		pipelineActive.Set(1)
		return
	}
	pipelineActive.Set(0)
}
