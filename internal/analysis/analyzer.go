package analysis

import (
	"context"

	"go.uber.org/zap"

	"newswatch/internal/intel"
	"newswatch/internal/textutil"
)

// Generator is the slice of the inference client the analyzer needs.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Analyzer performs summary, entity, classification, and sentiment
// extraction in one inference pass.
type Analyzer struct {
	client          Generator
	maxContentChars int
	logger          *zap.Logger
}

// New constructs an Analyzer. maxContentChars bounds prompt content
// (roughly 4 characters per token).
func New(client Generator, maxContentChars int, logger *zap.Logger) *Analyzer {
	if maxContentChars <= 0 {
		maxContentChars = 16000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		client:          client,
		maxContentChars: maxContentChars,
		logger:          logger,
	}
}

// Analyze derives structured intelligence for one article. Failures are
// inference errors (after the client's own retries) or validation
// errors; both leave the article unclassified for the caller to record.
func (a *Analyzer) Analyze(ctx context.Context, article intel.Article) (intel.AnalysisResult, error) {
	content, truncated := textutil.Truncate(article.Content, a.maxContentChars)
	if truncated {
		a.logger.Info("content truncated for inference",
			zap.String("url", article.URL),
			zap.Int("original_chars", len(article.Content)),
			zap.Int("bounded_chars", len(content)),
		)
	}

	raw, err := a.client.Generate(ctx, SystemPrompt(), BuildUserPrompt(article, content))
	if err != nil {
		return intel.AnalysisResult{}, err
	}

	result, err := ParseAnalysis(raw)
	if err != nil {
		return intel.AnalysisResult{}, err
	}

	a.logger.Info("analysis complete",
		zap.String("url", article.URL),
		zap.String("classification", result.Classification),
		zap.Int("sentiment", result.SentimentScore),
		zap.Int("entities", len(result.Entities)),
	)
	return result, nil
}
