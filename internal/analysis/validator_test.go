package analysis

import (
	"errors"
	"testing"

	"newswatch/internal/intel"
)

const validResponse = `{
	"summary": "NVIDIA announced a new AI chip with CEO Jensen Huang unveiling the H100 GPU.",
	"entities": [
		{"text": "NVIDIA", "type": "company", "mentions": 5},
		{"text": "Jensen Huang", "type": "person", "mentions": 2},
		{"text": "H100", "type": "product", "mentions": 3}
	],
	"classification": "product_launch",
	"sentimentScore": 9
}`

func requireFieldError(t *testing.T, err error, field string) {
	t.Helper()
	var ve *intel.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Field != field {
		t.Fatalf("expected failing field %q, got %q (%s)", field, ve.Field, ve.Reason)
	}
}

func TestParseAnalysisValid(t *testing.T) {
	t.Parallel()

	result, err := ParseAnalysis(validResponse)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Classification != intel.ClassProductLaunch {
		t.Fatalf("unexpected classification %q", result.Classification)
	}
	if result.SentimentScore != 9 {
		t.Fatalf("unexpected sentiment %d", result.SentimentScore)
	}
	if len(result.Entities) != 3 || result.Entities[0].Text != "NVIDIA" || result.Entities[0].Type != intel.EntityCompany {
		t.Fatalf("unexpected entities %+v", result.Entities)
	}
}

func TestParseAnalysisTrimsSurroundingCommentary(t *testing.T) {
	t.Parallel()

	wrapped := "Here is the analysis you asked for:\n" + validResponse + "\nLet me know if you need more."
	result, err := ParseAnalysis(wrapped)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Summary == "" {
		t.Fatal("expected summary to survive extraction")
	}
}

func TestParseAnalysisNoJSON(t *testing.T) {
	t.Parallel()

	_, err := ParseAnalysis("the model rambled and produced no object")
	requireFieldError(t, err, "response")
}

func TestParseAnalysisMalformedJSON(t *testing.T) {
	t.Parallel()

	_, err := ParseAnalysis(`{"summary": "unterminated`)
	requireFieldError(t, err, "response")
}

func TestParseAnalysisMissingClassification(t *testing.T) {
	t.Parallel()

	_, err := ParseAnalysis(`{
		"summary": "A summary that is comfortably over twenty characters.",
		"entities": [],
		"sentimentScore": 5
	}`)
	requireFieldError(t, err, "classification")
}

func TestParseAnalysisSentimentBounds(t *testing.T) {
	t.Parallel()

	for _, score := range []string{"0", "11"} {
		_, err := ParseAnalysis(`{
			"summary": "A summary that is comfortably over twenty characters.",
			"entities": [],
			"classification": "market_trend",
			"sentimentScore": ` + score + `
		}`)
		requireFieldError(t, err, "sentimentScore")
	}
}

func TestParseAnalysisFractionalSentiment(t *testing.T) {
	t.Parallel()

	_, err := ParseAnalysis(`{
		"summary": "A summary that is comfortably over twenty characters.",
		"entities": [],
		"classification": "market_trend",
		"sentimentScore": 7.5
	}`)
	requireFieldError(t, err, "sentimentScore")
}

func TestParseAnalysisEntityMentions(t *testing.T) {
	t.Parallel()

	_, err := ParseAnalysis(`{
		"summary": "A summary that is comfortably over twenty characters.",
		"entities": [{"text": "NVIDIA", "type": "company", "mentions": 0}],
		"classification": "competitive_news",
		"sentimentScore": 5
	}`)
	requireFieldError(t, err, "mentions")
}

func TestParseAnalysisEntityType(t *testing.T) {
	t.Parallel()

	_, err := ParseAnalysis(`{
		"summary": "A summary that is comfortably over twenty characters.",
		"entities": [{"text": "NVIDIA", "type": "stock", "mentions": 2}],
		"classification": "competitive_news",
		"sentimentScore": 5
	}`)
	requireFieldError(t, err, "type")
}

func TestParseAnalysisShortSummary(t *testing.T) {
	t.Parallel()

	_, err := ParseAnalysis(`{
		"summary": "too short",
		"entities": [],
		"classification": "market_trend",
		"sentimentScore": 5
	}`)
	requireFieldError(t, err, "summary")
}

func TestParseAnalysisSummaryLengthInRunes(t *testing.T) {
	t.Parallel()

	// Eleven CJK characters are 33 bytes but still too short a summary.
	_, err := ParseAnalysis(`{
		"summary": "新製品発表の要約です。",
		"entities": [],
		"classification": "product_launch",
		"sentimentScore": 7
	}`)
	requireFieldError(t, err, "summary")

	// Twenty runes is enough regardless of byte length.
	result, err := ParseAnalysis(`{
		"summary": "新製品発表の要約です。性能は前世代の二倍。",
		"entities": [],
		"classification": "product_launch",
		"sentimentScore": 7
	}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Summary == "" {
		t.Fatal("expected summary to be accepted")
	}
}
