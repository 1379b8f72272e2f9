package analysis

import (
	"encoding/json"
	"math"
	"strings"
	"unicode/utf8"

	"newswatch/internal/intel"
)

// minSummaryLen is the shortest summary the schema accepts, in runes.
const minSummaryLen = 20

// rawAnalysis mirrors the expected model output with pointer fields so
// missing keys can be told apart from zero values.
type rawAnalysis struct {
	Summary        *string     `json:"summary"`
	Entities       []rawEntity `json:"entities"`
	Classification *string     `json:"classification"`
	SentimentScore *float64    `json:"sentimentScore"`
}

type rawEntity struct {
	Text     *string  `json:"text"`
	Type     *string  `json:"type"`
	Mentions *float64 `json:"mentions"`
}

// ParseAnalysis extracts and validates a structured result from raw
// model output. The candidate JSON object spans the first '{' to the
// last '}', which tolerates commentary around the object but not nested
// braces inside string values; the system prompt asks the model to emit
// only the object to keep that case out of play. The first failing
// constraint is reported by name and no partial result is ever returned.
func ParseAnalysis(rawText string) (intel.AnalysisResult, error) {
	start := strings.Index(rawText, "{")
	end := strings.LastIndex(rawText, "}")
	if start == -1 || end == -1 || end < start {
		return intel.AnalysisResult{}, &intel.ValidationError{
			Field:  "response",
			Reason: "no JSON object found in model output",
		}
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(rawText[start:end+1]), &raw); err != nil {
		return intel.AnalysisResult{}, &intel.ValidationError{
			Field:  "response",
			Reason: "malformed JSON: " + err.Error(),
		}
	}

	if raw.Summary == nil {
		return intel.AnalysisResult{}, &intel.ValidationError{Field: "summary", Reason: "missing"}
	}
	if utf8.RuneCountInString(*raw.Summary) < minSummaryLen {
		return intel.AnalysisResult{}, &intel.ValidationError{Field: "summary", Reason: "shorter than 20 characters"}
	}

	entities := make([]intel.Entity, 0, len(raw.Entities))
	for _, e := range raw.Entities {
		if e.Text == nil || *e.Text == "" {
			return intel.AnalysisResult{}, &intel.ValidationError{Field: "text", Reason: "entity text must be non-empty"}
		}
		if e.Type == nil || !intel.ValidEntityType(*e.Type) {
			return intel.AnalysisResult{}, &intel.ValidationError{Field: "type", Reason: "entity type must be company, person, product, or technology"}
		}
		if e.Mentions == nil || *e.Mentions < 1 || *e.Mentions != math.Trunc(*e.Mentions) {
			return intel.AnalysisResult{}, &intel.ValidationError{Field: "mentions", Reason: "must be an integer >= 1"}
		}
		entities = append(entities, intel.Entity{
			Text:     *e.Text,
			Type:     *e.Type,
			Mentions: int(*e.Mentions),
		})
	}

	if raw.Classification == nil {
		return intel.AnalysisResult{}, &intel.ValidationError{Field: "classification", Reason: "missing"}
	}
	if !intel.ValidClassification(*raw.Classification) {
		return intel.AnalysisResult{}, &intel.ValidationError{Field: "classification", Reason: "unknown value " + *raw.Classification}
	}

	if raw.SentimentScore == nil {
		return intel.AnalysisResult{}, &intel.ValidationError{Field: "sentimentScore", Reason: "missing"}
	}
	score := *raw.SentimentScore
	if score != math.Trunc(score) {
		return intel.AnalysisResult{}, &intel.ValidationError{Field: "sentimentScore", Reason: "must be an integer"}
	}
	if score < 1 || score > 10 {
		return intel.AnalysisResult{}, &intel.ValidationError{Field: "sentimentScore", Reason: "must be in [1,10]"}
	}

	return intel.AnalysisResult{
		Summary:        *raw.Summary,
		Entities:       entities,
		Classification: *raw.Classification,
		SentimentScore: int(score),
	}, nil
}
