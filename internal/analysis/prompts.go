// Package analysis turns raw articles into structured intelligence via
// a single-pass LLM call and validates the model's JSON output.
package analysis

import (
	"fmt"
	"time"

	"newswatch/internal/intel"
)

// systemPrompt pins the output contract. The model is told to emit only
// the JSON object, which keeps the brace-scanning extraction in the
// validator honest.
const systemPrompt = `You are an expert analyst for enterprise competitive intelligence.
Your task is to analyze news articles and extract key information in a structured format.

You must respond with ONLY valid JSON matching this exact schema:
{
  "summary": "string (20-500 characters)",
  "entities": [
    {
      "text": "string",
      "type": "company|person|product|technology",
      "mentions": number (>= 1)
    }
  ],
  "classification": "competitive_news|personnel_change|product_launch|market_trend",
  "sentimentScore": number (1-10)
}

Guidelines:
- summary: Concise 1-2 sentence summary of the article
- entities: Extract up to 10 most important entities (companies, people, products, technologies)
- classification: Choose ONE that best fits the article
- sentimentScore: 1=very negative, 5=neutral, 10=very positive

Respond with ONLY the JSON object, no additional text.`

// SystemPrompt returns the analysis system prompt.
func SystemPrompt() string {
	return systemPrompt
}

// BuildUserPrompt assembles the per-article prompt around content that
// has already been bounded by the truncator.
func BuildUserPrompt(article intel.Article, truncatedContent string) string {
	return fmt.Sprintf(`Analyze this article:

Title: %s
URL: %s
Published: %s

Content:
%s

Provide your analysis as a JSON object following the schema provided.`,
		article.Title,
		article.URL,
		article.PublishDate.Format(time.RFC3339),
		truncatedContent,
	)
}
