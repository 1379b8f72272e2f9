package textutil

import (
	"regexp"
	"strings"
)

var (
	runsOfSpaces   = regexp.MustCompile(` {3,}`)
	runsOfNewlines = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes text extracted from web pages: line breaks become
// "\n", runs of 3+ spaces collapse to 2, runs of 3+ newlines collapse to
// 2, and surrounding whitespace is trimmed.
func CleanText(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = runsOfSpaces.ReplaceAllString(text, "  ")
	text = runsOfNewlines.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// titleMaxLen caps titles derived from content.
const titleMaxLen = 200

// TitleFromContent derives a title when the page offered none: the first
// line of the cleaned content, capped at 200 characters and cut at a word
// boundary with an ellipsis marker when shortened.
func TitleFromContent(content string) string {
	if content == "" {
		return "Untitled Article"
	}

	firstLine := content
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		firstLine = content[:idx]
	}

	if len(firstLine) > titleMaxLen {
		capped := firstLine[:titleMaxLen]
		if space := strings.LastIndexByte(capped, ' '); space > 0 {
			capped = capped[:space]
		}
		firstLine = capped + "..."
	}

	return strings.TrimSpace(firstLine)
}
