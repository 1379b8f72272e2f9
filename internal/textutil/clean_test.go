package textutil

import (
	"strings"
	"testing"
)

func TestCleanTextNormalizesLineBreaks(t *testing.T) {
	t.Parallel()

	got := CleanText("line one\r\nline two\rline three")
	want := "line one\nline two\nline three"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCleanTextCollapsesRuns(t *testing.T) {
	t.Parallel()

	got := CleanText("a     b\n\n\n\n\nc")
	if got != "a  b\n\nc" {
		t.Fatalf("got %q", got)
	}
}

func TestCleanTextTrimsAndHandlesEmpty(t *testing.T) {
	t.Parallel()

	if got := CleanText("  \n padded \n  "); got != "padded" {
		t.Fatalf("got %q", got)
	}
	if got := CleanText(""); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestTitleFromContentFirstLine(t *testing.T) {
	t.Parallel()

	got := TitleFromContent("NVIDIA Announces New AI Chip\nBody text follows here.")
	if got != "NVIDIA Announces New AI Chip" {
		t.Fatalf("got %q", got)
	}
}

func TestTitleFromContentCapsAtWordBoundary(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 60) // 300 chars, no newline
	got := TitleFromContent(long)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis marker, got %q", got)
	}
	if len(got) > titleMaxLen+3 {
		t.Fatalf("title too long: %d chars", len(got))
	}
	if strings.Contains(strings.TrimSuffix(got, "..."), "wor ") {
		t.Fatalf("expected cut at word boundary, got %q", got)
	}
}

func TestTitleFromContentEmptyInput(t *testing.T) {
	t.Parallel()

	if got := TitleFromContent(""); got != "Untitled Article" {
		t.Fatalf("got %q", got)
	}
}
