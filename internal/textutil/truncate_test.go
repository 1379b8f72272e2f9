package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateShortInputUnchanged(t *testing.T) {
	t.Parallel()

	in := "short text"
	out, truncated := Truncate(in, 100)
	if out != in || truncated {
		t.Fatalf("expected unchanged input, got %q truncated=%v", out, truncated)
	}

	out, truncated = Truncate(in, len(in))
	if out != in || truncated {
		t.Fatalf("expected input at exact limit unchanged, got %q truncated=%v", out, truncated)
	}
}

func TestTruncatePrefersParagraphBreak(t *testing.T) {
	t.Parallel()

	// Paragraph break at index 90 of a 100-char budget, past the 80% mark.
	text := strings.Repeat("a", 90) + "\n\n" + strings.Repeat("b", 40)
	out, truncated := Truncate(text, 100)
	if !truncated {
		t.Fatal("expected truncation")
	}
	if out != strings.Repeat("a", 90) {
		t.Fatalf("expected rewind to paragraph break, got %d chars", len(out))
	}
}

func TestTruncateFallsBackToSentence(t *testing.T) {
	t.Parallel()

	// No paragraph break; last period at index 84 keeps the sentence.
	text := strings.Repeat("a", 84) + "." + strings.Repeat("b", 40)
	out, truncated := Truncate(text, 100)
	if !truncated {
		t.Fatal("expected truncation")
	}
	if !strings.HasSuffix(out, ".") || len(out) != 85 {
		t.Fatalf("expected sentence-boundary cut at 85 chars, got %d", len(out))
	}
}

func TestTruncateHardCutWhenBoundariesTooEarly(t *testing.T) {
	t.Parallel()

	// The only period sits before the 80% mark, so the hard cut stands.
	text := strings.Repeat("a", 40) + "." + strings.Repeat("b", 100)
	out, truncated := Truncate(text, 100)
	if !truncated {
		t.Fatal("expected truncation")
	}
	if len(out) != 100 {
		t.Fatalf("expected hard cut at 100 chars, got %d", len(out))
	}
}

func TestTruncateCountsRunesNotBytes(t *testing.T) {
	t.Parallel()

	// 120 three-byte runes. A byte-offset cut at 100 would land mid-rune
	// and keep only a third of the text.
	text := strings.Repeat("日", 120)
	out, truncated := Truncate(text, 100)
	if !truncated {
		t.Fatal("expected truncation")
	}
	if !utf8.ValidString(out) {
		t.Fatal("output contains a split rune")
	}
	if got := utf8.RuneCountInString(out); got != 100 {
		t.Fatalf("expected 100 runes, got %d", got)
	}
}

func TestTruncateMultibyteSentenceBoundary(t *testing.T) {
	t.Parallel()

	// Period at rune index 84, past the 80% mark of a 100-rune budget.
	text := strings.Repeat("é", 84) + "." + strings.Repeat("é", 40)
	out, truncated := Truncate(text, 100)
	if !truncated {
		t.Fatal("expected truncation")
	}
	if !strings.HasSuffix(out, ".") || utf8.RuneCountInString(out) != 85 {
		t.Fatalf("expected sentence-boundary cut at 85 runes, got %d", utf8.RuneCountInString(out))
	}
}

func TestTruncateOutputNeverExceedsLimit(t *testing.T) {
	t.Parallel()

	inputs := []string{
		strings.Repeat("word ", 500),
		strings.Repeat("sentence. ", 300),
		strings.Repeat("para\n\n", 200),
	}
	for _, in := range inputs {
		out, truncated := Truncate(in, 256)
		if !truncated {
			t.Fatalf("expected truncation for %d-char input", len(in))
		}
		if len(out) > 256 {
			t.Fatalf("output %d chars exceeds limit", len(out))
		}
	}
}
