// Package textutil provides pure text helpers for cleanup, title
// derivation, and inference-size truncation.
package textutil

import "strings"

// Truncate bounds text to maxChars runes for inference, so a cut never
// splits a multibyte character. When a cut is needed it prefers rewinding
// to the last paragraph break, then to the last sentence-terminating
// period, but only if the boundary sits at or after 80% of maxChars;
// otherwise the hard cut stands. The second return is true iff the input
// exceeded the limit.
func Truncate(text string, maxChars int) (string, bool) {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text, false
	}

	cut := string(runes[:maxChars])
	// Boundary searches work on byte offsets, so express the 80% rune
	// threshold as the byte offset where that rune starts.
	threshold := len(string(runes[:maxChars*8/10]))

	if para := strings.LastIndex(cut, "\n\n"); para >= threshold {
		return cut[:para], true
	}
	if period := strings.LastIndex(cut, "."); period >= threshold {
		return cut[:period+1], true
	}
	return cut, true
}
