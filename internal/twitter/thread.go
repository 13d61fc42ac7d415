package twitter

import (
	"strings"
	"unicode/utf8"

	"github.com/hasan199191/crobot/internal/logging"
)

// splitSafetyMargin keeps splits clear of the limit so trailing
// punctuation or a counted-wider character never pushes a part over.
const splitSafetyMargin = 20

var sentenceEndings = []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}

// SplitThread splits content into tweet-sized parts without breaking
// sentences when a sentence boundary exists inside the safe window,
// falling back to the last word boundary, and force-splitting as a last
// resort. Every returned part is at most limit characters.
func SplitThread(content string, limit int) []string {
	if limit <= splitSafetyMargin {
		limit = splitSafetyMargin + 1
	}

	var parts []string
	remaining := strings.TrimSpace(content)

	for remaining != "" {
		if len(remaining) <= limit {
			parts = append(parts, remaining)
			break
		}

		splitIdx := findSentenceBoundary(remaining, limit)
		if splitIdx == 0 {
			// No boundary at all: force a split inside the margin.
			splitIdx = runeSafeCut(remaining, min(limit-splitSafetyMargin, len(remaining)))
		}

		parts = append(parts, strings.TrimSpace(remaining[:splitIdx]))
		remaining = strings.TrimSpace(remaining[splitIdx:])
	}

	// Belt and braces: force-split anything that slipped past the limit.
	for i := 0; i < len(parts); i++ {
		if len(parts[i]) <= limit {
			continue
		}
		logging.Get(logging.CategoryCompose).Warn("thread part %d exceeds limit (%d chars), forcing split", i+1, len(parts[i]))
		cut := runeSafeCut(parts[i], limit-splitSafetyMargin)
		first := strings.TrimSpace(parts[i][:cut])
		second := strings.TrimSpace(parts[i][cut:])
		parts[i] = first
		parts = append(parts[:i+1], append([]string{second}, parts[i+1:]...)...)
	}

	logging.Compose("split content into %d parts", len(parts))
	return parts
}

// runeSafeCut moves a byte index back to the nearest rune start so a
// forced split never lands inside a multi-byte character. When backing
// up would produce an empty part, it advances past the first rune
// instead.
func runeSafeCut(s string, idx int) int {
	if idx >= len(s) {
		return len(s)
	}
	for idx > 0 && !utf8.RuneStart(s[idx]) {
		idx--
	}
	if idx == 0 {
		_, n := utf8.DecodeRuneInString(s)
		return n
	}
	return idx
}

// findSentenceBoundary returns the index to split text at, preferring
// the last sentence ending before the safe maximum, then the last word
// boundary. Returns 0 when neither exists.
func findSentenceBoundary(text string, maxLength int) int {
	if len(text) <= maxLength {
		return len(text)
	}

	safeMax := min(maxLength-splitSafetyMargin, len(text))
	wordBoundary := 0

	for i := safeMax; i > 0; i-- {
		for _, ending := range sentenceEndings {
			if i < len(text) && strings.HasPrefix(text[i-1:], ending) {
				return i
			}
		}
		if wordBoundary == 0 && text[i] == ' ' {
			wordBoundary = i
		}
	}
	return wordBoundary
}
