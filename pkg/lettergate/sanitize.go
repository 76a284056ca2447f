package lettergate

import (
	"strings"
	"unicode"
)

// Sanitize strips the letter text down to a conservative whitelist before it
// is sent upstream: ASCII letters, digits, whitespace and ". , ! ?".
// Everything else is removed. The original text, not the sanitized form, is
// what gets persisted in the usage record.
func Sanitize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(r)
		case r == '.' || r == ',' || r == '!' || r == '?':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// WordCount returns the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
