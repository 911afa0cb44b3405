package parser

import (
	"strings"
	"unicode/utf8"
)

// CleanText strips invalid UTF-8 sequences and supplementary-plane symbols
// (emoji and the like) so chunks are safe to embed.
func CleanText(text string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == utf8.RuneError {
			continue
		}
		if r > 0xFFFF {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
