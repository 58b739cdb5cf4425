package postservice

import (
	"regexp"
	"strings"
)

var sentenceBoundaryRX = regexp.MustCompile(`[.!?]\s+`)

// Excerpt returns the first n sentences of content. A sentence ends at '.', '!' or '?' followed by
// whitespace.
func Excerpt(content string, n int) string {
	if content == "" || n < 1 {
		return ""
	}

	var sentences []string
	start := 0
	for _, loc := range sentenceBoundaryRX.FindAllStringIndex(content, -1) {
		sentences = append(sentences, content[start:loc[0]+1])
		start = loc[1]
		if len(sentences) == n {
			break
		}
	}
	if len(sentences) < n && start < len(content) {
		sentences = append(sentences, content[start:])
	}

	return strings.TrimSpace(strings.Join(sentences, " "))
}
