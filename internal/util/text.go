package util

import (
	"strings"
)

// ExtractMentions extracts @username mentions from text content.
// Returns unique lowercase usernames without the @ symbol.
func ExtractMentions(content string) []string {
	return extractTokens(content, "@", 3, 30)
}

// ExtractHashtags extracts #tags from text content, lowercased and unique.
func ExtractHashtags(content string) []string {
	return extractTokens(content, "#", 2, 50)
}

func extractTokens(content, prefix string, minLen, maxLen int) []string {
	var tokens []string
	seen := make(map[string]bool)

	for _, word := range strings.Fields(content) {
		if !strings.HasPrefix(word, prefix) || len(word) <= 1 {
			continue
		}
		token := strings.TrimPrefix(word, prefix)
		token = strings.TrimRight(token, ".,!?;:)'\"")
		token = strings.ToLower(token)

		if !seen[token] && len(token) >= minLen && len(token) <= maxLen {
			seen[token] = true
			tokens = append(tokens, token)
		}
	}
	return tokens
}
