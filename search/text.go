package search

import (
	"strings"
	"unicode/utf8"
)

// minTokenRunes is the shortest query token that counts on its own.
const minTokenRunes = 3

// normalizeText lowercases text, treats underscores as spaces and collapses
// whitespace, so "night_club" and "Night  Club" compare equal.
func normalizeText(text string) string {
	text = strings.ReplaceAll(strings.ToLower(text), "_", " ")
	return strings.Join(strings.Fields(text), " ")
}

// queryTokens splits a normalized query into words long enough to score.
func queryTokens(query string) []string {
	words := strings.Fields(query)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		// Trim punctuation so "coffee," still matches
		cleaned := strings.Trim(word, ".,!?;:'\"-()[]{}")
		if utf8.RuneCountInString(cleaned) >= minTokenRunes {
			tokens = append(tokens, cleaned)
		}
	}
	return tokens
}

// anyContains reports whether any normalized tag contains needle.
func anyContains(tags []string, needle string) bool {
	for _, tag := range tags {
		if strings.Contains(tag, needle) {
			return true
		}
	}
	return false
}
