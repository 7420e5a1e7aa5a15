package store

import "strings"

// Tokenize lowercases text and splits it on whitespace. Punctuation stays
// attached to its word and nothing is stemmed or dropped, so "Cancer," and
// "cancer" are different tokens.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// TokenizeAll tokenizes every text, preserving order.
func TokenizeAll(texts []string) [][]string {
	out := make([][]string, len(texts))
	for i, t := range texts {
		out[i] = Tokenize(t)
	}
	return out
}
