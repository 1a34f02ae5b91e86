// Package matching holds the lexical heuristics used to pick a reply: tokenizing,
// keyword-overlap scoring, category classification and feedback arithmetic.
// Everything here is pure and deterministic.
package matching

import (
	"strings"
	"unicode"
)

var stopWords = toSet(
	"the", "and", "for", "are", "but", "not", "you", "all", "any", "can", "had", "her", "was", "one",
	"our", "out", "day", "get", "has", "him", "his", "how", "its", "may", "new", "now", "old", "see",
	"two", "who", "did", "let", "put", "say", "she", "too", "use", "this", "that", "with", "have",
	"from", "they", "will", "would", "there", "their", "what", "about", "which", "when", "make",
	"like", "time", "just", "know", "take", "into", "your", "some", "could", "them", "than", "then",
	"been", "were", "does", "should", "want", "need", "please",
)

// domain keywords count as important regardless of length
var domainKeywords = toSet(
	"code", "javascript", "react", "python", "function", "variable", "debug", "html", "css", "api",
	"database", "error", "server", "deploy", "model", "train", "training", "learn", "data", "query",
	"golang", "docker", "test", "bug",
)

var questionWords = toSet(
	"what", "how", "why", "when", "where", "who", "which", "whose", "can", "could", "would", "should",
	"is", "are", "do", "does", "did", "will",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Normalize lower-cases and trims s.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// words splits s into lower-cased alphanumeric runs.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Tokenize returns the distinct content words of s: lower-cased, alphanumeric,
// longer than two characters and not a stop word. Order of first appearance is kept.
func Tokenize(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range words(s) {
		if len([]rune(w)) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func isImportant(token string) bool {
	if _, ok := domainKeywords[token]; ok {
		return true
	}
	return len([]rune(token)) > 6
}

// IsQuestion reports whether s opens with a question word or contains a question mark.
func IsQuestion(s string) bool {
	if strings.Contains(s, "?") {
		return true
	}
	ws := words(s)
	if len(ws) == 0 {
		return false
	}
	_, ok := questionWords[ws[0]]
	return ok
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
