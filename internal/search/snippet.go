package search

import (
	"strings"
	"unicode/utf8"

	"telemetry-dashboard/internal/corpus"
)

const (
	SnippetLength = 200
	ellipsis      = "…"
	snippetLead   = 60
)

// Snippet picks the sentence of content with the most query tokens and
// trims it to SnippetLength runes around the first matching token.
func Snippet(content string, tokens []string) string {
	content = strings.Join(strings.Fields(content), " ")
	if content == "" {
		return ""
	}
	want := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		want[t] = struct{}{}
	}

	best, bestHits := content, -1
	for _, s := range splitSentences(content) {
		hits := 0
		for _, tok := range corpus.Tokenize(s) {
			if _, ok := want[tok]; ok {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = s, hits
		}
	}
	if bestHits <= 0 {
		best = content
	}
	return trimAround(best, firstMatch(best, tokens))
}

func splitSentences(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if part := strings.TrimSpace(s[start : i+1]); part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	if part := strings.TrimSpace(s[start:]); part != "" {
		out = append(out, part)
	}
	return out
}

// firstMatch is the rune offset of the earliest query token in s, or 0.
func firstMatch(s string, tokens []string) int {
	lower := strings.ToLower(s)
	pos := -1
	for _, t := range tokens {
		if i := strings.Index(lower, t); i >= 0 && (pos < 0 || i < pos) {
			pos = i
		}
	}
	if pos < 0 {
		return 0
	}
	return utf8.RuneCountInString(lower[:pos])
}

func trimAround(s string, at int) string {
	r := []rune(s)
	if len(r) <= SnippetLength {
		return s
	}
	start := max(0, at-snippetLead)
	prefix, suffix := "", ""
	if start > 0 {
		prefix = ellipsis
	}
	room := SnippetLength - utf8.RuneCountInString(prefix)
	end := start + room
	if end < len(r) {
		suffix = ellipsis
		end -= utf8.RuneCountInString(suffix)
	} else {
		end = len(r)
		start = max(0, end-room)
		if start == 0 {
			prefix = ""
		}
	}
	return prefix + strings.TrimSpace(string(r[start:end])) + suffix
}
