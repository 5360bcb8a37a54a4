package search

import (
	"strings"
)

const (
	maxSuggestions = 10
	popularLimit   = 5
)

type SuggestionKind string

const (
	SuggestFilter  SuggestionKind = "filter"
	SuggestRecent  SuggestionKind = "recent"
	SuggestPopular SuggestionKind = "popular"
)

type Suggestion struct {
	Kind SuggestionKind `json:"kind"`
	Text string         `json:"text"`
}

var filterExamples = map[string][]string{
	FilterType:      {"type:event", "type:prompt", "type:workspace"},
	FilterWorkspace: {"workspace:"},
	FilterDate:      {"date:today", "date:yesterday", "date:week", "date:month"},
	FilterMode:      {"mode:"},
	FilterContext:   {"context:true", "context:false"},
}

// Suggest completes a partial query: filter keys and values for the last
// word, then recent and popular searches starting with the input.
func (e *Engine) Suggest(partial string) []Suggestion {
	prefix := strings.ToLower(strings.TrimLeft(partial, " "))
	var out []Suggestion
	seen := make(map[string]struct{})
	add := func(kind SuggestionKind, text string) {
		if _, dup := seen[text]; dup || len(out) >= maxSuggestions {
			return
		}
		seen[text] = struct{}{}
		out = append(out, Suggestion{Kind: kind, Text: text})
	}

	if fields := strings.Fields(prefix); len(fields) > 0 && !strings.HasSuffix(prefix, " ") {
		last := fields[len(fields)-1]
		head := strings.TrimSuffix(prefix, last)
		for _, key := range FilterKeys {
			for _, ex := range filterExamples[key] {
				if strings.HasPrefix(ex, last) && ex != last {
					add(SuggestFilter, head+ex)
				}
			}
		}
	}
	for _, h := range e.feedback.History() {
		if strings.HasPrefix(strings.ToLower(h.Query), prefix) {
			add(SuggestRecent, h.Query)
		}
	}
	for _, p := range e.feedback.Popular(popularLimit) {
		if strings.HasPrefix(strings.ToLower(p.Query), prefix) {
			add(SuggestPopular, p.Query)
		}
	}
	return out
}
