package search

// Each group is a set of interchangeable terms; expansion is symmetric.
var synonymGroups = [][]string{
	{"function", "method", "func", "procedure"},
	{"error", "bug", "exception", "failure", "issue"},
	{"test", "spec", "unittest"},
	{"component", "widget", "module"},
	{"refactor", "cleanup", "restructure"},
	{"create", "add", "new"},
	{"delete", "remove", "drop"},
	{"update", "modify", "edit", "change"},
	{"rename", "move"},
	{"config", "configuration", "settings"},
	{"database", "storage", "persistence"},
	{"api", "endpoint", "route"},
	{"style", "css", "theme"},
	{"prompt", "query", "question"},
	{"model", "llm", "gpt", "claude"},
	{"conversation", "chat", "dialog"},
	{"assistant", "copilot", "agent"},
	{"context", "tokens", "window"},
	{"file", "document"},
	{"folder", "directory", "dir"},
}

const synonymWeight = 0.5

var synonyms = buildSynonyms(synonymGroups)

func buildSynonyms(groups [][]string) map[string][]string {
	out := make(map[string][]string)
	for _, g := range groups {
		for _, a := range g {
			for _, b := range g {
				if a != b {
					out[a] = append(out[a], b)
				}
			}
		}
	}
	return out
}

// Synonyms returns the terms interchangeable with token.
func Synonyms(token string) []string {
	return synonyms[token]
}

// expand weighs the query tokens at 1 and their synonyms at synonymWeight.
func expand(tokens []string) map[string]float64 {
	out := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		out[t] = 1
	}
	for _, t := range tokens {
		for _, s := range synonyms[t] {
			if _, ok := out[s]; !ok {
				out[s] = synonymWeight
			}
		}
	}
	return out
}
