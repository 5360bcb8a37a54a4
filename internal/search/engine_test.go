package search

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-dashboard/internal/config"
	"telemetry-dashboard/internal/corpus"
	"telemetry-dashboard/internal/errs"
	"telemetry-dashboard/internal/model"
	"telemetry-dashboard/internal/store"
	"telemetry-dashboard/pkg/logger"
)

var testNow = time.Date(2024, 6, 12, 12, 0, 0, 0, time.Local)

func newEngine(t *testing.T, docs []corpus.Document) (*Engine, store.Store) {
	t.Helper()
	s, err := store.OpenMemory(logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	c := corpus.New(logger.NewNopLogger(), nil)
	_, err = c.RebuildDocuments(context.Background(), docs)
	require.NoError(t, err)

	e := NewEngine(c, NewFeedback(s, logger.NewNopLogger()), config.DefaultConfigSearch, nil, logger.NewNopLogger())
	e.now = func() time.Time { return testNow }
	return e, s
}

func ids(results []Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Document.ID)
	}
	return out
}

func TestSearch_TitleBoostBeatsTermFrequency(t *testing.T) {
	e, _ := newEngine(t, []corpus.Document{
		{ID: "A", Kind: corpus.KindEvent, Title: "render hourly chart", Content: "chart hourly"},
		{ID: "B", Kind: corpus.KindEvent, Title: "misc", Content: "chart chart chart chart"},
	})
	resp := e.Search(context.Background(), "chart")
	require.NoError(t, resp.Error)
	assert.Equal(t, []string{"A", "B"}, ids(resp.Results))
	assert.Equal(t, 1.0, resp.Results[0].Scores.Fulltext)
	assert.Equal(t, 1.0, resp.Results[1].Scores.BM25)
}

func TestSearch_TypeFilter(t *testing.T) {
	day := time.Date(testNow.Year(), testNow.Month(), testNow.Day(), 0, 0, 0, 0, testNow.Location())
	events := []model.Event{{ID: "e1", Timestamp: day.Add(11 * time.Hour).UnixMilli(), Type: "file-change",
		FilePath: "/ws/dashboard.go", WorkspacePath: "/ws"}}
	prompts := []model.Prompt{{ID: "p1", Timestamp: day.Add(9 * time.Hour).UnixMilli(), Text: "make the dashboard load faster"}}
	e, _ := newEngine(t, corpus.BuildDocuments(events, prompts, nil))

	resp := e.Search(context.Background(), "type:prompt dashboard")
	require.Len(t, resp.Results, 1)
	assert.Equal(t, corpus.KindPrompt, resp.Results[0].Document.Kind)
	assert.Equal(t, 1, resp.Total)

	resp = e.Search(context.Background(), "dashboard date:today")
	assert.Len(t, resp.Results, 2)
	resp = e.Search(context.Background(), "dashboard date:yesterday")
	assert.Empty(t, resp.Results)
}

func TestSearch_FilterOnlyListsNewestFirst(t *testing.T) {
	e, _ := newEngine(t, []corpus.Document{
		{ID: "p1", Kind: corpus.KindPrompt, Title: "one", Timestamp: 1},
		{ID: "p2", Kind: corpus.KindPrompt, Title: "two", Timestamp: 2},
		{ID: "e1", Kind: corpus.KindEvent, Title: "three", Timestamp: 3},
	})
	resp := e.Search(context.Background(), "type:prompt")
	assert.Equal(t, []string{"p2", "p1"}, ids(resp.Results))
}

func TestSearch_IdempotentAndCached(t *testing.T) {
	var docs []corpus.Document
	for i := 0; i < 30; i++ {
		docs = append(docs, corpus.Document{ID: fmt.Sprintf("d%02d", i), Kind: corpus.KindEvent,
			Title: fmt.Sprintf("file%d.go", i), Content: strings.Repeat("parser ", i%4+1) + "lexer", Timestamp: int64(i)})
	}
	e, _ := newEngine(t, docs)
	first := e.Search(context.Background(), "parser lexer")
	second := e.Search(context.Background(), "parser lexer")
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, ids(first.Results), ids(second.Results))

	e.Purge()
	third := e.Search(context.Background(), "parser lexer")
	assert.False(t, third.Cached)
	assert.Equal(t, ids(first.Results), ids(third.Results))
}

func TestSearch_ExactTitleMatchInTopFive(t *testing.T) {
	var docs []corpus.Document
	for i := 0; i < 40; i++ {
		docs = append(docs, corpus.Document{ID: fmt.Sprintf("n%02d", i), Kind: corpus.KindEvent,
			Title: "notes.md", Content: strings.Repeat("websocket reconnect ", 5), Timestamp: testNow.UnixMilli()})
	}
	docs = append(docs, corpus.Document{ID: "target", Kind: corpus.KindEvent, Title: "websocket reconnect handler",
		Content: "handler", Timestamp: 0})
	e, _ := newEngine(t, docs)

	resp := e.Search(context.Background(), "websocket reconnect")
	top := ids(resp.Results)
	require.GreaterOrEqual(t, len(top), 5)
	assert.Contains(t, top[:5], "target")
}

func TestSearch_SynonymsAndFuzzy(t *testing.T) {
	e, _ := newEngine(t, []corpus.Document{
		{ID: "err", Kind: corpus.KindPrompt, Title: "exception in loader", Content: "exception in loader"},
		{ID: "chart", Kind: corpus.KindEvent, Title: "chart.js", Content: "plot"},
	})
	resp := e.Search(context.Background(), "bug")
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "err", resp.Results[0].Document.ID)

	resp = e.Search(context.Background(), "chrat")
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "chart", resp.Results[0].Document.ID)
	assert.Equal(t, 1.0, resp.Results[0].Scores.Fuzzy)
}

func TestSearch_InvalidFilterStillSearches(t *testing.T) {
	e, _ := newEngine(t, []corpus.Document{{ID: "a", Kind: corpus.KindEvent, Title: "chart"}})
	resp := e.Search(context.Background(), "type:commit chart")
	assert.True(t, errs.Is(resp.Error, errs.KindUserInput))
	assert.Len(t, resp.Results, 1)
}

func TestSearch_EmptyQueryReturnsSuggestions(t *testing.T) {
	e, _ := newEngine(t, nil)
	e.feedback.RecordSearch(context.Background(), "chart", 1, 1)

	resp := e.Search(context.Background(), "   ")
	assert.Empty(t, resp.Results)
	require.NotEmpty(t, resp.Suggestions)
	assert.Equal(t, Suggestion{Kind: SuggestRecent, Text: "chart"}, resp.Suggestions[0])

	resp = e.Search(context.Background(), "chart")
	assert.Empty(t, resp.Results)
	assert.NoError(t, resp.Error)
}

func TestSuggest(t *testing.T) {
	e, _ := newEngine(t, nil)
	got := e.Suggest("dash da")
	assert.Contains(t, got, Suggestion{Kind: SuggestFilter, Text: "dash date:today"})
	assert.Contains(t, got, Suggestion{Kind: SuggestFilter, Text: "dash date:month"})

	got = e.Suggest("type:p")
	assert.Equal(t, []Suggestion{{Kind: SuggestFilter, Text: "type:prompt"}}, got)
}

func TestSearch_ClickPreferenceChangesRanking(t *testing.T) {
	e, _ := newEngine(t, []corpus.Document{
		{ID: "event:a", Kind: corpus.KindEvent, Title: "sync", Content: "sync", Timestamp: 0},
		{ID: "prompt:b", Kind: corpus.KindPrompt, Title: "sync", Content: "sync", Timestamp: 0},
	})
	before := e.Search(context.Background(), "sync")
	require.Len(t, before.Results, 2)
	assert.Equal(t, before.Results[0].Score, before.Results[1].Score)

	for i := 0; i < 5; i++ {
		e.RecordClick(context.Background(), "prompt:b")
	}
	after := e.Search(context.Background(), "sync")
	assert.False(t, after.Cached)
	require.Len(t, after.Results, 2)
	assert.Equal(t, "prompt:b", after.Results[0].Document.ID)
	assert.Greater(t, after.Results[0].Score, after.Results[1].Score)
}

func TestSnippet(t *testing.T) {
	content := "Intro sentence here. The chart renders hourly buckets! Nothing else."
	assert.Equal(t, "The chart renders hourly buckets!", Snippet(content, []string{"chart", "hourly"}))

	long := strings.Repeat("lorem ipsum ", 40) + "needle " + strings.Repeat("dolor sit ", 40)
	s := Snippet(long, []string{"needle"})
	assert.LessOrEqual(t, utf8.RuneCountInString(s), SnippetLength)
	assert.True(t, strings.HasPrefix(s, ellipsis))
	assert.True(t, strings.HasSuffix(s, ellipsis))
	assert.Contains(t, s, "needle")

	assert.Equal(t, "short", Snippet("short", []string{"none"}))
	assert.Empty(t, Snippet("", nil))
}

func TestClusterResults(t *testing.T) {
	hour := int64(60 * 60 * 1000)
	res := func(d corpus.Document) Result { return Result{Document: d} }
	results := []Result{
		res(corpus.Document{ID: "e1", Kind: corpus.KindEvent, Workspace: "/a", Timestamp: 0,
			Metadata: corpus.Metadata{EventType: "file-change", FilePath: "/a/src/x.go"}}),
		res(corpus.Document{ID: "p1", Kind: corpus.KindPrompt, Workspace: "/b", Timestamp: 0,
			Metadata: corpus.Metadata{ComposerID: "c1"}}),
		res(corpus.Document{ID: "e2", Kind: corpus.KindEvent, Workspace: "/z", Timestamp: 10 * hour,
			Metadata: corpus.Metadata{EventType: "file-change", FilePath: "/a/src/y.go"}}),
		res(corpus.Document{ID: "p2", Kind: corpus.KindPrompt, Workspace: "/c", Timestamp: 50 * hour,
			Metadata: corpus.Metadata{ComposerID: "c1"}}),
		res(corpus.Document{ID: "w1", Kind: corpus.KindWorkspace, Workspace: "/d", Timestamp: 0}),
	}
	clusters := ClusterResults(results)
	require.Len(t, clusters, 2)
	assert.Equal(t, []string{"e1", "e2"}, clusters[0].ResultIDs)
	assert.Equal(t, ReasonDirectory, clusters[0].Reason)
	assert.Equal(t, []string{"p1", "p2"}, clusters[1].ResultIDs)
	assert.Equal(t, ReasonConversation, clusters[1].Reason)

	var many []Result
	for i := 0; i < 20; i++ {
		ws := fmt.Sprintf("/w%d", i/2)
		many = append(many, res(corpus.Document{ID: fmt.Sprintf("d%d", i), Kind: corpus.KindWorkspace, Workspace: ws}))
	}
	assert.Len(t, ClusterResults(many), MaxClusters)
}
