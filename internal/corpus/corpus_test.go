package corpus

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-dashboard/internal/errs"
	"telemetry-dashboard/internal/model"
	"telemetry-dashboard/pkg/logger"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"lowercase and split", "Render-Hourly.Chart", []string{"render", "hourly", "chart"}},
		{"short tokens dropped", "go is ok but rust", []string{"rust"}},
		{"stop words dropped", "the chart and the axis", []string{"chart", "axis"}},
		{"underscore is a word rune", "snake_case value", []string{"snake_case", "value"}},
		{"empty", "  ..  ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildDocuments(t *testing.T) {
	events := []model.Event{
		{ID: "e1", Timestamp: 1, Type: "file-change", FilePath: "/ws/src/app.go", WorkspacePath: "/ws",
			Details: model.EventDetails{LinesAdded: 3, BeforeContent: "old", AfterContent: "new"}},
		{ID: "e2", Timestamp: 2, FilePath: "/x/y.ts"},
		{ID: "e3", Timestamp: 3, Type: "terminal"},
	}
	prompts := []model.Prompt{
		{ID: "p1", Timestamp: 4, Text: "how do I draw the chart"},
		{ID: "p2", Timestamp: 5, Text: `{"raw":true}`},
		{ID: "p3", Timestamp: 6, Text: `[1,2]`, ComposerID: "c1", Source: model.PromptSourceComposer, ConversationTitle: "Charts"},
	}
	workspaces := []model.Workspace{{Path: "/ws", Name: "ws", LastActivity: 9}}

	docs := BuildDocuments(events, prompts, workspaces)
	require.Len(t, docs, 5)

	assert.Equal(t, "event:e1", docs[0].ID)
	assert.Equal(t, "app.go", docs[0].Title)
	assert.Equal(t, "app.go /ws/src/app.go old new", docs[0].Content)
	assert.Equal(t, "/ws", docs[0].Workspace)
	assert.Equal(t, 3, docs[0].Metadata.LinesAdded)
	assert.Equal(t, model.UnknownWorkspace, docs[1].Workspace)

	assert.Equal(t, "prompt:p1", docs[2].ID)
	assert.Equal(t, "how do I draw the chart", docs[2].Title)
	assert.Equal(t, "prompt:p3", docs[3].ID)
	assert.Equal(t, "Conversation: Charts", docs[3].Title)
	assert.True(t, docs[3].Metadata.IsConversation)

	assert.Equal(t, KindWorkspace, docs[4].Kind)
	assert.Equal(t, "ws /ws", docs[4].Content)
}

func TestBuild_SingleDocument(t *testing.T) {
	idx, err := Build(context.Background(), []Document{{ID: "d", Title: "chart", Content: "hourly chart"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(3), idx.AvgDocLength())
	assert.Equal(t, 3, idx.DocLength(0))

	scores := idx.BM25([]string{"chart"})
	require.Contains(t, scores, 0)
	assert.False(t, math.IsNaN(scores[0]) || math.IsInf(scores[0], 0))
	assert.Greater(t, scores[0], 0.0)

	// log(N/df) is zero with one document, so every vector is empty
	assert.Empty(t, idx.Vector(0))
	q, norm := idx.QueryVector([]string{"chart"}, nil)
	assert.Zero(t, idx.Cosine(0, q, norm))
}

func TestBuild_Statistics(t *testing.T) {
	docs := []Document{
		{ID: "a", Title: "render hourly chart", Content: "chart hourly"},
		{ID: "b", Title: "misc", Content: "chart chart chart chart"},
		{ID: "c", Title: "other", Content: "table rows"},
	}
	idx, err := Build(context.Background(), docs, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, 2, idx.DocFreq("chart"))
	assert.Equal(t, 2, idx.TokenCount(0, "chart"))
	posts := idx.Postings("chart")
	require.Len(t, posts, 2)
	assert.Equal(t, []int{2, 3}, posts[0].Positions)
	assert.Equal(t, []int{1, 2, 3, 4}, posts[1].Positions)

	i, ok := idx.Lookup("c")
	assert.True(t, ok)
	assert.Equal(t, 2, i)

	n, df := 3.0, 2.0
	assert.InDelta(t, math.Log((n-df+0.5)/(df+0.5)+1), idx.BM25IDF("chart"), 1e-9)
	assert.InDelta(t, math.Log(3.0/2.0), idx.IDF("chart"), 1e-9)

	// tf is count over max count: "chart" is the most frequent token in b
	assert.InDelta(t, math.Log(1.5), idx.Vector(1)["chart"], 1e-9)

	q, norm := idx.QueryVector([]string{"table"}, nil)
	assert.InDelta(t, 1.0/math.Sqrt(3), idx.Cosine(2, q, norm), 1e-9)
	assert.Zero(t, idx.Cosine(0, q, norm))
}

func TestCorpus_RebuildSwapsAtomically(t *testing.T) {
	ctx := context.Background()
	c := New(logger.NewNopLogger(), nil)
	assert.Zero(t, c.Current().Len())

	first, err := c.RebuildDocuments(ctx, []Document{{ID: "a", Title: "alpha"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Generation)
	assert.Same(t, first, c.Current())

	_, err = c.RebuildDocuments(ctx, []Document{{ID: "x"}, {ID: "x"}})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindIndexBuild))
	assert.Same(t, first, c.Current())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.RebuildDocuments(cancelled, []Document{{ID: "b"}})
	require.Error(t, err)
	assert.Same(t, first, c.Current())

	second, err := c.Rebuild(ctx, []model.Event{{ID: "e", FilePath: "/a.go"}}, nil, nil)
	require.NoError(t, err)
	assert.Greater(t, second.Generation, first.Generation)
	assert.Equal(t, 1, c.Current().Len())
}
