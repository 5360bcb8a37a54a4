package navigator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-dashboard/internal/model"
)

func nodeWithSessions(id, ws, dir string, sessions ...string) FileNode {
	n := FileNode{ID: id, Workspace: ws, Directory: dir}
	for i, s := range sessions {
		n.Events = append(n.Events, model.Event{ID: fmt.Sprintf("%s-%d", id, i), SessionID: s, FilePath: id})
	}
	return n
}

func TestAffinity_JaccardWithDirectoryBoost(t *testing.T) {
	a := nodeWithSessions("/proj/x/a.go", "/w1", "/proj/x", "s1", "s2")
	b := nodeWithSessions("/proj/y/b.go", "/w2", "/proj/y", "s1", "s2", "s3")

	sa, sb := sessionSet(a), sessionSet(b)
	assert.InDelta(t, 2.0/3.0, Jaccard(sa, sb), 1e-9)
	common, depth := CommonPrefixDepth(a.Directory, b.Directory)
	assert.Equal(t, 1, common)
	assert.Equal(t, 2, depth)

	sim := Affinity(a, b, sa, sb)
	assert.InDelta(t, 0.7333, sim, 1e-4)

	edges, err := BuildEdges(context.Background(), []FileNode{a, b}, 0.3, nil)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "/proj/x/a.go", edges[0].Source)
	assert.False(t, edges[0].SameWorkspace)
	assert.False(t, edges[0].SameDirectory)
}

func TestAffinity_SameWorkspaceClampsToOne(t *testing.T) {
	a := nodeWithSessions("/w/src/a.go", "/w", "/w/src", "s1")
	b := nodeWithSessions("/w/src/b.go", "/w", "/w/src", "s1")
	assert.Equal(t, 1.0, Affinity(a, b, sessionSet(a), sessionSet(b)))
}

func TestSessionSet_BucketsMissingSessions(t *testing.T) {
	n := FileNode{Events: []model.Event{
		{Timestamp: 0}, {Timestamp: sessionBucketMillis - 1}, {Timestamp: sessionBucketMillis}, {SessionID: "s", Timestamp: 0},
	}}
	assert.Len(t, sessionSet(n), 3)
}

func TestBuildEdges_Invariants(t *testing.T) {
	var nodes []FileNode
	for i := 0; i < 30; i++ {
		sessions := []string{fmt.Sprintf("s%d", i%4), fmt.Sprintf("s%d", i%7)}
		nodes = append(nodes, nodeWithSessions(fmt.Sprintf("/w%d/d%d/f%d.go", i%2, i%3, i), fmt.Sprintf("/w%d", i%2),
			fmt.Sprintf("/w%d/d%d", i%2, i%3), sessions...))
	}
	edges, err := BuildEdges(context.Background(), nodes, 0.3, nil)
	require.NoError(t, err)
	require.NotEmpty(t, edges)

	seen := map[[2]string]bool{}
	for _, e := range edges {
		assert.NotEqual(t, e.Source, e.Target)
		assert.GreaterOrEqual(t, e.Similarity, 0.3)
		assert.LessOrEqual(t, e.Similarity, 1.0)
		assert.False(t, seen[[2]string{e.Target, e.Source}], "edge listed in both directions")
		seen[[2]string{e.Source, e.Target}] = true
	}

	byID := map[string]FileNode{}
	for _, n := range nodes {
		byID[n.ID] = n
	}
	for _, e := range edges[:min(5, len(edges))] {
		a, b := byID[e.Source], byID[e.Target]
		assert.Equal(t, Affinity(a, b, sessionSet(a), sessionSet(b)), Affinity(b, a, sessionSet(b), sessionSet(a)))
	}
}
