package navigator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKMeans_SeparatesBlobs(t *testing.T) {
	vecs := [][]float64{{0, 0}, {0.1, 0}, {0, 0.1}, {10, 10}, {10.1, 10}, {10, 10.1}}
	assign, err := KMeans(context.Background(), vecs, 2, rand.New(rand.NewPCG(1, 2)), nil)
	require.NoError(t, err)
	assert.Equal(t, assign[0], assign[1])
	assert.Equal(t, assign[0], assign[2])
	assert.Equal(t, assign[3], assign[4])
	assert.Equal(t, assign[3], assign[5])
	assert.NotEqual(t, assign[0], assign[3])

	good := Silhouette(vecs, assign, 2)
	assert.Greater(t, good, 0.9)
	assert.Less(t, Silhouette(vecs, []int{0, 1, 0, 1, 0, 1}, 2), good)
	assert.Zero(t, Silhouette(vecs, assign, 1))
}

func TestKMeans_Degenerate(t *testing.T) {
	assign, err := KMeans(context.Background(), [][]float64{{1}, {2}}, 1, rand.New(rand.NewPCG(1, 1)), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, assign)

	assign, err = KMeans(context.Background(), [][]float64{{1}, {1}, {1}}, 5, rand.New(rand.NewPCG(1, 1)), nil)
	require.NoError(t, err)
	assert.Len(t, assign, 3)
}

func TestClusterSizing(t *testing.T) {
	_, _, ok := SweepRange(100)
	assert.False(t, ok)
	var lo, hi int
	lo, hi, ok = SweepRange(400)
	assert.True(t, ok)
	assert.Equal(t, 20, lo)
	assert.Equal(t, 40, hi)
	lo, hi, ok = SweepRange(4000)
	assert.False(t, ok)
	assert.Equal(t, 100, lo)
	assert.Equal(t, 60, hi)

	assert.Equal(t, 1, SimpleK(1))
	assert.Equal(t, 2, SimpleK(4))
	assert.Equal(t, 5, SimpleK(50))
	assert.Equal(t, 8, SimpleK(1000))

	assert.Equal(t, 2, SemanticK(6))
	assert.Equal(t, 2, SemanticK(16))
	assert.Equal(t, 3, SemanticK(17))
	assert.Equal(t, 3, SemanticK(100))
}

func TestHierarchy(t *testing.T) {
	var nodes []FileNode
	pos := map[string]Point{}
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("/w1/src/f%d.go", i)
		vec := []float64{1, 0}
		if i >= 4 {
			vec = []float64{0, 1}
		}
		nodes = append(nodes, FileNode{ID: id, Workspace: "/w1", Directory: "/w1/src", FeatureVector: vec})
		pos[id] = Point{X: float64(i * 10), Y: 0}
	}
	nodes = append(nodes,
		FileNode{ID: "/w1/docs/a.md", Workspace: "/w1", Directory: "/w1/docs", FeatureVector: []float64{1, 1}},
		FileNode{ID: "/w2/b.go", Workspace: "/w2", Directory: "/w2", FeatureVector: []float64{1, 1}},
	)
	pos["/w1/docs/a.md"] = Point{X: 100, Y: 100}
	pos["/w2/b.go"] = Point{X: 200, Y: 200}

	groups := Hierarchy(nodes, pos, 1000)
	byLevel := map[Level][]Group{}
	for _, g := range groups {
		byLevel[g.Level] = append(byLevel[g.Level], g)
	}
	require.Len(t, byLevel[LevelWorkspace], 2)
	require.Len(t, byLevel[LevelDirectory], 3)
	require.Len(t, byLevel[LevelSemantic], 2)

	assert.Equal(t, "ws:/w1", groups[0].ID)
	assert.Len(t, groups[0].NodeIDs, 9)

	for _, g := range byLevel[LevelSemantic] {
		assert.Equal(t, "ws:/w1|dir:/w1/src", g.Parent)
		assert.Len(t, g.NodeIDs, 4)
	}
	assert.ElementsMatch(t,
		[]string{"/w1/src/f0.go", "/w1/src/f1.go", "/w1/src/f2.go", "/w1/src/f3.go"},
		byLevel[LevelSemantic][0].NodeIDs)
	assert.Equal(t, Point{X: 200, Y: 200}, byLevel[LevelWorkspace][1].Centroid)
}

func TestFlatClusters(t *testing.T) {
	var nodes []FileNode
	pos := map[string]Point{}
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("n%d", i)
		nodes = append(nodes, FileNode{ID: id})
		x := float64(i)
		if i >= 5 {
			x += 500
		}
		pos[id] = Point{X: x, Y: 0}
	}
	palette := []string{"#111", "#222"}

	clusters, err := FlatClusters(context.Background(), nodes, pos, false, 42, palette, nil)
	require.NoError(t, err)
	require.NotEmpty(t, clusters)
	assert.LessOrEqual(t, len(clusters), SimpleK(10))
	seen := map[string]bool{}
	for i, c := range clusters {
		assert.Equal(t, fmt.Sprintf("cluster-%d", i), c.ID)
		assert.Equal(t, fmt.Sprintf("Cluster %d", i+1), c.Name)
		assert.Equal(t, palette[i%2], c.Color)
		for _, id := range c.NodeIDs {
			assert.False(t, seen[id], "node %s in two clusters", id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, 10)

	again, err := FlatClusters(context.Background(), nodes, pos, false, 42, palette, nil)
	require.NoError(t, err)
	assert.Equal(t, clusters, again)

	empty, err := FlatClusters(context.Background(), nil, nil, true, 1, palette, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
