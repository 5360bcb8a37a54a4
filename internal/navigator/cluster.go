package navigator

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"telemetry-dashboard/pkg/yield"
)

// Cluster is one group of the flat assignment the UI colors by.
type Cluster struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Color    string   `json:"color"`
	NodeIDs  []string `json:"nodeIds"`
	Centroid Point    `json:"centroid"`
	Quality  float64  `json:"quality,omitempty"`
}

// Annotator names clusters. It returns names keyed by cluster id; clusters
// it leaves out keep their default name.
type Annotator interface {
	Annotate(ctx context.Context, clusters []Cluster) (map[string]string, error)
}

type Level string

const (
	LevelWorkspace Level = "workspace"
	LevelDirectory Level = "directory"
	LevelSemantic  Level = "semantic"
)

// Group is a node of the workspace → directory → semantic hierarchy.
type Group struct {
	ID       string   `json:"id"`
	Level    Level    `json:"level"`
	Name     string   `json:"name"`
	Parent   string   `json:"parent,omitempty"`
	NodeIDs  []string `json:"nodeIds"`
	Centroid Point    `json:"centroid"`
}

const (
	semanticMinFiles   = 5
	semanticIterations = 5
	vectorWeight       = 0.7
	spatialWeight      = 0.3
)

// SemanticK is clamp(⌈n/8⌉, 2, 3).
func SemanticK(n int) int {
	return max(2, min(int(math.Ceil(float64(n)/8)), 3))
}

func centroidOf(ids []string, pos map[string]Point) Point {
	var c Point
	if len(ids) == 0 {
		return c
	}
	for _, id := range ids {
		p := pos[id]
		c.X += p.X
		c.Y += p.Y
	}
	return Point{X: c.X / float64(len(ids)), Y: c.Y / float64(len(ids))}
}

// Hierarchy partitions nodes by workspace, then directory, then splits
// directories with more than five files by content and position. scale
// normalizes spatial distances, typically the larger canvas dimension.
func Hierarchy(nodes []FileNode, pos map[string]Point, scale float64) []Group {
	if scale <= 0 {
		scale = 1
	}
	byWS := make(map[string][]int)
	for i, n := range nodes {
		byWS[n.Workspace] = append(byWS[n.Workspace], i)
	}
	var out []Group
	for _, ws := range sortedKeys(byWS) {
		members := byWS[ws]
		wsGroup := Group{ID: "ws:" + ws, Level: LevelWorkspace, Name: ws, NodeIDs: nodeIDs(nodes, members)}
		wsGroup.Centroid = centroidOf(wsGroup.NodeIDs, pos)
		out = append(out, wsGroup)

		byDir := make(map[string][]int)
		for _, i := range members {
			byDir[nodes[i].Directory] = append(byDir[nodes[i].Directory], i)
		}
		for _, dir := range sortedKeys(byDir) {
			dm := byDir[dir]
			dirGroup := Group{ID: wsGroup.ID + "|dir:" + dir, Level: LevelDirectory, Name: dir, Parent: wsGroup.ID,
				NodeIDs: nodeIDs(nodes, dm)}
			dirGroup.Centroid = centroidOf(dirGroup.NodeIDs, pos)
			out = append(out, dirGroup)
			if len(dm) <= semanticMinFiles {
				continue
			}
			for c, sub := range semanticSplit(nodes, dm, pos, scale) {
				if len(sub) == 0 {
					continue
				}
				g := Group{ID: fmt.Sprintf("%s|sem:%d", dirGroup.ID, c), Level: LevelSemantic,
					Name: fmt.Sprintf("%s #%d", dir, c+1), Parent: dirGroup.ID, NodeIDs: nodeIDs(nodes, sub)}
				g.Centroid = centroidOf(g.NodeIDs, pos)
				out = append(out, g)
			}
		}
	}
	return out
}

// semanticSplit is a content-aware k-means: centroids carry a feature
// vector and a position, and members go to the best blend of cosine
// similarity and spatial closeness.
func semanticSplit(nodes []FileNode, members []int, pos map[string]Point, scale float64) [][]int {
	n := len(members)
	k := SemanticK(n)
	type centroid struct {
		vec []float64
		at  Point
	}
	cents := make([]centroid, k)
	for c := range cents {
		m := nodes[members[c*n/k]]
		cents[c] = centroid{vec: append([]float64(nil), m.FeatureVector...), at: pos[m.ID]}
	}
	assign := make([]int, n)
	for it := 0; it < semanticIterations; it++ {
		for mi, idx := range members {
			node := nodes[idx]
			best, bestScore := 0, math.Inf(-1)
			for c, cen := range cents {
				d := pos[node.ID].dist(cen.at) / scale
				s := vectorWeight*cosine(node.FeatureVector, cen.vec) + spatialWeight/(1+d)
				if s > bestScore {
					best, bestScore = c, s
				}
			}
			assign[mi] = best
		}
		for c := range cents {
			var count int
			var at Point
			vec := make([]float64, len(cents[c].vec))
			for mi, idx := range members {
				if assign[mi] != c {
					continue
				}
				count++
				p := pos[nodes[idx].ID]
				at.X += p.X
				at.Y += p.Y
				for d := range vec {
					if d < len(nodes[idx].FeatureVector) {
						vec[d] += nodes[idx].FeatureVector[d]
					}
				}
			}
			if count == 0 {
				continue
			}
			for d := range vec {
				vec[d] /= float64(count)
			}
			cents[c] = centroid{vec: vec, at: Point{X: at.X / float64(count), Y: at.Y / float64(count)}}
		}
	}
	out := make([][]int, k)
	for mi, idx := range members {
		out[assign[mi]] = append(out[assign[mi]], idx)
	}
	return out
}

// FlatClusters assigns every node to one cluster. With semantic enabled it
// runs the silhouette-tuned sweep on feature vectors; otherwise a simple
// k-means on layout positions.
func FlatClusters(ctx context.Context, nodes []FileNode, pos map[string]Point, semantic bool, seed int64,
	palette []string, y *yield.Yielder) ([]Cluster, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	vecs := make([][]float64, len(nodes))
	for i, n := range nodes {
		if semantic {
			vecs[i] = n.FeatureVector
		} else {
			p := pos[n.ID]
			vecs[i] = []float64{p.X, p.Y}
		}
	}

	var assign []int
	var k int
	var quality float64
	var err error
	if semantic {
		assign, k, quality, err = AutoKMeans(ctx, vecs, seed, y)
	} else {
		k = SimpleK(len(vecs))
		assign, err = KMeans(ctx, vecs, k, rand.New(rand.NewPCG(uint64(seed), uint64(k))), y)
		if err == nil {
			quality = Silhouette(vecs, assign, k)
		}
	}
	if err != nil {
		return nil, err
	}

	members := make([][]string, max(k, 1))
	for i, a := range assign {
		members[a] = append(members[a], nodes[i].ID)
	}
	var out []Cluster
	for _, ids := range members {
		if len(ids) == 0 {
			continue
		}
		i := len(out)
		c := Cluster{
			ID:       fmt.Sprintf("cluster-%d", i),
			Name:     fmt.Sprintf("Cluster %d", i+1),
			NodeIDs:  ids,
			Centroid: centroidOf(ids, pos),
			Quality:  quality,
		}
		if len(palette) > 0 {
			c.Color = palette[i%len(palette)]
		}
		out = append(out, c)
	}
	return out, nil
}

func nodeIDs(nodes []FileNode, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = nodes[j].ID
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
