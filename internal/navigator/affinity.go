package navigator

import (
	"context"
	"fmt"
	"strings"

	"telemetry-dashboard/pkg/yield"
)

// Events without a session id are grouped into buckets of this length.
const sessionBucketMillis = int64(30 * 60 * 1000)

const (
	sameWorkspaceBoost = 1.3
	directoryBoost     = 0.2
)

// Edge connects two file nodes. Source sorts before Target in node order.
type Edge struct {
	Source        string  `json:"source"`
	Target        string  `json:"target"`
	Similarity    float64 `json:"similarity"`
	SameWorkspace bool    `json:"sameWorkspace"`
	SameDirectory bool    `json:"sameDirectory"`
}

func sessionSet(n FileNode) map[string]struct{} {
	set := make(map[string]struct{}, len(n.Events))
	for _, e := range n.Events {
		key := e.SessionID
		if key == "" {
			key = fmt.Sprintf("t:%d", e.Timestamp/sessionBucketMillis)
		}
		set[key] = struct{}{}
	}
	return set
}

// Jaccard is |a ∩ b| / |a ∪ b|, zero for two empty sets.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func dirParts(dir string) []string {
	var out []string
	for _, p := range strings.Split(dir, "/") {
		if p != "" && p != "." {
			out = append(out, p)
		}
	}
	return out
}

// CommonPrefixDepth returns how many leading directory components two
// directories share, and the deeper of the two depths.
func CommonPrefixDepth(a, b string) (common, maxDepth int) {
	pa, pb := dirParts(a), dirParts(b)
	maxDepth = max(len(pa), len(pb))
	for common < len(pa) && common < len(pb) && pa[common] == pb[common] {
		common++
	}
	return common, maxDepth
}

// Affinity is the boosted co-occurrence similarity of two nodes, clamped to 1.
func Affinity(a, b FileNode, sa, sb map[string]struct{}) float64 {
	sim := Jaccard(sa, sb)
	if sim == 0 {
		return 0
	}
	if a.Workspace == b.Workspace {
		sim *= sameWorkspaceBoost
	}
	if common, depth := CommonPrefixDepth(a.Directory, b.Directory); depth > 0 {
		sim *= 1 + directoryBoost*float64(common)/float64(depth)
	}
	return min(sim, 1)
}

// BuildEdges compares every pair of nodes once and keeps pairs at or above
// threshold.
func BuildEdges(ctx context.Context, nodes []FileNode, threshold float64, y *yield.Yielder) ([]Edge, error) {
	sets := make([]map[string]struct{}, len(nodes))
	for i, n := range nodes {
		sets[i] = sessionSet(n)
	}
	var edges []Edge
	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			sim := Affinity(nodes[i], nodes[j], sets[i], sets[j])
			if sim < threshold || sim == 0 {
				continue
			}
			edges = append(edges, Edge{
				Source:        nodes[i].ID,
				Target:        nodes[j].ID,
				Similarity:    sim,
				SameWorkspace: nodes[i].Workspace == nodes[j].Workspace,
				SameDirectory: nodes[i].Directory == nodes[j].Directory,
			})
		}
		if err := y.Every(ctx, i+1, 50); err != nil {
			return nil, err
		}
	}
	return edges, nil
}
