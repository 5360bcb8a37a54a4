package search

import (
	"fmt"
	"path"

	"telemetry-dashboard/internal/corpus"
)

const (
	MaxClusters   = 5
	clusterWindow = int64(60 * 60 * 1000)
)

// Cluster groups related results. Reason says which rule joined them.
type Cluster struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Reason    string   `json:"reason"`
	ResultIDs []string `json:"resultIds"`
}

const (
	ReasonDirectory    = "directory"
	ReasonWorkspace    = "workspace"
	ReasonConversation = "conversation"
)

type clusterSeed struct {
	doc     corpus.Document
	reason  string
	members []string
}

// joinReason reports why b belongs with seed a, if it does.
func joinReason(a, b corpus.Document) (string, bool) {
	if a.Metadata.ComposerID != "" && a.Metadata.ComposerID == b.Metadata.ComposerID {
		return ReasonConversation, true
	}
	if a.Kind == corpus.KindEvent && b.Kind == corpus.KindEvent && a.Metadata.EventType == b.Metadata.EventType &&
		path.Dir(a.Metadata.FilePath) == path.Dir(b.Metadata.FilePath) {
		return ReasonDirectory, true
	}
	if a.Workspace == b.Workspace {
		d := a.Timestamp - b.Timestamp
		if d < 0 {
			d = -d
		}
		if d <= clusterWindow {
			return ReasonWorkspace, true
		}
	}
	return "", false
}

// ClusterResults greedily merges results in rank order into groups seeded by
// the first unmatched result. Only groups with two or more members are
// returned, at most MaxClusters.
func ClusterResults(results []Result) []Cluster {
	var seeds []*clusterSeed
	for _, r := range results {
		joined := false
		for _, s := range seeds {
			reason, ok := joinReason(s.doc, r.Document)
			if !ok {
				continue
			}
			if s.reason == "" {
				s.reason = reason
			}
			s.members = append(s.members, r.Document.ID)
			joined = true
			break
		}
		if !joined {
			seeds = append(seeds, &clusterSeed{doc: r.Document, members: []string{r.Document.ID}})
		}
	}

	var out []Cluster
	for _, s := range seeds {
		if len(s.members) < 2 {
			continue
		}
		out = append(out, Cluster{
			ID:        fmt.Sprintf("cluster-%d", len(out)+1),
			Label:     clusterLabel(s),
			Reason:    s.reason,
			ResultIDs: s.members,
		})
		if len(out) == MaxClusters {
			break
		}
	}
	return out
}

func clusterLabel(s *clusterSeed) string {
	switch s.reason {
	case ReasonConversation:
		return "Conversation " + s.doc.Metadata.ComposerID
	case ReasonDirectory:
		return path.Dir(s.doc.Metadata.FilePath)
	default:
		return path.Base(s.doc.Workspace)
	}
}
