package view

import (
	"sort"

	"telemetry-dashboard/internal/model"
)

// ContextFileTrend returns the context-file-count samples oldest first.
func (v *View) ContextFileTrend() []model.ContextChange {
	out := append([]model.ContextChange(nil), v.snap.ContextChanges...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// Branch summarizes the git samples seen on one branch.
type Branch struct {
	Name      string `json:"name"`
	Samples   int    `json:"samples"`
	Commits   int    `json:"commits"`
	FirstSeen int64  `json:"firstSeen"`
	LastSeen  int64  `json:"lastSeen"`
}

// BranchActivity groups git samples by branch, most recently seen first.
// Commits counts distinct commit lines across the branch's samples.
func (v *View) BranchActivity() []Branch {
	byName := make(map[string]*Branch)
	commits := make(map[string]map[string]struct{})
	for _, g := range v.snap.Git {
		name := g.Branch
		if name == "" {
			name = unknownLabel
		}
		b, ok := byName[name]
		if !ok {
			b = &Branch{Name: name, FirstSeen: g.Timestamp}
			byName[name] = b
			commits[name] = make(map[string]struct{})
		}
		b.Samples++
		b.FirstSeen = min(b.FirstSeen, g.Timestamp)
		b.LastSeen = max(b.LastSeen, g.Timestamp)
		for _, c := range g.RecentCommits {
			commits[name][c] = struct{}{}
		}
	}
	out := make([]Branch, 0, len(byName))
	for name, b := range byName {
		b.Commits = len(commits[name])
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastSeen != out[j].LastSeen {
			return out[i].LastSeen > out[j].LastSeen
		}
		return out[i].Name < out[j].Name
	})
	return out
}
