package view

import (
	"math"
	"path"
	"sort"

	"telemetry-dashboard/internal/model"
	"telemetry-dashboard/internal/navigator"
)

const DefaultHotspotLimit = 20

// Hotspot is a file ranked by edit volume and recency.
type Hotspot struct {
	Path          string  `json:"path"`
	Name          string  `json:"name"`
	Workspace     string  `json:"workspace"`
	EditCount     int     `json:"editCount"`
	LinesChanged  int     `json:"linesChanged"`
	LastEdit      int64   `json:"lastEdit"`
	DaysSinceLast float64 `json:"daysSinceLast"`
	Score         float64 `json:"score"`
}

// HotspotScore is 2·edits + lines/10 + 3·max(0, 10 - days since last edit).
func HotspotScore(edits, lines int, daysSinceLast float64) float64 {
	return 2*float64(edits) + float64(lines)/10 + 3*math.Max(0, 10-daysSinceLast)
}

// FileHotspots ranks edited files, highest score first. Git object paths
// never appear. limit <= 0 uses the default of 20.
func (v *View) FileHotspots(limit int) []Hotspot {
	if limit <= 0 {
		limit = DefaultHotspotLimit
	}
	byPath := make(map[string]*Hotspot)
	for _, e := range v.snap.Events {
		if e.FilePath == "" || !model.IsCodeChange(e.Type) || navigator.IsGitObject(e.FilePath) {
			continue
		}
		h, ok := byPath[e.FilePath]
		if !ok {
			h = &Hotspot{Path: e.FilePath, Name: path.Base(e.FilePath), Workspace: workspaceOr(e.WorkspacePath)}
			byPath[e.FilePath] = h
		}
		h.EditCount++
		h.LinesChanged += e.LinesChanged()
		h.LastEdit = max(h.LastEdit, e.Timestamp)
	}

	nowMillis := v.now.UnixMilli()
	out := make([]Hotspot, 0, len(byPath))
	for _, h := range byPath {
		h.DaysSinceLast = math.Max(0, float64(nowMillis-h.LastEdit)/float64(dayMillis))
		h.Score = HotspotScore(h.EditCount, h.LinesChanged, h.DaysSinceLast)
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Path < out[j].Path
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
