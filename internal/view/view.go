// Package view holds the read-only projections the UI binds to. Every
// selector is a pure function of one ingest snapshot and a clock.
package view

import (
	"sort"
	"time"

	"telemetry-dashboard/internal/ingest"
	"telemetry-dashboard/internal/model"
	"telemetry-dashboard/internal/navigator"
)

const dayMillis = int64(24 * time.Hour / time.Millisecond)

// View answers queries against a single snapshot.
type View struct {
	snap *ingest.Snapshot
	now  time.Time
}

// New binds a view to snap. A nil snapshot behaves as an empty one.
func New(snap *ingest.Snapshot, now time.Time) *View {
	if snap == nil {
		snap = &ingest.Snapshot{}
	}
	return &View{snap: snap, now: now}
}

func (v *View) Snapshot() *ingest.Snapshot {
	return v.snap
}

// Summary is the headline block of the dashboard.
type Summary struct {
	Events          int     `json:"events"`
	Prompts         int     `json:"prompts"`
	Workspaces      int     `json:"workspaces"`
	Files           int     `json:"files"`
	LinesAdded      int     `json:"linesAdded"`
	LinesRemoved    int     `json:"linesRemoved"`
	Conversations   int     `json:"conversations"`
	AvgContextUsage float64 `json:"avgContextUsage"`
	FirstActivity   int64   `json:"firstActivity,omitempty"`
	LastActivity    int64   `json:"lastActivity,omitempty"`
	Connected       bool    `json:"connected"`
	ServerSequence  int64   `json:"serverSequence"`
	SnapshotVersion uint64  `json:"snapshotVersion"`
}

func (v *View) Summary() Summary {
	s := Summary{
		Events:          len(v.snap.Events),
		Prompts:         len(v.snap.Prompts),
		Workspaces:      len(v.snap.Workspaces),
		Connected:       v.snap.Connected,
		ServerSequence:  v.snap.Sequence,
		SnapshotVersion: v.snap.Version,
	}
	files := make(map[string]struct{})
	for _, e := range v.snap.Events {
		s.LinesAdded += e.Details.LinesAdded
		s.LinesRemoved += e.Details.LinesRemoved
		if e.FilePath != "" && !navigator.IsGitObject(e.FilePath) {
			files[e.FilePath] = struct{}{}
		}
		s.observe(e.Timestamp)
	}
	s.Files = len(files)

	conversations := make(map[string]struct{})
	var usage float64
	var withUsage int
	for _, p := range v.snap.Prompts {
		if p.IsConversation() {
			conversations[p.ComposerID] = struct{}{}
		}
		if p.ContextUsage > 0 {
			usage += p.ContextUsage
			withUsage++
		}
		s.observe(p.Timestamp)
	}
	s.Conversations = len(conversations)
	if withUsage > 0 {
		s.AvgContextUsage = usage / float64(withUsage)
	}
	return s
}

func (s *Summary) observe(ts int64) {
	if s.FirstActivity == 0 || ts < s.FirstActivity {
		s.FirstActivity = ts
	}
	s.LastActivity = max(s.LastActivity, ts)
}

// Workspaces returns workspace summaries, most recently active first.
func (v *View) Workspaces() []model.Workspace {
	out := append([]model.Workspace(nil), v.snap.Workspaces...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LastActivity != out[j].LastActivity {
			return out[i].LastActivity > out[j].LastActivity
		}
		return out[i].Path < out[j].Path
	})
	return out
}
