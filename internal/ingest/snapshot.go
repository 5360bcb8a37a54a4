package ingest

import (
	"path/filepath"
	"sort"
	"time"

	"telemetry-dashboard/internal/model"
)

// Snapshot is an immutable view of everything ingest knows. Readers may hold
// one for as long as they like; the controller only ever replaces it.
type Snapshot struct {
	Version        uint64
	Events         []model.Event  // ascending by timestamp, then id
	Prompts        []model.Prompt // ascending by timestamp, then id
	Workspaces     []model.Workspace
	FileContents   []model.FileContent
	FileContentsOK bool
	ContextChanges []model.ContextChange
	Git            []model.GitSnapshot
	Sequence       int64
	Connected      bool
	LastError      error
	UpdatedAt      time.Time
}

// Empty reports whether no activity is known.
func (s *Snapshot) Empty() bool {
	return s == nil || (len(s.Events) == 0 && len(s.Prompts) == 0)
}

func sortedEvents(m map[string]model.Event) []model.Event {
	out := make([]model.Event, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortedPrompts(m map[string]model.Prompt) []model.Prompt {
	out := make([]model.Prompt, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DeriveWorkspaces recomputes workspace counters from events and prompts.
// Known workspaces contribute their names and keep their entry even when no
// activity references them.
func DeriveWorkspaces(known []model.Workspace, events []model.Event, prompts []model.Prompt) []model.Workspace {
	byPath := make(map[string]*model.Workspace, len(known))
	for _, w := range known {
		w := model.Workspace{Path: w.Path, Name: w.Name, LastActivity: w.LastActivity}
		byPath[w.Path] = &w
	}
	get := func(path string) *model.Workspace {
		w, ok := byPath[path]
		if !ok {
			w = &model.Workspace{Path: path, Name: filepath.Base(path)}
			byPath[path] = w
		}
		return w
	}
	for _, e := range events {
		if e.WorkspacePath == "" {
			continue
		}
		w := get(e.WorkspacePath)
		w.EventCount++
		w.LastActivity = max(w.LastActivity, e.Timestamp)
	}
	for _, p := range prompts {
		if p.WorkspacePath == "" {
			continue
		}
		w := get(p.WorkspacePath)
		w.PromptCount++
		w.LastActivity = max(w.LastActivity, p.Timestamp)
	}

	out := make([]model.Workspace, 0, len(byPath))
	for _, w := range byPath {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActivity != out[j].LastActivity {
			return out[i].LastActivity > out[j].LastActivity
		}
		return out[i].Path < out[j].Path
	})
	return out
}
