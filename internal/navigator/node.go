package navigator

import (
	"path"
	"regexp"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"telemetry-dashboard/internal/model"
)

var gitObjectPattern = regexp.MustCompile(`(^|/)\.git/objects/[0-9a-fA-F]{2}/?[0-9a-fA-F]{38}$`)

// IsGitObject reports whether p names a loose git object.
func IsGitObject(p string) bool {
	return gitObjectPattern.MatchString(filepathToSlash(p))
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// FileNode is one file of the navigator graph.
type FileNode struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Extension     string        `json:"extension"`
	Workspace     string        `json:"workspace"`
	Directory     string        `json:"directory"`
	Content       string        `json:"-"`
	Events        []model.Event `json:"-"`
	EventCount    int           `json:"eventCount"`
	ChangeCount   int           `json:"changeCount"`
	LastActivity  int64         `json:"lastActivity"`
	Conversations []string      `json:"conversations,omitempty"`
	FeatureVector []float64     `json:"-"`
}

// Input is everything the navigator derives its graph from.
type Input struct {
	Files   []model.FileContent
	FilesOK bool
	Events  []model.Event
	Prompts []model.Prompt
}

// Filter decides which paths may become nodes.
type Filter struct {
	ignore *ignore.GitIgnore
}

func NewFilter(patterns []string) *Filter {
	return &Filter{ignore: ignore.CompileIgnoreLines(patterns...)}
}

// Excluded matches git objects always, and ignore patterns against the path
// relative to its workspace.
func (f *Filter) Excluded(p, workspace string) bool {
	p = filepathToSlash(p)
	if IsGitObject(p) {
		return true
	}
	if f == nil || f.ignore == nil {
		return false
	}
	rel := p
	if ws := strings.TrimSuffix(filepathToSlash(workspace), "/"); ws != "" && strings.HasPrefix(p, ws+"/") {
		rel = strings.TrimPrefix(p, ws+"/")
	}
	return f.ignore.MatchesPath(strings.TrimPrefix(rel, "/"))
}

// BuildNodes derives file nodes. File contents are used when the feed
// succeeded; otherwise nodes are rebuilt from event paths with empty
// content. At most maxNodes of the most active files are kept, ordered by
// path.
func BuildNodes(in Input, filter *Filter, maxNodes int) []FileNode {
	byPath := make(map[string][]model.Event)
	for _, e := range in.Events {
		if e.FilePath == "" || filter.Excluded(e.FilePath, e.WorkspacePath) {
			continue
		}
		byPath[e.FilePath] = append(byPath[e.FilePath], e)
	}

	var nodes []FileNode
	if in.FilesOK && len(in.Files) > 0 {
		seen := make(map[string]struct{}, len(in.Files))
		for _, f := range in.Files {
			if f.Path == "" || filter.Excluded(f.Path, f.WorkspacePath) {
				continue
			}
			if _, dup := seen[f.Path]; dup {
				continue
			}
			seen[f.Path] = struct{}{}
			n := newNode(f.Path, f.WorkspacePath, byPath[f.Path])
			if f.Name != "" && !IsGitObject(f.Name) {
				n.Name = f.Name
			}
			n.Content = f.Content
			n.ChangeCount = max(f.Changes, len(n.Events))
			n.LastActivity = max(n.LastActivity, f.LastModified)
			nodes = append(nodes, n)
		}
	} else {
		for p, events := range byPath {
			nodes = append(nodes, newNode(p, "", events))
		}
	}

	attachConversations(nodes, in.Prompts)

	if maxNodes > 0 && len(nodes) > maxNodes {
		sort.Slice(nodes, func(i, j int) bool {
			a, b := nodes[i], nodes[j]
			if a.ChangeCount != b.ChangeCount {
				return a.ChangeCount > b.ChangeCount
			}
			if a.LastActivity != b.LastActivity {
				return a.LastActivity > b.LastActivity
			}
			return a.ID < b.ID
		})
		nodes = nodes[:maxNodes]
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

func newNode(p, workspace string, events []model.Event) FileNode {
	sort.Slice(events, func(i, j int) bool { return events[i].Timestamp < events[j].Timestamp })
	if workspace == "" {
		for _, e := range events {
			if e.WorkspacePath != "" {
				workspace = e.WorkspacePath
				break
			}
		}
	}
	if workspace == "" {
		workspace = model.UnknownWorkspace
	}
	slashed := filepathToSlash(p)
	n := FileNode{
		ID:          p,
		Name:        path.Base(slashed),
		Extension:   strings.TrimPrefix(strings.ToLower(path.Ext(slashed)), "."),
		Workspace:   workspace,
		Directory:   path.Dir(slashed),
		Events:      events,
		EventCount:  len(events),
		ChangeCount: len(events),
	}
	if len(events) > 0 {
		n.LastActivity = events[len(events)-1].Timestamp
	}
	return n
}

// attachConversations links composer conversations to the files they
// referenced as context.
func attachConversations(nodes []FileNode, prompts []model.Prompt) {
	if len(prompts) == 0 || len(nodes) == 0 {
		return
	}
	index := make(map[string]int, len(nodes)*2)
	for i, n := range nodes {
		index[n.ID] = i
		if _, taken := index[n.Name]; !taken {
			index[n.Name] = i
		}
	}
	seen := make(map[int]map[string]struct{})
	for _, p := range prompts {
		if p.ComposerID == "" {
			continue
		}
		refs := append(append([]string(nil), p.AtFiles...), p.ContextFiles...)
		for _, ref := range refs {
			i, ok := index[ref]
			if !ok {
				i, ok = index[path.Base(filepathToSlash(ref))]
			}
			if !ok {
				continue
			}
			if seen[i] == nil {
				seen[i] = make(map[string]struct{})
			}
			if _, dup := seen[i][p.ComposerID]; dup {
				continue
			}
			seen[i][p.ComposerID] = struct{}{}
			nodes[i].Conversations = append(nodes[i].Conversations, p.ComposerID)
		}
	}
}
