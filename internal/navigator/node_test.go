package navigator

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-dashboard/internal/config"
	"telemetry-dashboard/internal/model"
)

func TestIsGitObject(t *testing.T) {
	sha := strings.Repeat("ab", 20)
	assert.True(t, IsGitObject("/repo/.git/objects/"+sha[:2]+"/"+sha[2:]))
	assert.True(t, IsGitObject(".git/objects/"+sha))
	assert.False(t, IsGitObject("/repo/.git/objects/pack/pack-1.idx"))
	assert.False(t, IsGitObject("/repo/src/"+sha))
}

func TestBuildNodes_FallbackFromEvents(t *testing.T) {
	sha := strings.Repeat("0f", 20)
	var events []model.Event
	counts := map[string]int{}
	for i := 0; i < 12; i++ {
		ws := fmt.Sprintf("/ws%d", i%3)
		p := fmt.Sprintf("%s/src/file%d.go", ws, i)
		for j := 0; j <= i%4; j++ {
			events = append(events, model.Event{ID: fmt.Sprintf("e%d-%d", i, j), Timestamp: int64(100*i + j),
				FilePath: p, WorkspacePath: ws})
			counts[p]++
		}
	}
	events = append(events,
		model.Event{ID: "git", Timestamp: 1, FilePath: "/ws0/.git/objects/" + sha[:2] + "/" + sha[2:], WorkspacePath: "/ws0"},
		model.Event{ID: "nopath", Timestamp: 1},
	)

	in := Input{FilesOK: false, Events: events}
	nodes := BuildNodes(in, NewFilter(nil), 300)
	require.Len(t, nodes, 12)
	workspaces := map[string]bool{}
	for _, n := range nodes {
		assert.Len(t, n.Events, counts[n.ID], n.ID)
		assert.Equal(t, counts[n.ID], n.ChangeCount)
		assert.Empty(t, n.Content)
		assert.NotContains(t, n.ID, ".git/objects")
		workspaces[n.Workspace] = true
	}
	assert.Len(t, workspaces, 3)
	assert.Equal(t, "file0.go", nodes[0].Name)
	assert.Equal(t, "go", nodes[0].Extension)
	assert.Equal(t, "/ws0/src", nodes[0].Directory)
}

func TestBuildNodes_FromFileContents(t *testing.T) {
	in := Input{
		FilesOK: true,
		Files: []model.FileContent{
			{Path: "/ws/a.ts", Name: "a.ts", Content: "export const a = 1", Changes: 7, WorkspacePath: "/ws"},
			{Path: "/ws/node_modules/lib/index.js", Content: "x", WorkspacePath: "/ws"},
			{Path: "/ws/a.ts", Content: "duplicate"},
		},
		Events: []model.Event{
			{ID: "1", Timestamp: 5, FilePath: "/ws/a.ts", WorkspacePath: "/ws"},
			{ID: "2", Timestamp: 6, FilePath: "/ws/b.ts", WorkspacePath: "/ws"},
		},
		Prompts: []model.Prompt{
			{ID: "p", ComposerID: "c1", ContextFiles: []string{"a.ts"}},
			{ID: "q", ComposerID: "c1", AtFiles: []string{"/ws/a.ts"}},
		},
	}
	nodes := BuildNodes(in, NewFilter(config.DefaultNavigatorIgnorePatterns), 300)
	require.Len(t, nodes, 1)
	n := nodes[0]
	assert.Equal(t, "export const a = 1", n.Content)
	assert.Equal(t, 7, n.ChangeCount)
	assert.Equal(t, 1, n.EventCount)
	assert.Equal(t, []string{"c1"}, n.Conversations)
}

func TestBuildNodes_CapKeepsMostActive(t *testing.T) {
	var events []model.Event
	for i := 0; i < 10; i++ {
		for j := 0; j <= i; j++ {
			events = append(events, model.Event{ID: fmt.Sprintf("%d-%d", i, j), Timestamp: int64(j), FilePath: fmt.Sprintf("/f%d.go", i)})
		}
	}
	nodes := BuildNodes(Input{Events: events}, nil, 3)
	require.Len(t, nodes, 3)
	assert.Equal(t, []string{"/f7.go", "/f8.go", "/f9.go"}, []string{nodes[0].ID, nodes[1].ID, nodes[2].ID})
	assert.Equal(t, model.UnknownWorkspace, nodes[0].Workspace)
}

func TestFilter_Excluded(t *testing.T) {
	f := NewFilter(config.DefaultNavigatorIgnorePatterns)
	assert.True(t, f.Excluded("/ws/node_modules/x.js", "/ws"))
	assert.True(t, f.Excluded("/ws/dist/bundle.js", "/ws"))
	assert.True(t, f.Excluded("/ws/pkg/mod.pyc", "/ws"))
	assert.False(t, f.Excluded("/ws/src/main.go", "/ws"))
}
