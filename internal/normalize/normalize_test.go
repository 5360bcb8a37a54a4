package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"telemetry-dashboard/internal/errs"
	"telemetry-dashboard/internal/model"
)

func TestEvent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want model.Event
	}{
		{
			name: "snake case with details string",
			raw: `{"id":"e1","timestamp":1700000000000,"type":"file-change","file_path":"/ws/a.go",
				"workspace_path":"/ws","session_id":"s1",
				"details":"{\"lines_added\":3,\"lines_removed\":1,\"chars_added\":20,\"change_type\":\"modify\",\"before_content\":\"x\",\"after_content\":\"y\"}"}`,
			want: model.Event{ID: "e1", Timestamp: 1700000000000, Type: "file-change", FilePath: "/ws/a.go",
				WorkspacePath: "/ws", SessionID: "s1",
				Details: model.EventDetails{LinesAdded: 3, LinesRemoved: 1, CharsAdded: 20, ChangeType: "modify", BeforeContent: "x", AfterContent: "y"}},
		},
		{
			name: "camel case with nested details",
			raw: `{"id":7,"timestamp":"2024-01-02T03:04:05Z","type":"code-change","filePath":"/b.go",
				"workspacePath":"/primary","workspace":"/secondary","sessionId":"s2",
				"details":{"linesAdded":10,"filePath":"/nested.go"}}`,
			want: model.Event{ID: "7", Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli(),
				Type: "code-change", FilePath: "/b.go", WorkspacePath: "/primary", SessionID: "s2",
				Details: model.EventDetails{LinesAdded: 10}},
		},
		{
			name: "workspace falls back through aliases",
			raw:  `{"id":"e3","timestamp":"1700000000001","workspacePath":"","workspace":"/fallback","lines_added":4}`,
			want: model.Event{ID: "e3", Timestamp: 1700000000001, WorkspacePath: "/fallback", Details: model.EventDetails{LinesAdded: 4}},
		},
		{
			name: "event ignores prompt-only workspace keys",
			raw:  `{"id":"e4","timestamp":1,"workspaceId":"abc"}`,
			want: model.Event{ID: "e4", Timestamp: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Event(gjson.Parse(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvent_Malformed(t *testing.T) {
	for _, raw := range []string{
		`{"timestamp":1}`,
		`{"id":"x"}`,
		`{"id":"x","timestamp":"not a date"}`,
		`[1,2]`,
	} {
		_, err := Event(gjson.Parse(raw))
		assert.Equal(t, errs.KindMalformedRecord, errs.KindOf(err), raw)
	}
}

func TestPrompt(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want model.Prompt
	}{
		{
			name: "text precedence and snake case",
			raw: `{"prompt_id":"p1","timestamp":5,"prompt":"fix chart","preview":"ignored","source":"composer",
				"composer_id":"c1","conversation_title":"Charts","model_name":"gpt-4","mode":"agent",
				"context_usage":62.5,"context_file_count":2,"context_files":"[\"a.go\",{\"path\":\"b.go\"}]",
				"at_files":["c.go"],"linked_entry_id":"e9","workspaceName":"dash"}`,
			want: model.Prompt{ID: "p1", Timestamp: 5, Text: "fix chart", Source: "composer", ComposerID: "c1",
				ConversationTitle: "Charts", ModelName: "gpt-4", Mode: "agent", ContextUsage: 62.5, ContextFileCount: 2,
				ContextFiles: []string{"a.go", "b.go"}, AtFiles: []string{"c.go"}, LinkedEntryID: "e9", WorkspacePath: "dash"},
		},
		{
			name: "empty text falls through to content",
			raw:  `{"id":"p2","timestamp":6,"text":"  ","content":"from content","workspaceId":"w1","workspace":"w2"}`,
			want: model.Prompt{ID: "p2", Timestamp: 6, Text: "from content", WorkspacePath: "w1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Prompt(gjson.Parse(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	rawEvents := []string{
		`{"id":"e1","timestamp":"2024-05-01 10:00:00","file_path":"/a.go","workspace":"/w","details":{"lines_removed":2,"after_code":"z"}}`,
		`{"id":"e2","timestamp":9,"filePath":"/b.go","details":"{\"linesAdded\":1}"}`,
	}
	for _, raw := range rawEvents {
		once, err := Event(gjson.Parse(raw))
		require.NoError(t, err)
		data, err := json.Marshal(once)
		require.NoError(t, err)
		twice, err := Event(gjson.ParseBytes(data))
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}

	rawPrompts := []string{
		`{"id":"p1","timestamp":1,"preview":"hello","workspace_path":"/w","context_usage":10,"at_files":["x"]}`,
		`{"id":"p2","timestamp":2,"text":"{\"json\":true}","composerId":"c"}`,
	}
	for _, raw := range rawPrompts {
		once, err := Prompt(gjson.Parse(raw))
		require.NoError(t, err)
		data, err := json.Marshal(once)
		require.NoError(t, err)
		twice, err := Prompt(gjson.ParseBytes(data))
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestWorkspaceAndFeeds(t *testing.T) {
	ws, err := Workspace(gjson.Parse(`{"path":"/home/u/dash","event_count":4,"lastActivity":"2024-01-01T00:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, "dash", ws.Name)
	assert.Equal(t, 4, ws.EventCount)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), ws.LastActivity)

	ws, err = Workspace(gjson.Parse(`"/plain/path"`))
	require.NoError(t, err)
	assert.Equal(t, "path", ws.Name)

	fc, err := FileContent(gjson.Parse(`{"path":"/w/a.go","name":"a.go","ext":"go","content":"package a","changes":3,"lastModified":11,"size":9,"workspace_path":"/w"}`))
	require.NoError(t, err)
	assert.Equal(t, model.FileContent{Path: "/w/a.go", Name: "a.go", Ext: "go", Content: "package a", Changes: 3, LastModified: 11, Size: 9, WorkspacePath: "/w"}, fc)

	cc, err := ContextChange(gjson.Parse(`{"timestamp":3,"currentFileCount":5,"netChange":-1,"removedFiles":["a"]}`))
	require.NoError(t, err)
	assert.Equal(t, -1, cc.NetChange)
	assert.Equal(t, []string{"a"}, cc.RemovedFiles)

	g, err := GitSnapshot(gjson.Parse(`{"timestamp":4,"branch":"main","recentCommits":["abc fix"]}`))
	require.NoError(t, err)
	assert.Equal(t, "main", g.Branch)
}

func TestItemsAndTotal(t *testing.T) {
	body := []byte(`{"data":[{"id":"a","timestamp":1},{"timestamp":2},{"id":"c","timestamp":3}],"pagination":{"total":120}}`)
	items := Items(body, "data", "entries")
	require.Len(t, items, 3)
	events, dropped := All(items, Event)
	assert.Len(t, events, 2)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 120, Total(body))

	assert.Len(t, Items([]byte(`[{"path":"/a"}]`)), 1)
	assert.Nil(t, Items([]byte(`{"other":1}`), "data"))
	assert.Equal(t, -1, Total([]byte(`[]`)))
}
