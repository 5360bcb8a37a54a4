// Package normalize maps the activity source's heterogeneous field names onto
// the canonical model. It never invents values: a field absent under every
// recognized name stays zero.
package normalize

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"telemetry-dashboard/internal/errs"
	"telemetry-dashboard/internal/model"
)

// Field aliases, canonical name first. Listing the canonical JSON name first
// makes normalizing an already-canonical record the identity.
var (
	idKeys        = []string{"id", "event_id", "eventId"}
	promptIDKeys  = []string{"id", "prompt_id", "promptId"}
	timestampKeys = []string{"timestamp", "created_at", "createdAt", "time"}
	eventTypeKeys = []string{"type", "event_type", "eventType"}
	filePathKeys  = []string{"filePath", "file_path", "file"}
	sessionKeys   = []string{"sessionId", "session_id"}

	// Events only honour explicit paths; ids and names are prompt-side concepts.
	eventWorkspaceKeys  = []string{"workspacePath", "workspace_path", "workspace"}
	promptWorkspaceKeys = []string{"workspacePath", "workspace_path", "workspaceId", "workspaceName", "workspace"}

	linesAddedKeys   = []string{"linesAdded", "lines_added"}
	linesRemovedKeys = []string{"linesRemoved", "lines_removed"}
	charsAddedKeys   = []string{"charsAdded", "chars_added"}
	charsDeletedKeys = []string{"charsDeleted", "chars_deleted"}
	changeTypeKeys   = []string{"changeType", "change_type"}
	beforeKeys       = []string{"beforeContent", "before_content", "before_code"}
	afterKeys        = []string{"afterContent", "after_content", "after_code"}

	promptTextKeys   = []string{"text", "prompt", "preview", "content"}
	composerKeys     = []string{"composerId", "composer_id"}
	titleKeys        = []string{"conversationTitle", "conversation_title"}
	modelNameKeys    = []string{"modelName", "model_name", "model"}
	contextUseKeys   = []string{"contextUsage", "context_usage"}
	contextCountKeys = []string{"contextFileCount", "context_file_count"}
	atFilesKeys      = []string{"atFiles", "at_files"}
	contextFileKeys  = []string{"contextFiles", "context_files"}
	linkedEntryKeys  = []string{"linkedEntryId", "linked_entry_id"}
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// first returns the first alias that is present and non-empty.
func first(r gjson.Result, keys []string) gjson.Result {
	for _, k := range keys {
		v := r.Get(k)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if v.Type == gjson.String && strings.TrimSpace(v.Str) == "" {
			continue
		}
		return v
	}
	return gjson.Result{}
}

func str(r gjson.Result, keys []string) string {
	return first(r, keys).String()
}

func integer(r gjson.Result, keys []string) int {
	return int(first(r, keys).Int())
}

func float(r gjson.Result, keys []string) float64 {
	return first(r, keys).Float()
}

// embedded returns a nested object which may also arrive as a JSON string.
func embedded(r gjson.Result, key string) gjson.Result {
	v := r.Get(key)
	if v.Type == gjson.String && gjson.Valid(v.Str) {
		return gjson.Parse(v.Str)
	}
	return v
}

// stringList reads a list that may be an array of strings, an array of objects
// with a path, or a JSON-encoded string of either.
func stringList(r gjson.Result, keys []string) []string {
	v := first(r, keys)
	if v.Type == gjson.String && gjson.Valid(v.Str) {
		v = gjson.Parse(v.Str)
	}
	if !v.IsArray() {
		return nil
	}
	var out []string
	for _, item := range v.Array() {
		s := item.String()
		if item.IsObject() {
			s = str(item, []string{"path", "filePath", "file_path", "name"})
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Timestamp reads a millisecond epoch from a number, a numeric string, or an
// ISO-8601 string.
func Timestamp(v gjson.Result) (int64, bool) {
	switch v.Type {
	case gjson.Number:
		return v.Int(), true
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UnixMilli(), true
			}
		}
	}
	return 0, false
}

func timestamp(r gjson.Result, keys []string) (int64, bool) {
	return Timestamp(first(r, keys))
}

// Event maps one raw activity record.
func Event(r gjson.Result) (model.Event, error) {
	const op = "normalize.Event"
	if !r.IsObject() {
		return model.Event{}, errs.Malformed(op, "record is not an object")
	}
	id := str(r, idKeys)
	if id == "" {
		return model.Event{}, errs.Malformed(op, "missing id")
	}
	ts, ok := timestamp(r, timestampKeys)
	if !ok {
		return model.Event{}, errs.Malformed(op, "event %s: missing or invalid timestamp", id)
	}

	details := embedded(r, "details")
	if !details.IsObject() {
		details = r
	}
	// metrics may sit either in details or at the top level
	pick := func(keys []string) gjson.Result {
		if v := first(details, keys); v.Exists() {
			return v
		}
		return first(r, keys)
	}

	return model.Event{
		ID:            id,
		Timestamp:     ts,
		Type:          str(r, eventTypeKeys),
		FilePath:      filePath(r, details),
		WorkspacePath: str(r, eventWorkspaceKeys),
		SessionID:     str(r, sessionKeys),
		Details: model.EventDetails{
			LinesAdded:    int(pick(linesAddedKeys).Int()),
			LinesRemoved:  int(pick(linesRemovedKeys).Int()),
			CharsAdded:    int(pick(charsAddedKeys).Int()),
			CharsDeleted:  int(pick(charsDeletedKeys).Int()),
			ChangeType:    pick(changeTypeKeys).String(),
			BeforeContent: pick(beforeKeys).String(),
			AfterContent:  pick(afterKeys).String(),
		},
	}, nil
}

func filePath(r, details gjson.Result) string {
	if p := str(r, filePathKeys); p != "" {
		return p
	}
	return str(details, filePathKeys)
}

// Prompt maps one raw prompt entry.
func Prompt(r gjson.Result) (model.Prompt, error) {
	const op = "normalize.Prompt"
	if !r.IsObject() {
		return model.Prompt{}, errs.Malformed(op, "record is not an object")
	}
	id := str(r, promptIDKeys)
	if id == "" {
		return model.Prompt{}, errs.Malformed(op, "missing id")
	}
	ts, ok := timestamp(r, timestampKeys)
	if !ok {
		return model.Prompt{}, errs.Malformed(op, "prompt %s: missing or invalid timestamp", id)
	}
	return model.Prompt{
		ID:                id,
		Timestamp:         ts,
		Text:              str(r, promptTextKeys),
		Source:            r.Get("source").String(),
		WorkspacePath:     str(r, promptWorkspaceKeys),
		ComposerID:        str(r, composerKeys),
		ConversationTitle: str(r, titleKeys),
		Mode:              r.Get("mode").String(),
		ModelName:         str(r, modelNameKeys),
		ContextUsage:      float(r, contextUseKeys),
		ContextFileCount:  integer(r, contextCountKeys),
		AtFiles:           stringList(r, atFilesKeys),
		ContextFiles:      stringList(r, contextFileKeys),
		LinkedEntryID:     str(r, linkedEntryKeys),
	}, nil
}

// Workspace maps one raw workspace summary.
func Workspace(r gjson.Result) (model.Workspace, error) {
	const op = "normalize.Workspace"
	if r.Type == gjson.String && r.Str != "" {
		return model.Workspace{Path: r.Str, Name: filepath.Base(r.Str)}, nil
	}
	if !r.IsObject() {
		return model.Workspace{}, errs.Malformed(op, "record is not an object")
	}
	path := str(r, []string{"path", "workspacePath", "workspace_path", "id"})
	if path == "" {
		return model.Workspace{}, errs.Malformed(op, "missing path")
	}
	name := str(r, []string{"name", "workspaceName"})
	if name == "" {
		name = filepath.Base(path)
	}
	last, _ := timestamp(r, []string{"lastActivity", "last_activity", "lastActive"})
	return model.Workspace{
		Path:         path,
		Name:         name,
		EventCount:   integer(r, []string{"eventCount", "event_count", "events"}),
		PromptCount:  integer(r, []string{"promptCount", "prompt_count", "entries"}),
		LastActivity: last,
	}, nil
}

// FileContent maps one entry of the file-contents feed.
func FileContent(r gjson.Result) (model.FileContent, error) {
	const op = "normalize.FileContent"
	path := str(r, []string{"path", "filePath", "file_path"})
	if path == "" {
		return model.FileContent{}, errs.Malformed(op, "missing path")
	}
	last, _ := timestamp(r, []string{"lastModified", "last_modified"})
	return model.FileContent{
		Path:          path,
		Name:          r.Get("name").String(),
		Ext:           r.Get("ext").String(),
		Content:       r.Get("content").String(),
		Changes:       integer(r, []string{"changes"}),
		LastModified:  last,
		Size:          first(r, []string{"size"}).Int(),
		WorkspacePath: str(r, eventWorkspaceKeys),
	}, nil
}

// ContextChange maps one point of the context-change feed.
func ContextChange(r gjson.Result) (model.ContextChange, error) {
	ts, ok := timestamp(r, timestampKeys)
	if !ok {
		return model.ContextChange{}, errs.Malformed("normalize.ContextChange", "missing timestamp")
	}
	return model.ContextChange{
		Timestamp:        ts,
		CurrentFileCount: integer(r, []string{"currentFileCount", "current_file_count"}),
		NetChange:        integer(r, []string{"netChange", "net_change"}),
		AddedFiles:       stringList(r, []string{"addedFiles", "added_files"}),
		RemovedFiles:     stringList(r, []string{"removedFiles", "removed_files"}),
	}, nil
}

// GitSnapshot maps one sample of the git feed.
func GitSnapshot(r gjson.Result) (model.GitSnapshot, error) {
	ts, ok := timestamp(r, timestampKeys)
	if !ok {
		return model.GitSnapshot{}, errs.Malformed("normalize.GitSnapshot", "missing timestamp")
	}
	return model.GitSnapshot{
		Timestamp:     ts,
		Branch:        str(r, []string{"branch"}),
		RecentCommits: stringList(r, []string{"recentCommits", "recent_commits"}),
	}, nil
}

// All applies fn to every item, returning the successes and the number of
// records dropped as malformed.
func All[T any](items []gjson.Result, fn func(gjson.Result) (T, error)) ([]T, int) {
	out := make([]T, 0, len(items))
	dropped := 0
	for _, item := range items {
		v, err := fn(item)
		if err != nil {
			dropped++
			continue
		}
		out = append(out, v)
	}
	return out, dropped
}

// Items extracts the record list from a response body: the first of keys
// holding an array, or the body itself when it is an array.
func Items(body []byte, keys ...string) []gjson.Result {
	root := gjson.ParseBytes(body)
	if root.IsArray() {
		return root.Array()
	}
	for _, k := range keys {
		if v := root.Get(k); v.IsArray() {
			return v.Array()
		}
	}
	return nil
}

// Total reads pagination.total, or -1 when absent.
func Total(body []byte) int {
	v := gjson.GetBytes(body, "pagination.total")
	if !v.Exists() {
		return -1
	}
	return int(v.Int())
}
