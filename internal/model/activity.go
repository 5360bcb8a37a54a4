package model

import "strings"

// EventDetails carries the edit metrics of an activity event.
type EventDetails struct {
	LinesAdded    int    `json:"linesAdded"`
	LinesRemoved  int    `json:"linesRemoved"`
	CharsAdded    int    `json:"charsAdded"`
	CharsDeleted  int    `json:"charsDeleted"`
	ChangeType    string `json:"changeType,omitempty"`
	BeforeContent string `json:"beforeContent,omitempty"`
	AfterContent  string `json:"afterContent,omitempty"`
}

// Event is a canonical activity event. Timestamps are millisecond epochs.
type Event struct {
	ID            string       `json:"id"`
	Timestamp     int64        `json:"timestamp"`
	Type          string       `json:"type"`
	FilePath      string       `json:"filePath,omitempty"`
	WorkspacePath string       `json:"workspacePath,omitempty"`
	SessionID     string       `json:"sessionId,omitempty"`
	Details       EventDetails `json:"details"`
}

func (e Event) RecordID() string  { return e.ID }
func (e Event) RecordTime() int64 { return e.Timestamp }

// LinesChanged is linesAdded + linesRemoved.
func (e Event) LinesChanged() int {
	return e.Details.LinesAdded + e.Details.LinesRemoved
}

// Prompt is a canonical AI prompt record.
type Prompt struct {
	ID                string   `json:"id"`
	Timestamp         int64    `json:"timestamp"`
	Text              string   `json:"text"`
	Source            string   `json:"source,omitempty"`
	WorkspacePath     string   `json:"workspacePath,omitempty"`
	ComposerID        string   `json:"composerId,omitempty"`
	ConversationTitle string   `json:"conversationTitle,omitempty"`
	Mode              string   `json:"mode,omitempty"`
	ModelName         string   `json:"modelName,omitempty"`
	ContextUsage      float64  `json:"contextUsage"`
	ContextFileCount  int      `json:"contextFileCount"`
	AtFiles           []string `json:"atFiles,omitempty"`
	ContextFiles      []string `json:"contextFiles,omitempty"`
	LinkedEntryID     string   `json:"linkedEntryId,omitempty"`
}

func (p Prompt) RecordID() string  { return p.ID }
func (p Prompt) RecordTime() int64 { return p.Timestamp }

// IsConversation reports whether the prompt belongs to a composer conversation.
func (p Prompt) IsConversation() bool {
	return p.ComposerID != "" && (p.Source == PromptSourceComposer || p.ConversationTitle != "")
}

// IsJSONBlob reports whether the prompt text is a serialized payload rather
// than something a person typed. Conversations are never blobs.
func (p Prompt) IsJSONBlob() bool {
	if p.IsConversation() {
		return false
	}
	text := strings.TrimSpace(p.Text)
	return strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[")
}

// HasContext reports whether any context was attached to the prompt.
func (p Prompt) HasContext() bool {
	return p.ContextUsage > 0 || p.ContextFileCount > 0
}

// FileContent is one entry of the file-contents feed.
type FileContent struct {
	Path          string `json:"path"`
	Name          string `json:"name"`
	Ext           string `json:"ext"`
	Content       string `json:"content"`
	Changes       int    `json:"changes"`
	LastModified  int64  `json:"lastModified"`
	Size          int64  `json:"size"`
	WorkspacePath string `json:"workspacePath,omitempty"`
}

// ContextChange is a point on the context-file-count trend.
type ContextChange struct {
	Timestamp        int64    `json:"timestamp"`
	CurrentFileCount int      `json:"currentFileCount"`
	NetChange        int      `json:"netChange"`
	AddedFiles       []string `json:"addedFiles,omitempty"`
	RemovedFiles     []string `json:"removedFiles,omitempty"`
}

// GitSnapshot is one sample of the repository state feed.
type GitSnapshot struct {
	Timestamp     int64    `json:"timestamp"`
	Branch        string   `json:"branch"`
	RecentCommits []string `json:"recentCommits"`
}

// Health is the response of the health probe.
type Health struct {
	Status   string `json:"status"`
	Sequence int64  `json:"sequence"`
}
