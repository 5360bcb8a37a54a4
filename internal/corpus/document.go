package corpus

import (
	"path/filepath"
	"strings"

	"telemetry-dashboard/internal/model"
	"telemetry-dashboard/internal/utils"
)

// Kind is the record type a Document was built from.
type Kind string

const (
	KindEvent     Kind = "event"
	KindPrompt    Kind = "prompt"
	KindWorkspace Kind = "workspace"
)

// ParseKind maps user input onto a Kind, accepting plurals.
func ParseKind(s string) (Kind, bool) {
	switch strings.TrimSuffix(strings.ToLower(s), "s") {
	case "event":
		return KindEvent, true
	case "prompt":
		return KindPrompt, true
	case "workspace":
		return KindWorkspace, true
	}
	return "", false
}

const promptTitleLength = 100

// Metadata carries the per-kind attributes search boosts and filters read.
type Metadata struct {
	EventType      string  `json:"eventType,omitempty"`
	FilePath       string  `json:"filePath,omitempty"`
	SessionID      string  `json:"sessionId,omitempty"`
	LinesAdded     int     `json:"linesAdded,omitempty"`
	LinesRemoved   int     `json:"linesRemoved,omitempty"`
	ChangeType     string  `json:"changeType,omitempty"`
	Source         string  `json:"source,omitempty"`
	ComposerID     string  `json:"composerId,omitempty"`
	ContextUsage   float64 `json:"contextUsage,omitempty"`
	Mode           string  `json:"mode,omitempty"`
	ModelName      string  `json:"modelName,omitempty"`
	IsConversation bool    `json:"isConversation,omitempty"`
}

// Document is the searchable projection of one event, prompt or workspace.
type Document struct {
	ID        string   `json:"id"`
	RecordID  string   `json:"recordId"`
	Kind      Kind     `json:"kind"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Workspace string   `json:"workspace"`
	Timestamp int64    `json:"timestamp"`
	Metadata  Metadata `json:"metadata"`
}

// Text is what gets tokenized for the index.
func (d Document) Text() string {
	return d.Title + " " + d.Content
}

func workspaceOrUnknown(path string) string {
	if path == "" {
		return model.UnknownWorkspace
	}
	return path
}

// EventDocument returns false for events without a file path.
func EventDocument(e model.Event) (Document, bool) {
	if e.FilePath == "" {
		return Document{}, false
	}
	name := filepath.Base(e.FilePath)
	content := strings.Join([]string{name, e.FilePath, e.Details.BeforeContent, e.Details.AfterContent}, " ")
	return Document{
		ID:        string(KindEvent) + ":" + e.ID,
		RecordID:  e.ID,
		Kind:      KindEvent,
		Title:     name,
		Content:   content,
		Workspace: workspaceOrUnknown(e.WorkspacePath),
		Timestamp: e.Timestamp,
		Metadata: Metadata{
			EventType:    e.Type,
			FilePath:     e.FilePath,
			SessionID:    e.SessionID,
			LinesAdded:   e.Details.LinesAdded,
			LinesRemoved: e.Details.LinesRemoved,
			ChangeType:   e.Details.ChangeType,
		},
	}, true
}

// PromptDocument returns false for raw JSON blobs that are not conversations.
func PromptDocument(p model.Prompt) (Document, bool) {
	if p.IsJSONBlob() {
		return Document{}, false
	}
	title := utils.Truncate(p.Text, promptTitleLength)
	if p.IsConversation() {
		label := p.ConversationTitle
		if label == "" {
			label = title
		}
		title = "Conversation: " + label
	}
	return Document{
		ID:        string(KindPrompt) + ":" + p.ID,
		RecordID:  p.ID,
		Kind:      KindPrompt,
		Title:     title,
		Content:   p.Text,
		Workspace: workspaceOrUnknown(p.WorkspacePath),
		Timestamp: p.Timestamp,
		Metadata: Metadata{
			Source:         p.Source,
			ComposerID:     p.ComposerID,
			ContextUsage:   p.ContextUsage,
			Mode:           p.Mode,
			ModelName:      p.ModelName,
			IsConversation: p.IsConversation(),
		},
	}, true
}

func WorkspaceDocument(w model.Workspace) Document {
	return Document{
		ID:        string(KindWorkspace) + ":" + w.Path,
		RecordID:  w.Path,
		Kind:      KindWorkspace,
		Title:     w.Name,
		Content:   w.Name + " " + w.Path,
		Workspace: w.Path,
		Timestamp: w.LastActivity,
	}
}

// BuildDocuments projects records into documents: events, then prompts,
// then workspaces.
func BuildDocuments(events []model.Event, prompts []model.Prompt, workspaces []model.Workspace) []Document {
	docs := make([]Document, 0, len(events)+len(prompts)+len(workspaces))
	for _, e := range events {
		if d, ok := EventDocument(e); ok {
			docs = append(docs, d)
		}
	}
	for _, p := range prompts {
		if d, ok := PromptDocument(p); ok {
			docs = append(docs, d)
		}
	}
	for _, w := range workspaces {
		docs = append(docs, WorkspaceDocument(w))
	}
	return docs
}
