package model

// Event types emitted by the activity source.
const (
	EventTypeFileChange = "file-change"
	EventTypeCodeChange = "code-change"
	EventTypeFileEdit   = "file-edit"
	EventTypeTerminal   = "terminal"
)

// Prompt sources.
const (
	PromptSourceClipboard = "clipboard"
	PromptSourceComposer  = "composer"
	PromptSourceManual    = "manual"
)

// UnknownWorkspace is used when a record carries no workspace attribution.
const UnknownWorkspace = "unknown"

const EmptyString = ""

// IsCodeChange reports whether an event type represents an edit to code.
func IsCodeChange(eventType string) bool {
	switch eventType {
	case EventTypeFileChange, EventTypeCodeChange, EventTypeFileEdit:
		return true
	}
	return false
}
