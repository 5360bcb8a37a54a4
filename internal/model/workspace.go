package model

// Workspace is a top-level project path events and prompts are attributed to.
// The counters are derived and recomputed whenever events or prompts change.
type Workspace struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	EventCount   int    `json:"eventCount"`
	PromptCount  int    `json:"promptCount"`
	LastActivity int64  `json:"lastActivity"`
}

func (w Workspace) RecordID() string  { return w.Path }
func (w Workspace) RecordTime() int64 { return w.LastActivity }
