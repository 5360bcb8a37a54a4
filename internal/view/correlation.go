package view

import (
	"sort"
	"time"

	"telemetry-dashboard/internal/model"
)

const DefaultCorrelationWindow = 30 * time.Minute

// Correlation pairs a prompt with the code changes that followed it.
type Correlation struct {
	Prompt       model.Prompt  `json:"prompt"`
	Changes      []model.Event `json:"changes"`
	Files        []string      `json:"files"`
	LinesChanged int           `json:"linesChanged"`
	// FirstChangeAfter is the delay to the first change in milliseconds.
	FirstChangeAfter int64 `json:"firstChangeAfter,omitempty"`
}

// CorrelationReport is the per-prompt list plus aggregate rates.
type CorrelationReport struct {
	WindowMs        int64         `json:"windowMs"`
	Correlations    []Correlation `json:"correlations"`
	PromptsWithCode int           `json:"promptsWithCode"`
	Rate            float64       `json:"rate"`
	AvgLatencyMs    float64       `json:"avgLatencyMs"`
}

// PromptToCodeCorrelation pairs each prompt with code-change events in
// (prompt time, prompt time + window]. When both sides carry a workspace
// they must agree. Prompts are listed oldest first.
func (v *View) PromptToCodeCorrelation(window time.Duration) CorrelationReport {
	if window <= 0 {
		window = DefaultCorrelationWindow
	}
	windowMs := window.Milliseconds()
	events := v.snap.Events
	report := CorrelationReport{WindowMs: windowMs, Correlations: make([]Correlation, 0, len(v.snap.Prompts))}
	var latency int64

	for _, p := range v.snap.Prompts {
		c := Correlation{Prompt: p}
		start := sort.Search(len(events), func(i int) bool { return events[i].Timestamp > p.Timestamp })
		seen := make(map[string]struct{})
		for _, e := range events[start:] {
			if e.Timestamp > p.Timestamp+windowMs {
				break
			}
			if !model.IsCodeChange(e.Type) {
				continue
			}
			if p.WorkspacePath != "" && e.WorkspacePath != "" && p.WorkspacePath != e.WorkspacePath {
				continue
			}
			if len(c.Changes) == 0 {
				c.FirstChangeAfter = e.Timestamp - p.Timestamp
			}
			c.Changes = append(c.Changes, e)
			c.LinesChanged += e.LinesChanged()
			if _, ok := seen[e.FilePath]; !ok && e.FilePath != "" {
				seen[e.FilePath] = struct{}{}
				c.Files = append(c.Files, e.FilePath)
			}
		}
		if len(c.Changes) > 0 {
			report.PromptsWithCode++
			latency += c.FirstChangeAfter
		}
		report.Correlations = append(report.Correlations, c)
	}
	if n := len(v.snap.Prompts); n > 0 {
		report.Rate = float64(report.PromptsWithCode) / float64(n)
	}
	if report.PromptsWithCode > 0 {
		report.AvgLatencyMs = float64(latency) / float64(report.PromptsWithCode)
	}
	return report
}
