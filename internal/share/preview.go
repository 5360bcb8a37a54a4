package share

import (
	"bytes"
	"fmt"
	"html"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"telemetry-dashboard/internal/ingest"
	"telemetry-dashboard/internal/model"
)

// SharedEvent is an event after redaction. Fields the level withholds are
// left empty.
type SharedEvent struct {
	Timestamp     int64  `json:"timestamp"`
	Type          string `json:"type"`
	Workspace     string `json:"workspace"`
	FilePath      string `json:"filePath,omitempty"`
	Extension     string `json:"extension,omitempty"`
	LinesAdded    int    `json:"linesAdded"`
	LinesRemoved  int    `json:"linesRemoved"`
	ChangeType    string `json:"changeType,omitempty"`
	BeforeContent string `json:"beforeContent,omitempty"`
	AfterContent  string `json:"afterContent,omitempty"`
}

// SharedPrompt is a prompt after redaction.
type SharedPrompt struct {
	Timestamp    int64   `json:"timestamp"`
	Workspace    string  `json:"workspace"`
	Text         string  `json:"text,omitempty"`
	TextLength   int     `json:"textLength"`
	ModelName    string  `json:"modelName,omitempty"`
	Mode         string  `json:"mode,omitempty"`
	ContextUsage float64 `json:"contextUsage"`
	ContextFiles int     `json:"contextFiles"`
}

// Patterns are the aggregates every level exposes.
type Patterns struct {
	Events          int            `json:"events"`
	Prompts         int            `json:"prompts"`
	LinesAdded      int            `json:"linesAdded"`
	LinesRemoved    int            `json:"linesRemoved"`
	EventTypes      map[string]int `json:"eventTypes"`
	Extensions      map[string]int `json:"extensions"`
	HourOfDay       [24]int        `json:"hourOfDay"`
	AvgContextUsage float64        `json:"avgContextUsage"`
}

// Preview is exactly what a share link at the intent's level would expose.
type Preview struct {
	Name       string         `json:"name,omitempty"`
	Level      Level          `json:"abstractionLevel"`
	Label      string         `json:"label"`
	Workspaces []string       `json:"workspaces"`
	Events     []SharedEvent  `json:"events,omitempty"`
	Prompts    []SharedPrompt `json:"prompts,omitempty"`
	Patterns   Patterns       `json:"patterns"`
	Markdown   string         `json:"markdown"`
	HTML       string         `json:"html"`
}

func workspaceOf(ws string) string {
	if ws == "" {
		return model.UnknownWorkspace
	}
	return ws
}

// BuildPreview redacts the snapshot's activity in the intent's workspaces
// and date range down to the intent's level.
func BuildPreview(in Intent, snap *ingest.Snapshot) (*Preview, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	from, to, _ := in.dateRange()
	level := in.AbstractionLevel
	p := &Preview{
		Name:       in.Name,
		Level:      level,
		Label:      level.String(),
		Workspaces: append([]string(nil), in.Workspaces...),
		Patterns:   Patterns{EventTypes: map[string]int{}, Extensions: map[string]int{}},
	}
	if snap == nil {
		snap = &ingest.Snapshot{}
	}

	for _, e := range snap.Events {
		ws := workspaceOf(e.WorkspacePath)
		if !in.covers(ws, e.Timestamp, from, to) {
			continue
		}
		ext := strings.TrimPrefix(path.Ext(e.FilePath), ".")
		pt := &p.Patterns
		pt.Events++
		pt.LinesAdded += e.Details.LinesAdded
		pt.LinesRemoved += e.Details.LinesRemoved
		pt.EventTypes[e.Type]++
		if ext != "" {
			pt.Extensions[ext]++
		}
		pt.HourOfDay[time.UnixMilli(e.Timestamp).UTC().Hour()]++

		if !level.IncludesRecords() {
			continue
		}
		se := SharedEvent{
			Timestamp:    e.Timestamp,
			Type:         e.Type,
			Workspace:    ws,
			Extension:    ext,
			LinesAdded:   e.Details.LinesAdded,
			LinesRemoved: e.Details.LinesRemoved,
			ChangeType:   e.Details.ChangeType,
		}
		if level.IncludesPaths() {
			se.FilePath = e.FilePath
		}
		if level.IncludesCode() {
			se.BeforeContent = e.Details.BeforeContent
			se.AfterContent = e.Details.AfterContent
		}
		p.Events = append(p.Events, se)
	}

	var usage float64
	for _, pr := range snap.Prompts {
		ws := workspaceOf(pr.WorkspacePath)
		if !in.covers(ws, pr.Timestamp, from, to) {
			continue
		}
		p.Patterns.Prompts++
		usage += pr.ContextUsage
		p.Patterns.HourOfDay[time.UnixMilli(pr.Timestamp).UTC().Hour()]++
		if !level.IncludesRecords() {
			continue
		}
		sp := SharedPrompt{
			Timestamp:    pr.Timestamp,
			Workspace:    ws,
			TextLength:   len([]rune(pr.Text)),
			ModelName:    pr.ModelName,
			Mode:         pr.Mode,
			ContextUsage: pr.ContextUsage,
			ContextFiles: pr.ContextFileCount,
		}
		if level.IncludesPaths() {
			sp.Text = pr.Text
		}
		p.Prompts = append(p.Prompts, sp)
	}
	if p.Patterns.Prompts > 0 {
		p.Patterns.AvgContextUsage = usage / float64(p.Patterns.Prompts)
	}

	p.Markdown = p.markdown()
	p.HTML = renderMarkdown(p.Markdown)
	return p, nil
}

// markdown renders the human summary shown on the share page. It only reads
// fields already redacted for the level.
func (p *Preview) markdown() string {
	var b strings.Builder
	title := p.Name
	if title == "" {
		title = "Shared activity"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "*%s* view of %d workspace(s).\n\n", p.Label, len(p.Workspaces))
	fmt.Fprintf(&b, "- %d events, %d prompts\n", p.Patterns.Events, p.Patterns.Prompts)
	fmt.Fprintf(&b, "- +%d / -%d lines\n", p.Patterns.LinesAdded, p.Patterns.LinesRemoved)
	if p.Patterns.Prompts > 0 {
		fmt.Fprintf(&b, "- average context usage %.1f%%\n", p.Patterns.AvgContextUsage)
	}
	if len(p.Patterns.Extensions) > 0 {
		b.WriteString("\n## Languages\n\n")
		for _, ext := range sortedByCount(p.Patterns.Extensions) {
			fmt.Fprintf(&b, "- `%s`: %d\n", ext, p.Patterns.Extensions[ext])
		}
	}
	if len(p.Events) > 0 && p.Level.IncludesPaths() {
		b.WriteString("\n## Recent files\n\n")
		seen := map[string]bool{}
		for i := len(p.Events) - 1; i >= 0 && len(seen) < 10; i-- {
			fp := p.Events[i].FilePath
			if fp == "" || seen[fp] {
				continue
			}
			seen[fp] = true
			fmt.Fprintf(&b, "- %s\n", fp)
		}
	}
	return b.String()
}

func sortedByCount(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

func renderMarkdown(md string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "<pre>" + html.EscapeString(md) + "</pre>"
	}
	return buf.String()
}
