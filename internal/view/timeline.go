package view

import (
	"fmt"
	"iter"
	"path"
	"slices"
	"strings"
	"time"

	"telemetry-dashboard/internal/errs"
	"telemetry-dashboard/internal/model"
)

type ItemKind string

const (
	ItemEvent  ItemKind = "event"
	ItemPrompt ItemKind = "prompt"
)

// Item is one row of the merged activity timeline. Exactly one of Event and
// Prompt is set.
type Item struct {
	Kind      ItemKind      `json:"kind"`
	SortTime  int64         `json:"sortTime"`
	Workspace string        `json:"workspace"`
	Event     *model.Event  `json:"event,omitempty"`
	Prompt    *model.Prompt `json:"prompt,omitempty"`
}

func (it Item) text() string {
	if it.Event != nil {
		return it.Event.FilePath + " " + it.Event.Type + " " + it.Event.Details.ChangeType
	}
	return it.Prompt.Text + " " + it.Prompt.ConversationTitle
}

// TimelineFilter narrows the timeline. Zero values match everything; To is
// exclusive.
type TimelineFilter struct {
	Kinds      []ItemKind `json:"kinds,omitempty"`
	Workspace  string     `json:"workspace,omitempty"`
	EventTypes []string   `json:"eventTypes,omitempty"`
	From       int64      `json:"from,omitempty"`
	To         int64      `json:"to,omitempty"`
	Text       string     `json:"text,omitempty"`
}

func (f TimelineFilter) match(it Item) bool {
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, it.Kind) {
		return false
	}
	if f.Workspace != "" && !strings.EqualFold(f.Workspace, it.Workspace) {
		return false
	}
	if len(f.EventTypes) > 0 && (it.Event == nil || !slices.Contains(f.EventTypes, it.Event.Type)) {
		return false
	}
	if f.From > 0 && it.SortTime < f.From {
		return false
	}
	if f.To > 0 && it.SortTime >= f.To {
		return false
	}
	if f.Text != "" && !strings.Contains(strings.ToLower(it.text()), strings.ToLower(f.Text)) {
		return false
	}
	return true
}

func workspaceOr(ws string) string {
	if ws == "" {
		return model.UnknownWorkspace
	}
	return ws
}

// Timeline lazily merges events and prompts newest first. The sequence can
// be ranged over any number of times.
func (v *View) Timeline(f TimelineFilter) iter.Seq[Item] {
	events, prompts := v.snap.Events, v.snap.Prompts
	return func(yield func(Item) bool) {
		i, j := len(events)-1, len(prompts)-1
		for i >= 0 || j >= 0 {
			var it Item
			if j < 0 || (i >= 0 && events[i].Timestamp >= prompts[j].Timestamp) {
				e := &events[i]
				it = Item{Kind: ItemEvent, SortTime: e.Timestamp, Workspace: workspaceOr(e.WorkspacePath), Event: e}
				i--
			} else {
				p := &prompts[j]
				it = Item{Kind: ItemPrompt, SortTime: p.Timestamp, Workspace: workspaceOr(p.WorkspacePath), Prompt: p}
				j--
			}
			if !f.match(it) {
				continue
			}
			if !yield(it) {
				return
			}
		}
	}
}

// Take collects at most n items of seq; n <= 0 collects all of them.
func Take[T any](seq iter.Seq[T], n int) []T {
	var out []T
	for it := range seq {
		out = append(out, it)
		if n > 0 && len(out) == n {
			break
		}
	}
	return out
}

type GroupBy string

const (
	GroupByFile         GroupBy = "file"
	GroupBySession      GroupBy = "session"
	GroupByWorkflow     GroupBy = "workflow"
	GroupByError        GroupBy = "error"
	GroupByModel        GroupBy = "model"
	GroupByWorkspace    GroupBy = "workspace"
	GroupByConversation GroupBy = "conversation"
	GroupByNone         GroupBy = "none"
)

var groupings = []GroupBy{GroupByFile, GroupBySession, GroupByWorkflow, GroupByError, GroupByModel,
	GroupByWorkspace, GroupByConversation, GroupByNone}

// ParseGroupBy accepts the grouping names case-insensitively; empty means none.
func ParseGroupBy(s string) (GroupBy, error) {
	if s == "" {
		return GroupByNone, nil
	}
	g := GroupBy(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(groupings, g) {
		return GroupByNone, errs.UserInput("view.groupBy", "unknown grouping %q", s)
	}
	return g, nil
}

// Items within this gap of each other belong to the same workflow.
const workflowGap = 15 * time.Minute

var errorWords = []string{"error", "exception", "failed", "failure", "panic", "traceback"}

// TimelineGroup is a run of timeline items sharing a key.
type TimelineGroup struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Items []Item `json:"items"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

// GroupTimeline partitions items by the chosen key. Groups appear in the
// order of their first item; items keep their input order.
func GroupTimeline(items []Item, by GroupBy) []TimelineGroup {
	var out []TimelineGroup
	index := make(map[string]int)
	workflow := 0
	var prev int64
	for n, it := range items {
		var key, label string
		switch by {
		case GroupByFile:
			key = itemFile(it)
			label = path.Base(key)
			if key == "" {
				label = "No file"
			}
		case GroupBySession:
			key = itemSession(it)
			label = key
			if key == "" {
				label = "No session"
			}
		case GroupByWorkflow:
			if n > 0 && absDuration(it.SortTime-prev) > workflowGap {
				workflow++
			}
			prev = it.SortTime
			key = fmt.Sprintf("workflow-%d", workflow)
			label = fmt.Sprintf("Workflow %d", workflow+1)
		case GroupByError:
			key, label = "other", "Other activity"
			if isErrorItem(it) {
				key, label = "errors", "Errors"
			}
		case GroupByModel:
			key = "events"
			label = "File activity"
			if it.Prompt != nil {
				key = it.Prompt.ModelName
				if key == "" {
					key = "unknown"
				}
				label = key
			}
		case GroupByWorkspace:
			key = it.Workspace
			label = path.Base(key)
		case GroupByConversation:
			key, label = "", "Standalone"
			if it.Prompt != nil && it.Prompt.IsConversation() {
				key = it.Prompt.ComposerID
				label = it.Prompt.ConversationTitle
				if label == "" {
					label = "Conversation " + key
				}
			}
		default:
			key, label = "all", "All activity"
		}

		g, ok := index[key]
		if !ok {
			g = len(out)
			index[key] = g
			out = append(out, TimelineGroup{Key: key, Label: label, Start: it.SortTime, End: it.SortTime})
		}
		grp := &out[g]
		grp.Items = append(grp.Items, it)
		grp.Start = min(grp.Start, it.SortTime)
		grp.End = max(grp.End, it.SortTime)
	}
	return out
}

func absDuration(millis int64) time.Duration {
	if millis < 0 {
		millis = -millis
	}
	return time.Duration(millis) * time.Millisecond
}

func itemFile(it Item) string {
	if it.Event != nil {
		return it.Event.FilePath
	}
	if len(it.Prompt.AtFiles) > 0 {
		return it.Prompt.AtFiles[0]
	}
	if len(it.Prompt.ContextFiles) > 0 {
		return it.Prompt.ContextFiles[0]
	}
	return ""
}

func itemSession(it Item) string {
	if it.Event != nil {
		return it.Event.SessionID
	}
	return it.Prompt.ComposerID
}

func isErrorItem(it Item) bool {
	text := strings.ToLower(it.text())
	if it.Event != nil {
		text += " " + strings.ToLower(it.Event.Details.AfterContent)
	}
	for _, w := range errorWords {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
