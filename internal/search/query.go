package search

import (
	"errors"
	"strings"
	"time"

	"telemetry-dashboard/internal/corpus"
	"telemetry-dashboard/internal/errs"
)

// Filter keys recognized in key:value tokens.
const (
	FilterType      = "type"
	FilterWorkspace = "workspace"
	FilterWS        = "ws"
	FilterDate      = "date"
	FilterMode      = "mode"
	FilterContext   = "context"
)

// FilterKeys lists the canonical keys in render order.
var FilterKeys = []string{FilterType, FilterWorkspace, FilterDate, FilterMode, FilterContext}

// Date keywords accepted by the date filter besides YYYY-MM-DD.
const (
	DateToday     = "today"
	DateYesterday = "yesterday"
	DateWeek      = "week"
	DateMonth     = "month"
)

const dateLayout = "2006-01-02"

// Filters are the recognized key:value constraints of a query. Zero values
// mean unconstrained.
type Filters struct {
	Type      corpus.Kind
	Workspace string
	Date      string
	Mode      string
	Context   *bool
}

func (f Filters) Empty() bool {
	return f.Type == "" && f.Workspace == "" && f.Date == "" && f.Mode == "" && f.Context == nil
}

// Query is a parsed search string.
type Query struct {
	Text    string
	Filters Filters
}

func (q Query) Empty() bool {
	return q.Text == "" && q.Filters.Empty()
}

// ParseQuery splits raw into filters and free text. Malformed filters are
// stripped and reported through a user_input error; the returned Query is
// usable either way.
func ParseQuery(raw string) (Query, error) {
	var q Query
	var text []string
	var problems []error
	for _, field := range strings.Fields(raw) {
		key, value, ok := strings.Cut(field, ":")
		if !ok {
			text = append(text, field)
			continue
		}
		key = strings.ToLower(key)
		if err := q.Filters.set(key, value); err != nil {
			if errors.Is(err, errUnknownKey) {
				text = append(text, field)
				continue
			}
			problems = append(problems, err)
		}
	}
	q.Text = strings.Join(text, " ")
	if len(problems) > 0 {
		return q, errs.New(errs.KindUserInput, "search.parse", errors.Join(problems...))
	}
	return q, nil
}

var errUnknownKey = errors.New("unknown filter key")

func (f *Filters) set(key, value string) error {
	if value == "" && isFilterKey(key) {
		return errs.UserInput("search.parse", "empty value for %s", key)
	}
	switch key {
	case FilterType:
		kind, ok := corpus.ParseKind(value)
		if !ok {
			return errs.UserInput("search.parse", "unknown type %q", value)
		}
		f.Type = kind
	case FilterWorkspace, FilterWS:
		f.Workspace = value
	case FilterDate:
		d := strings.ToLower(value)
		switch d {
		case DateToday, DateYesterday, DateWeek, DateMonth:
		default:
			if _, err := time.Parse(dateLayout, d); err != nil {
				return errs.UserInput("search.parse", "invalid date %q", value)
			}
		}
		f.Date = d
	case FilterMode:
		f.Mode = strings.ToLower(value)
	case FilterContext:
		var b bool
		switch strings.ToLower(value) {
		case "true", "yes":
			b = true
		case "false":
		default:
			return errs.UserInput("search.parse", "invalid context flag %q", value)
		}
		f.Context = &b
	default:
		return errUnknownKey
	}
	return nil
}

func isFilterKey(key string) bool {
	switch key {
	case FilterType, FilterWorkspace, FilterWS, FilterDate, FilterMode, FilterContext:
		return true
	}
	return false
}

// Render serializes q back to query syntax with filters in canonical form.
func Render(q Query) string {
	var parts []string
	if q.Filters.Type != "" {
		parts = append(parts, FilterType+":"+string(q.Filters.Type))
	}
	if q.Filters.Workspace != "" {
		parts = append(parts, FilterWorkspace+":"+q.Filters.Workspace)
	}
	if q.Filters.Date != "" {
		parts = append(parts, FilterDate+":"+q.Filters.Date)
	}
	if q.Filters.Mode != "" {
		parts = append(parts, FilterMode+":"+q.Filters.Mode)
	}
	if q.Filters.Context != nil {
		if *q.Filters.Context {
			parts = append(parts, FilterContext+":true")
		} else {
			parts = append(parts, FilterContext+":false")
		}
	}
	if q.Text != "" {
		parts = append(parts, q.Text)
	}
	return strings.Join(parts, " ")
}

// DateRange resolves the date filter to a half-open [start, end) range of
// millisecond timestamps, relative to now's location.
func DateRange(date string, now time.Time) (int64, int64, bool) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var start, end time.Time
	switch date {
	case DateToday:
		start, end = day, day.AddDate(0, 0, 1)
	case DateYesterday:
		start, end = day.AddDate(0, 0, -1), day
	case DateWeek:
		start, end = day.AddDate(0, 0, -6), day.AddDate(0, 0, 1)
	case DateMonth:
		start, end = day.AddDate(0, 0, -29), day.AddDate(0, 0, 1)
	default:
		t, err := time.ParseInLocation(dateLayout, date, now.Location())
		if err != nil {
			return 0, 0, false
		}
		start, end = t, t.AddDate(0, 0, 1)
	}
	return start.UnixMilli(), end.UnixMilli(), true
}

func (f Filters) match(d corpus.Document, now time.Time) bool {
	if f.Type != "" && d.Kind != f.Type {
		return false
	}
	if f.Workspace != "" && !strings.Contains(strings.ToLower(d.Workspace), strings.ToLower(f.Workspace)) {
		return false
	}
	if f.Date != "" {
		start, end, ok := DateRange(f.Date, now)
		if !ok || d.Timestamp < start || d.Timestamp >= end {
			return false
		}
	}
	if f.Mode != "" && strings.ToLower(d.Metadata.Mode) != f.Mode {
		return false
	}
	if f.Context != nil && (d.Metadata.ContextUsage > 0) != *f.Context {
		return false
	}
	return true
}
