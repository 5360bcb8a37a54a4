// Package share creates share links for a slice of activity and previews
// what a link would expose. Abstraction levels are redaction policies; a
// link id is a bearer credential, not an encrypted payload.
package share

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"telemetry-dashboard/internal/errs"
)

// Level is how much of the underlying activity a share exposes.
type Level int

const (
	LevelFull     Level = 0
	LevelMetrics  Level = 1
	LevelHigh     Level = 2
	LevelPatterns Level = 3
)

var levelLabels = map[Level]string{
	LevelFull:     "Full Details",
	LevelMetrics:  "Metrics Only",
	LevelHigh:     "High-Level",
	LevelPatterns: "Patterns Only",
}

func (l Level) Valid() bool {
	_, ok := levelLabels[l]
	return ok
}

func (l Level) String() string {
	if s, ok := levelLabels[l]; ok {
		return s
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// IncludesCode reports whether before/after file content survives redaction.
func (l Level) IncludesCode() bool { return l == LevelFull }

// IncludesPaths reports whether file paths and prompt text survive.
func (l Level) IncludesPaths() bool { return l <= LevelMetrics }

// IncludesRecords reports whether individual records survive at all.
func (l Level) IncludesRecords() bool { return l <= LevelHigh }

// NeverExpires is the expirationDays value for a link without expiry.
const NeverExpires = 0

// ExpirationChoices are the accepted expirationDays values.
var ExpirationChoices = []int{1, 3, 7, 30, 90, 365, NeverExpires}

const dateLayout = "2006-01-02"

// Intent describes the share link to create.
type Intent struct {
	Workspaces       []string `json:"workspaces"`
	AbstractionLevel Level    `json:"abstractionLevel"`
	ExpirationDays   int      `json:"expirationDays"`
	// DateFrom and DateTo are inclusive YYYY-MM-DD bounds in UTC.
	DateFrom string `json:"dateFrom,omitempty"`
	DateTo   string `json:"dateTo,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Validate reports every problem with the intent as one user input error.
func (in Intent) Validate() error {
	var problems []string
	if len(in.Workspaces) == 0 {
		problems = append(problems, "at least one workspace is required")
	}
	for _, ws := range in.Workspaces {
		if strings.TrimSpace(ws) == "" {
			problems = append(problems, "workspace paths must not be empty")
			break
		}
	}
	if !in.AbstractionLevel.Valid() {
		problems = append(problems, fmt.Sprintf("abstraction level %d is not one of 0-3", in.AbstractionLevel))
	}
	if !slices.Contains(ExpirationChoices, in.ExpirationDays) {
		problems = append(problems, fmt.Sprintf("expiration of %d days is not one of %v", in.ExpirationDays, ExpirationChoices))
	}
	from, to, err := in.dateRange()
	if err != nil {
		problems = append(problems, err.Error())
	} else if from > 0 && to > 0 && from >= to {
		problems = append(problems, "dateFrom must not be after dateTo")
	}
	if len(problems) > 0 {
		return errs.UserInput("share.validate", "%s", strings.Join(problems, "; "))
	}
	return nil
}

// dateRange returns the half-open millisecond range [from, to) of the date
// bounds; zero means unbounded.
func (in Intent) dateRange() (from, to int64, err error) {
	if in.DateFrom != "" {
		t, err := time.Parse(dateLayout, in.DateFrom)
		if err != nil {
			return 0, 0, fmt.Errorf("dateFrom %q is not YYYY-MM-DD", in.DateFrom)
		}
		from = t.UnixMilli()
	}
	if in.DateTo != "" {
		t, err := time.Parse(dateLayout, in.DateTo)
		if err != nil {
			return 0, 0, fmt.Errorf("dateTo %q is not YYYY-MM-DD", in.DateTo)
		}
		to = t.AddDate(0, 0, 1).UnixMilli()
	}
	return from, to, nil
}

func (in Intent) covers(workspace string, ts int64, from, to int64) bool {
	if from > 0 && ts < from {
		return false
	}
	if to > 0 && ts >= to {
		return false
	}
	return slices.Contains(in.Workspaces, workspace)
}
