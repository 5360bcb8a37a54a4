package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-dashboard/internal/corpus"
	"telemetry-dashboard/internal/errs"
)

func TestParseQuery(t *testing.T) {
	yes, no := true, false
	tests := []struct {
		name    string
		raw     string
		want    Query
		wantErr bool
	}{
		{"plain text", "  hourly   chart ", Query{Text: "hourly chart"}, false},
		{"type filter", "type:prompt dashboard", Query{Text: "dashboard", Filters: Filters{Type: corpus.KindPrompt}}, false},
		{"plural type", "type:events", Query{Filters: Filters{Type: corpus.KindEvent}}, false},
		{"ws alias", "ws:/home/me/proj x", Query{Text: "x", Filters: Filters{Workspace: "/home/me/proj"}}, false},
		{"date keyword", "date:Today", Query{Filters: Filters{Date: DateToday}}, false},
		{"date literal", "date:2024-03-01 fix", Query{Text: "fix", Filters: Filters{Date: "2024-03-01"}}, false},
		{"mode lower-cased", "mode:Agent", Query{Filters: Filters{Mode: "agent"}}, false},
		{"context yes", "context:yes", Query{Filters: Filters{Context: &yes}}, false},
		{"context false", "context:false", Query{Filters: Filters{Context: &no}}, false},
		{"unknown key stays text", "http://localhost:3000 down", Query{Text: "http://localhost:3000 down"}, false},
		{"bad type stripped", "type:commit chart", Query{Text: "chart"}, true},
		{"bad date stripped", "date:2024-13-45 chart", Query{Text: "chart"}, true},
		{"bad context stripped", "context:maybe", Query{}, true},
		{"empty value stripped", "mode: chart", Query{Text: "chart"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuery(tt.raw)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.Is(err, errs.KindUserInput))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseRenderRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"chart",
		"ws:proj type:prompt  dashboard layout",
		"context:yes date:week mode:Chat refactor",
		"type:nope a:b c",
		"date:2024-02-29 workspace:/tmp/x",
	}
	for _, in := range inputs {
		first, _ := ParseQuery(in)
		second, err := ParseQuery(Render(first))
		assert.NoError(t, err, in)
		assert.Equal(t, first, second, in)
	}
}

func TestDateRange(t *testing.T) {
	loc := time.FixedZone("test", 2*3600)
	now := time.Date(2024, 3, 10, 15, 30, 0, 0, loc)
	midnight := time.Date(2024, 3, 10, 0, 0, 0, 0, loc)

	tests := []struct {
		date       string
		start, end time.Time
	}{
		{DateToday, midnight, midnight.AddDate(0, 0, 1)},
		{DateYesterday, midnight.AddDate(0, 0, -1), midnight},
		{DateWeek, midnight.AddDate(0, 0, -6), midnight.AddDate(0, 0, 1)},
		{DateMonth, midnight.AddDate(0, 0, -29), midnight.AddDate(0, 0, 1)},
		{"2024-01-05", time.Date(2024, 1, 5, 0, 0, 0, 0, loc), time.Date(2024, 1, 6, 0, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		start, end, ok := DateRange(tt.date, now)
		require.True(t, ok, tt.date)
		assert.Equal(t, tt.start.UnixMilli(), start, tt.date)
		assert.Equal(t, tt.end.UnixMilli(), end, tt.date)
	}

	_, _, ok := DateRange("someday", now)
	assert.False(t, ok)

	// the range is half-open
	f := Filters{Date: DateYesterday}
	assert.True(t, f.match(corpus.Document{Timestamp: midnight.UnixMilli() - 1}, now))
	assert.False(t, f.match(corpus.Document{Timestamp: midnight.UnixMilli()}, now))
}

func TestSynonymsAreSymmetric(t *testing.T) {
	for term, syns := range synonyms {
		for _, s := range syns {
			assert.Contains(t, Synonyms(s), term)
		}
	}
	weights := expand([]string{"bug"})
	assert.Equal(t, 1.0, weights["bug"])
	assert.Equal(t, synonymWeight, weights["error"])
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
	assert.Equal(t, 0, levenshtein("", ""))
	assert.Equal(t, 1.0, Similarity("chart", "chart"))
	assert.InDelta(t, 0.6, Similarity("chrat", "chart"), 1e-9)
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
}
