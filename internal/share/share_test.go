package share

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-dashboard/internal/errs"
	"telemetry-dashboard/internal/ingest"
	"telemetry-dashboard/internal/model"
	"telemetry-dashboard/internal/transport"
	"telemetry-dashboard/pkg/logger"
	"telemetry-dashboard/test/mocks"
)

func day(s string, hour int) int64 {
	t, _ := time.Parse(dateLayout, s)
	return t.Add(time.Duration(hour) * time.Hour).UnixMilli()
}

func codeSnapshot() *ingest.Snapshot {
	return &ingest.Snapshot{
		Events: []model.Event{
			{ID: "e1", Timestamp: day("2025-03-01", 9), Type: model.EventTypeFileChange, FilePath: "/ws1/api.go", WorkspacePath: "/ws1",
				Details: model.EventDetails{LinesAdded: 3, BeforeContent: "func a() {}", AfterContent: "func a() { b() }"}},
			{ID: "e2", Timestamp: day("2025-03-02", 14), Type: model.EventTypeCodeChange, FilePath: "/ws1/web/app.ts", WorkspacePath: "/ws1",
				Details: model.EventDetails{LinesRemoved: 2, AfterContent: "const x = 1"}},
			{ID: "e3", Timestamp: day("2025-03-02", 15), Type: model.EventTypeFileChange, FilePath: "/ws2/secret.go", WorkspacePath: "/ws2",
				Details: model.EventDetails{AfterContent: "password := \"hunter2\""}},
		},
		Prompts: []model.Prompt{
			{ID: "p1", Timestamp: day("2025-03-01", 10), Text: "refactor the api handler", WorkspacePath: "/ws1", ContextUsage: 30, ModelName: "m1"},
			{ID: "p2", Timestamp: day("2025-03-05", 10), Text: "other workspace", WorkspacePath: "/ws2", ContextUsage: 90},
		},
	}
}

func TestIntent_Validate(t *testing.T) {
	valid := Intent{Workspaces: []string{"/ws1"}, AbstractionLevel: LevelHigh, ExpirationDays: 7}
	require.NoError(t, valid.Validate())

	never := valid
	never.ExpirationDays = NeverExpires
	require.NoError(t, never.Validate())

	tests := []struct {
		name   string
		modify func(*Intent)
		want   string
	}{
		{"no workspaces", func(in *Intent) { in.Workspaces = nil }, "workspace"},
		{"blank workspace", func(in *Intent) { in.Workspaces = []string{" "} }, "empty"},
		{"level too high", func(in *Intent) { in.AbstractionLevel = 4 }, "abstraction level 4"},
		{"negative level", func(in *Intent) { in.AbstractionLevel = -1 }, "abstraction level -1"},
		{"odd expiration", func(in *Intent) { in.ExpirationDays = 14 }, "expiration of 14"},
		{"bad date", func(in *Intent) { in.DateFrom = "03/01/2025" }, "dateFrom"},
		{"reversed dates", func(in *Intent) { in.DateFrom, in.DateTo = "2025-03-05", "2025-03-01" }, "after"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.modify(&in)
			err := in.Validate()
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.KindUserInput))
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	sameDay := valid
	sameDay.DateFrom, sameDay.DateTo = "2025-03-01", "2025-03-01"
	assert.NoError(t, sameDay.Validate())
}

func TestLevel(t *testing.T) {
	assert.Equal(t, "Full Details", LevelFull.String())
	assert.Equal(t, "Patterns Only", LevelPatterns.String())
	assert.Equal(t, "Level(7)", Level(7).String())
	assert.True(t, LevelFull.IncludesCode())
	assert.False(t, LevelMetrics.IncludesCode())
	assert.True(t, LevelMetrics.IncludesPaths())
	assert.False(t, LevelHigh.IncludesPaths())
	assert.True(t, LevelHigh.IncludesRecords())
	assert.False(t, LevelPatterns.IncludesRecords())
}

func TestClient_CreateSendsIntent(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)

	var sent []byte
	tr.EXPECT().Post(gomock.Any(), transport.PathShareCreate, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, body any, _ transport.Options) ([]byte, error) {
			var err error
			sent, err = json.Marshal(body)
			require.NoError(t, err)
			return []byte(`{"success":true,"shareId":"abc123","expiresAt":"2025-03-09T00:00:00Z"}`), nil
		})

	c := NewClient(tr, logger.NewNopLogger())
	link, err := c.Create(context.Background(), Intent{Workspaces: []string{"/ws1"}, AbstractionLevel: LevelHigh, ExpirationDays: 7})
	require.NoError(t, err)
	assert.Equal(t, "abc123", link.ShareID)
	assert.Equal(t, "2025-03-09T00:00:00Z", link.ExpiresAt)
	assert.NotEmpty(t, link.RequestID)

	var body map[string]any
	require.NoError(t, json.Unmarshal(sent, &body))
	assert.Equal(t, float64(2), body["abstractionLevel"])
	assert.Equal(t, float64(7), body["expirationDays"])
	assert.Equal(t, []any{"/ws1"}, body["workspaces"])
	assert.Equal(t, map[string]any{}, body["filters"])
	assert.NotContains(t, body, "name")
}

func TestClient_CreateNeverExpiresSendsZero(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	tr.EXPECT().Post(gomock.Any(), transport.PathShareCreate, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, body any, _ transport.Options) ([]byte, error) {
			req := body.(createRequest)
			assert.Equal(t, 0, req.ExpirationDays)
			assert.Equal(t, "2025-03-01", req.Filters.DateFrom)
			assert.Equal(t, "forever", req.Name)
			return []byte(`{"success":true,"shareId":"x"}`), nil
		})

	c := NewClient(tr, logger.NewNopLogger())
	link, err := c.Create(context.Background(), Intent{Workspaces: []string{"/ws1"}, ExpirationDays: NeverExpires,
		DateFrom: "2025-03-01", Name: "forever"})
	require.NoError(t, err)
	assert.Empty(t, link.ExpiresAt)
}

func TestClient_CreateFailures(t *testing.T) {
	valid := Intent{Workspaces: []string{"/ws1"}, ExpirationDays: 30}
	tests := []struct {
		name  string
		reply []byte
		err   error
		kind  errs.Kind
	}{
		{"offline", nil, errs.Offline("POST /api/share/create", assert.AnError), errs.KindOffline},
		{"rejected", []byte(`{"success":false,"error":"workspace not found"}`), nil, errs.KindHTTP},
		{"no id", []byte(`{"success":true}`), nil, errs.KindMalformedRecord},
		{"not json", []byte(`<html>`), nil, errs.KindParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			tr := mocks.NewMockTransport(ctrl)
			tr.EXPECT().Post(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(tt.reply, tt.err)
			_, err := NewClient(tr, logger.NewNopLogger()).Create(context.Background(), valid)
			require.Error(t, err)
			assert.Equal(t, tt.kind, errs.KindOf(err))
		})
	}

	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	_, err := NewClient(tr, logger.NewNopLogger()).Create(context.Background(), Intent{Workspaces: []string{"/ws1"}, ExpirationDays: 2})
	assert.True(t, errs.Is(err, errs.KindUserInput))
}

func TestBuildPreview_HighLevelHidesCode(t *testing.T) {
	p, err := BuildPreview(Intent{Workspaces: []string{"/ws1"}, AbstractionLevel: LevelHigh, ExpirationDays: 7}, codeSnapshot())
	require.NoError(t, err)
	assert.Equal(t, "High-Level", p.Label)
	require.Len(t, p.Events, 2)
	require.Len(t, p.Prompts, 1)
	for _, e := range p.Events {
		assert.Empty(t, e.BeforeContent)
		assert.Empty(t, e.AfterContent)
		assert.Empty(t, e.FilePath)
		assert.NotEmpty(t, e.Extension)
	}
	assert.Empty(t, p.Prompts[0].Text)
	assert.Equal(t, len("refactor the api handler"), p.Prompts[0].TextLength)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	for _, leaked := range []string{"func a()", "const x", "hunter2", "api.go", "refactor"} {
		assert.NotContains(t, string(raw), leaked)
	}
	assert.Contains(t, p.HTML, "<h1>Shared activity</h1>")
}

func TestBuildPreview_Levels(t *testing.T) {
	base := Intent{Workspaces: []string{"/ws1"}, ExpirationDays: 30, Name: "Sprint"}

	full := base
	full.AbstractionLevel = LevelFull
	p, err := BuildPreview(full, codeSnapshot())
	require.NoError(t, err)
	require.Len(t, p.Events, 2)
	assert.Equal(t, "func a() { b() }", p.Events[0].AfterContent)
	assert.Equal(t, "/ws1/api.go", p.Events[0].FilePath)
	assert.Contains(t, p.Markdown, "/ws1/web/app.ts")
	assert.Contains(t, p.HTML, "<h1>Sprint</h1>")

	metrics := base
	metrics.AbstractionLevel = LevelMetrics
	p, err = BuildPreview(metrics, codeSnapshot())
	require.NoError(t, err)
	assert.Equal(t, "/ws1/api.go", p.Events[0].FilePath)
	assert.Empty(t, p.Events[0].AfterContent)
	assert.Equal(t, "refactor the api handler", p.Prompts[0].Text)

	patterns := base
	patterns.AbstractionLevel = LevelPatterns
	p, err = BuildPreview(patterns, codeSnapshot())
	require.NoError(t, err)
	assert.Empty(t, p.Events)
	assert.Empty(t, p.Prompts)
	assert.Equal(t, 2, p.Patterns.Events)
	assert.Equal(t, 1, p.Patterns.Prompts)
	assert.Equal(t, map[string]int{"go": 1, "ts": 1}, p.Patterns.Extensions)
	assert.Equal(t, 3, p.Patterns.LinesAdded)
	assert.Equal(t, 2, p.Patterns.LinesRemoved)
	assert.Equal(t, 1, p.Patterns.HourOfDay[9])
	assert.InDelta(t, 30, p.Patterns.AvgContextUsage, 1e-9)
	assert.False(t, strings.Contains(p.Markdown, "/ws1/"))
}

func TestBuildPreview_DateRange(t *testing.T) {
	in := Intent{Workspaces: []string{"/ws1", "/ws2"}, AbstractionLevel: LevelMetrics, ExpirationDays: 1,
		DateFrom: "2025-03-02", DateTo: "2025-03-02"}
	p, err := BuildPreview(in, codeSnapshot())
	require.NoError(t, err)
	assert.Equal(t, 2, p.Patterns.Events)
	assert.Equal(t, 0, p.Patterns.Prompts)

	_, err = BuildPreview(Intent{}, codeSnapshot())
	assert.Error(t, err)
}
