package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-dashboard/internal/config"
	"telemetry-dashboard/internal/errs"
	"telemetry-dashboard/internal/model"
	"telemetry-dashboard/internal/store"
	"telemetry-dashboard/internal/transport"
	"telemetry-dashboard/pkg/logger"
	"telemetry-dashboard/test/mocks"
)

func offlineTransport(t *testing.T) *mocks.MockTransport {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	tr.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, path string, _ transport.Options) ([]byte, error) {
			return nil, errs.Offline("GET "+path, fmt.Errorf("connection refused"))
		}).AnyTimes()
	return tr
}

func seededStore(t *testing.T) store.Store {
	ctx := context.Background()
	s, err := store.OpenMemory(logger.NewNopLogger())
	require.NoError(t, err)

	now := time.Now()
	var events []model.Event
	for i := 0; i < 12; i++ {
		events = append(events, model.Event{
			ID:            fmt.Sprintf("e%d", i),
			Timestamp:     now.Add(-time.Duration(i) * time.Minute).UnixMilli(),
			Type:          model.EventTypeCodeChange,
			FilePath:      fmt.Sprintf("/ws/pkg/file%d.go", i%4),
			WorkspacePath: "/ws",
			SessionID:     fmt.Sprintf("s%d", i%3),
			Details:       model.EventDetails{LinesAdded: 3, LinesRemoved: 1},
		})
	}
	prompts := []model.Prompt{
		{ID: "p1", Timestamp: now.Add(-15 * time.Minute).UnixMilli(), Text: "refactor the parser module", WorkspacePath: "/ws", ModelName: "m1", ContextUsage: 40},
		{ID: "p2", Timestamp: now.Add(-5 * time.Minute).UnixMilli(), Text: "add tests for the lexer", WorkspacePath: "/ws", ModelName: "m2", ContextUsage: 60},
	}
	require.NoError(t, store.StoreBatch(ctx, s, store.KindEvents, events))
	require.NoError(t, store.StoreBatch(ctx, s, store.KindPrompts, prompts))
	return s
}

func testConfig() config.ClientConfig {
	cfg := config.DefaultClientConfig()
	cfg.Store.Backend = config.BackendMemory
	cfg.Worker.Concurrency = 2
	return cfg
}

func newTestApp(t *testing.T) *App {
	a, err := New(testConfig(), logger.NewNopLogger(), Options{
		Store:     seededStore(t),
		Transport: offlineTransport(t),
	})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Search.MaxResults = 0
	_, err := New(cfg, logger.NewNopLogger(), Options{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindUserInput))
}

func TestNew_OpensConfiguredMemoryStore(t *testing.T) {
	a, err := New(testConfig(), logger.NewNopLogger(), Options{Transport: offlineTransport(t)})
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Store)
	require.NotNil(t, a.Metrics)
	require.NotNil(t, a.Share)
	assert.True(t, a.View().Snapshot().Empty())
}

func TestApp_StartOfflineBuildsDerivedState(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, a.Start(context.Background()))

	snap := a.Ingest.Snapshot()
	assert.False(t, snap.Connected)
	assert.Len(t, snap.Events, 12)
	assert.Equal(t, snap.Version, a.Built())

	sum := a.View().Summary()
	assert.Equal(t, 12, sum.Events)
	assert.Equal(t, 2, sum.Prompts)
	assert.Equal(t, 4, sum.Files)

	resp := a.Search.Search(context.Background(), "parser")
	require.NoError(t, resp.Error)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "p1", resp.Results[0].Document.RecordID)

	st := a.Navigator.State()
	require.False(t, st.Empty())
	assert.Len(t, st.Nodes, 4)
	assert.Len(t, st.Physical, 4)
	assert.Len(t, st.Latent, 4)
}

func TestApp_RebuildSkipsKnownVersions(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, a.Start(context.Background()))
	gen := a.Navigator.State().Generation

	require.NoError(t, a.Rebuild(context.Background(), a.Ingest.Snapshot()))
	assert.Equal(t, gen, a.Navigator.State().Generation)

	require.NoError(t, a.Rebuild(context.Background(), nil))
}

func TestApp_RebuildCancelled(t *testing.T) {
	a := newTestApp(t)
	snap := a.Ingest.Initialize(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := a.Rebuild(ctx, snap)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, a.Built())
}

func TestApp_CloseTwice(t *testing.T) {
	a := newTestApp(t)
	a.Close()
	a.Close()
}
