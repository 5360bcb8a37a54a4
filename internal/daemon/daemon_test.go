package daemon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-dashboard/internal/app"
	"telemetry-dashboard/internal/config"
	"telemetry-dashboard/internal/errs"
	"telemetry-dashboard/internal/transport"
	"telemetry-dashboard/pkg/logger"
	"telemetry-dashboard/test/mocks"
)

func newOfflineApp(t *testing.T) *app.App {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	tr.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, path string, _ transport.Options) ([]byte, error) {
			return nil, errs.Offline("GET "+path, errors.New("connection refused"))
		}).AnyTimes()

	cfg := config.DefaultClientConfig()
	cfg.Store.Backend = config.BackendMemory
	cfg.Ingest.RefreshIntervalMs = 20
	a, err := app.New(cfg, logger.NewNopLogger(), app.Options{Transport: tr})
	require.NoError(t, err)
	return a
}

func TestDaemon_StartServesAndStops(t *testing.T) {
	a := newOfflineApp(t)
	d := NewDaemon(a, "127.0.0.1:0", logger.NewNopLogger())
	d.Start()

	// the initial sync publishes at least one snapshot
	require.Eventually(t, func() bool { return a.Built() > 0 }, 5*time.Second, 10*time.Millisecond)

	w := httptest.NewRecorder()
	d.Server().Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/summary", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	done := make(chan struct{})
	go func() {
		d.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}
	d.Stop()

	select {
	case err := <-d.Errors():
		t.Fatalf("unexpected bridge error: %v", err)
	default:
	}
}

func TestDaemon_ReportsBindFailure(t *testing.T) {
	a := newOfflineApp(t)
	d := NewDaemon(a, "256.0.0.1:bad", logger.NewNopLogger())
	d.Start()
	defer d.Stop()

	select {
	case err := <-d.Errors():
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("expected a bind error")
	}
}
