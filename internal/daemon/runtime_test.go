// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/camagent/internal/camera/agent"
	"github.com/ManuGH/camagent/internal/camera/fault"
	"github.com/ManuGH/camagent/internal/config"
	"github.com/ManuGH/camagent/internal/faultlog"
	"github.com/ManuGH/camagent/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.AppConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.Version = "test"
	cfg.API.RateLimit = 0
	cfg.Camera.OperationTimeout = 2 * time.Second
	return cfg
}

func bootstrap(t *testing.T, cfg config.AppConfig) *Runtime {
	t.Helper()
	rt, err := Bootstrap(context.Background(), cfg, log.WithComponent("test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt
}

func call(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBootstrapCapturesFromSimulator(t *testing.T) {
	rt := bootstrap(t, testConfig(t))
	h := rt.Handler()

	require.Equal(t, http.StatusOK, call(t, h, http.MethodPost, "/api/v1/cameras/sim/open", "").Code)
	require.Equal(t, http.StatusAccepted, call(t, h, http.MethodPost, "/api/v1/cameras/sim/settings",
		`{"preview_size":{"width":640,"height":480},"photo_size":{"width":640,"height":480}}`).Code)
	rec := call(t, h, http.MethodPost, "/api/v1/cameras/sim/preview/start", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(t, h, http.MethodPost, "/api/v1/cameras/sim/capture", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	img := rec.Body.Bytes()
	require.Greater(t, len(img), 2)
	assert.Equal(t, []byte{0xFF, 0xD8}, img[:2], "JPEG start-of-image marker")

	require.Equal(t, http.StatusOK, call(t, h, http.MethodPost, "/api/v1/cameras/sim/close", "").Code)
	assert.Equal(t, 0, rt.Registry.Refs("sim"))
}

func TestBootstrapJournalsFaults(t *testing.T) {
	cfg := testConfig(t)
	rt := bootstrap(t, cfg)
	require.NotNil(t, rt.Journal)
	assert.Equal(t, filepath.Join(cfg.DataDir, config.DefaultJournalPath), rt.Journal.Path())

	rt.Recorder.HandleFault(&fault.Fault{
		ID:    "f-1",
		Agent: "sim",
		Kind:  fault.KindCameraError,
		Code:  2,
		At:    time.Now(),
	})

	rec := call(t, rt.Handler(), http.MethodGet, "/api/v1/faults?agent=sim", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Faults []faultlog.Entry `json:"faults"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Faults, 1)
	assert.Equal(t, "f-1", body.Faults[0].ID)

	dump, err := faultlog.ReadDump(cfg.DumpFile())
	require.NoError(t, err)
	assert.Equal(t, "f-1", dump.ID)

	rec = call(t, rt.Handler(), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestBootstrapWithoutJournal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Faults.JournalPath = ""
	rt := bootstrap(t, cfg)
	assert.Nil(t, rt.Journal)

	rec := call(t, rt.Handler(), http.MethodGet, "/api/v1/faults", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBootstrapRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Camera.Index = cfg.Camera.Count
	_, err := Bootstrap(context.Background(), cfg, log.WithComponent("test"))
	require.Error(t, err)

	cfg = testConfig(t)
	cfg.Camera.FaultPolicy = "shrug"
	_, err = Bootstrap(context.Background(), cfg, log.WithComponent("test"))
	require.Error(t, err)
}

func TestApplyConfigReachesNextAgent(t *testing.T) {
	cfg := testConfig(t)
	rt := bootstrap(t, cfg)

	first, err := rt.Registry.Acquire("sim")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, first.Timeout())
	require.NoError(t, rt.Registry.Release("sim"))

	cfg.Camera.OperationTimeout = 750 * time.Millisecond
	rt.ApplyConfig(cfg)

	second, err := rt.Registry.Acquire("sim")
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, second.Timeout())
	require.NoError(t, rt.Registry.Release("sim"))

	bad := cfg
	bad.Camera.FaultPolicy = "shrug"
	rt.ApplyConfig(bad)
	third, err := rt.Registry.Acquire("sim")
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, third.Timeout(), "rejected options keep the previous template")
	require.NoError(t, rt.Registry.Release("sim"))
}

func TestRuntimeCloseIsIdempotent(t *testing.T) {
	rt, err := Bootstrap(context.Background(), testConfig(t), log.WithComponent("test"))
	require.NoError(t, err)
	require.NoError(t, rt.Close(context.Background()))
	require.NoError(t, rt.Close(context.Background()))
	_, err = rt.Registry.Acquire("sim")
	assert.ErrorIs(t, err, agent.ErrClosed)
}
