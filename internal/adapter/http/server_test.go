package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/storm-damage-aggregator/internal/adapter/http"
	"github.com/couchcryptid/storm-damage-aggregator/internal/pipeline"
)

type mockStatus struct {
	err     error
	summary *pipeline.Summary
}

func (m *mockStatus) CheckReadiness(_ context.Context) error { return m.err }

func (m *mockStatus) Summary() (pipeline.Summary, bool) {
	if m.summary == nil {
		return pipeline.Summary{}, false
	}
	return *m.summary, true
}

func newTestServer(status *mockStatus) *httpadapter.Server {
	return httpadapter.NewServer(":0", status, slog.Default())
}

func get(srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(newTestServer(&mockStatus{}), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(newTestServer(&mockStatus{}), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(newTestServer(&mockStatus{err: fmt.Errorf("run still in progress")}), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "run still in progress", body["error"])
}

func TestSummaryReturns404BeforeFirstRun(t *testing.T) {
	rec := get(newTestServer(&mockStatus{}), "/summary")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSummaryReturnsLastRun(t *testing.T) {
	summary := &pipeline.Summary{
		StartedAt: time.Date(2025, 3, 17, 6, 0, 0, 0, time.UTC),
		Joined:    120,
		Located:   118,
		Unmatched: 2,
		Dominant:  34,
	}
	rec := get(newTestServer(&mockStatus{summary: summary}), "/summary")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body pipeline.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 120, body.Joined)
	assert.Equal(t, 2, body.Unmatched)
	assert.Equal(t, 34, body.Dominant)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(&mockStatus{}), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
