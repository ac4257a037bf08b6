package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/logsage/internal/service"
)

func TestHealthHandler_StoreOnly(t *testing.T) {
	handler := NewHealthHandler(nil, nil)

	w := httptest.NewRecorder()
	handler.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealthHandler_HealthyPipeline(t *testing.T) {
	handler := NewHealthHandler(
		stubFeed{healthy: true, stats: service.FeedStats{Cycles: 4, Emitted: 2, Healthy: true}},
		stubIndex{size: 10, generation: 3},
	)

	w := httptest.NewRecorder()
	handler.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.Feed)
	assert.Equal(t, uint64(4), resp.Feed.Cycles)
	require.NotNil(t, resp.Index)
	assert.Equal(t, 10, resp.Index.Documents)
	assert.Equal(t, uint64(3), resp.Index.Generation)
}

func TestHealthHandler_UnhealthyFeedReturns503(t *testing.T) {
	handler := NewHealthHandler(
		stubFeed{healthy: false, stats: service.FeedStats{ConsecutiveFailures: 7}},
		nil,
	)

	w := httptest.NewRecorder()
	handler.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, int64(7), resp.Feed.ConsecutiveFailures)
}
