package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/logsage/internal/domain"
)

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestLogHandler_Append(t *testing.T) {
	store := new(MockLogStore)
	handler := NewLogHandler(store)

	store.On("Append", mock.Anything, mock.MatchedBy(func(records []domain.LogRecord) bool {
		return len(records) == 2 && records[0].Message == "boom" && records[1].App == "sdk"
	})).Return([]domain.LogRecord{{ID: "id-1"}, {ID: "id-2"}}, nil)

	body := `{"batch":[{"level":"ERROR","message":"boom"},{"level":"INFO","appName":"sdk"}]}`
	req := httptest.NewRequest(http.MethodPost, "/logs", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.Append(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"data":{"status":"stored","count":2,"ids":["id-1","id-2"]}}`, w.Body.String())
	store.AssertExpectations(t)
}

func TestLogHandler_Append_InvalidBody(t *testing.T) {
	store := new(MockLogStore)
	handler := NewLogHandler(store)

	w := httptest.NewRecorder()
	handler.Append(w, httptest.NewRequest(http.MethodPost, "/logs", strings.NewReader(`{"logs":[]}`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestLogHandler_Append_ValidationError(t *testing.T) {
	store := new(MockLogStore)
	handler := NewLogHandler(store)

	store.On("Append", mock.Anything, mock.Anything).Return(nil, domain.ErrEmptyBatch)

	w := httptest.NewRecorder()
	handler.Append(w, httptest.NewRequest(http.MethodPost, "/logs", strings.NewReader(`{"batch":[]}`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogHandler_List_JSONEnvelope(t *testing.T) {
	store := new(MockLogStore)
	handler := NewLogHandler(store)

	store.On("ListLogs", mock.Anything, domain.LogFilter{Level: "ERROR", App: "shop", Limit: 5}).
		Return([]domain.LogRecord{{ID: "a", Level: "ERROR", Message: "boom"}}, nil)

	w := httptest.NewRecorder()
	handler.List(w, httptest.NewRequest(http.MethodGet, "/logs?level=ERROR&app=shop&limit=5", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []domain.LogRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "a", resp.Data[0].ID)
}

func TestLogHandler_List_NDJSON(t *testing.T) {
	store := new(MockLogStore)
	handler := NewLogHandler(store)

	store.On("ListLogs", mock.Anything, domain.LogFilter{}).
		Return([]domain.LogRecord{{ID: "a", Level: "ERROR"}, {ID: "b", Level: "INFO"}}, nil)

	w := httptest.NewRecorder()
	handler.List(w, httptest.NewRequest(http.MethodGet, "/logs?format=ndjson", nil))

	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)

	var rec domain.LogRecord
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "b", rec.ID)
}

func TestLogHandler_List_AcceptHeaderSelectsNDJSON(t *testing.T) {
	store := new(MockLogStore)
	handler := NewLogHandler(store)
	store.On("ListLogs", mock.Anything, mock.Anything).Return([]domain.LogRecord{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/logs", nil)
	req.Header.Set("Accept", "application/x-ndjson")
	w := httptest.NewRecorder()
	handler.List(w, req)

	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))
	assert.Empty(t, w.Body.String())
}

func TestLogHandler_List_BadLimit(t *testing.T) {
	handler := NewLogHandler(new(MockLogStore))

	w := httptest.NewRecorder()
	handler.List(w, httptest.NewRequest(http.MethodGet, "/logs?limit=ten", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogHandler_List_NegativeLimit(t *testing.T) {
	store := new(MockLogStore)
	handler := NewLogHandler(store)
	store.On("ListLogs", mock.Anything, domain.LogFilter{Limit: -1}).Return(nil, domain.ErrInvalidLimit)

	w := httptest.NewRecorder()
	handler.List(w, httptest.NewRequest(http.MethodGet, "/logs?limit=-1", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogHandler_Get(t *testing.T) {
	store := new(MockLogStore)
	handler := NewLogHandler(store)
	store.On("GetLog", mock.Anything, "abc").Return(&domain.LogRecord{ID: "abc", Level: "ERROR"}, nil)

	w := httptest.NewRecorder()
	handler.Get(w, withURLParam(httptest.NewRequest(http.MethodGet, "/logs/abc", nil), "id", "abc"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"abc"`)
}

func TestLogHandler_Get_NotFound(t *testing.T) {
	store := new(MockLogStore)
	handler := NewLogHandler(store)
	store.On("GetLog", mock.Anything, "missing").Return(nil, domain.ErrLogNotFound)

	w := httptest.NewRecorder()
	handler.Get(w, withURLParam(httptest.NewRequest(http.MethodGet, "/logs/missing", nil), "id", "missing"))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogHandler_Delete(t *testing.T) {
	store := new(MockLogStore)
	handler := NewLogHandler(store)
	store.On("DeleteLog", mock.Anything, "abc").Return(nil)

	w := httptest.NewRecorder()
	handler.Delete(w, withURLParam(httptest.NewRequest(http.MethodDelete, "/logs/abc", nil), "id", "abc"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"deleted":1}}`, w.Body.String())
}

func TestLogHandler_Delete_NotFound(t *testing.T) {
	store := new(MockLogStore)
	handler := NewLogHandler(store)
	store.On("DeleteLog", mock.Anything, "gone").Return(domain.ErrLogNotFound)

	w := httptest.NewRecorder()
	handler.Delete(w, withURLParam(httptest.NewRequest(http.MethodDelete, "/logs/gone", nil), "id", "gone"))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogHandler_DeleteAll(t *testing.T) {
	store := new(MockLogStore)
	handler := NewLogHandler(store)
	store.On("DeleteLogs", mock.Anything, "ERROR").Return(3, nil)

	w := httptest.NewRecorder()
	handler.DeleteAll(w, httptest.NewRequest(http.MethodDelete, "/logs?level=ERROR", bytes.NewReader(nil)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"deleted":3}}`, w.Body.String())
}
