package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/logsage/internal/api"
	"github.com/cloo-solutions/logsage/internal/domain"
)

type LogStore interface {
	Append(ctx context.Context, records []domain.LogRecord) ([]domain.LogRecord, error)
	ListLogs(ctx context.Context, filter domain.LogFilter) ([]domain.LogRecord, error)
	GetLog(ctx context.Context, id string) (*domain.LogRecord, error)
	DeleteLog(ctx context.Context, id string) error
	DeleteLogs(ctx context.Context, level string) (int, error)
}

type LogHandler struct {
	store LogStore
}

func NewLogHandler(store LogStore) *LogHandler {
	return &LogHandler{store: store}
}

type AppendResponse struct {
	Status string   `json:"status"`
	Count  int      `json:"count"`
	IDs    []string `json:"ids"`
}

type DeleteResponse struct {
	Deleted int `json:"deleted"`
}

// Append handles POST /logs.
func (h *LogHandler) Append(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	records, err := parseBatch(body)
	if err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	stored, err := h.store.Append(r.Context(), records)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	ids := make([]string, len(stored))
	for i, rec := range stored {
		ids[i] = rec.ID
	}
	api.Success(w, http.StatusCreated, AppendResponse{Status: "stored", Count: len(stored), IDs: ids})
}

// List handles GET /logs. format=ndjson (or an Accept header asking for it)
// streams one record per line instead of the JSON envelope.
func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := domain.LogFilter{
		Level: query.Get("level"),
		App:   query.Get("app"),
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		filter.Limit = limit
	}

	records, err := h.store.ListLogs(r.Context(), filter)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	if wantsNDJSON(r) {
		api.NDJSON(w, http.StatusOK, records)
		return
	}
	api.Success(w, http.StatusOK, records)
}

func (h *LogHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	rec, err := h.store.GetLog(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, rec)
}

func (h *LogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.store.DeleteLog(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, DeleteResponse{Deleted: 1})
}

// DeleteAll handles DELETE /logs, optionally narrowed by ?level=.
func (h *LogHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.DeleteLogs(r.Context(), r.URL.Query().Get("level"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, DeleteResponse{Deleted: deleted})
}

func wantsNDJSON(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "ndjson") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/x-ndjson")
}
