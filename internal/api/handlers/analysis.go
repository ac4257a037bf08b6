package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/logsage/internal/api"
	"github.com/cloo-solutions/logsage/internal/domain"
	"github.com/cloo-solutions/logsage/internal/pagination"
	"github.com/cloo-solutions/logsage/internal/service"
)

type AnalysisStore interface {
	GetAnalysis(ctx context.Context, logID string) (*domain.AnalysisResult, error)
	ListAnalyses(ctx context.Context, filter service.AnalysisFilter, cursor string, limit int) (*pagination.PageResult[*domain.AnalysisResult], error)
}

type Analyst interface {
	Analyze(ctx context.Context, record domain.LogRecord) domain.AnalysisResult
	Ask(ctx context.Context, question string) (string, error)
}

type AnalysisHandler struct {
	store   AnalysisStore
	analyst Analyst
}

// NewAnalysisHandler builds the analysis endpoints. store may be nil when no
// database is configured; listing then answers 501.
func NewAnalysisHandler(store AnalysisStore, analyst Analyst) *AnalysisHandler {
	return &AnalysisHandler{store: store, analyst: analyst}
}

const errNoAnalysisStore = "analysis store not configured"

type AskRequest struct {
	Question string `json:"question"`
}

type AskResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type AnalyzeRequest struct {
	Message string `json:"message"`
	App     string `json:"app"`
}

func (h *AnalysisHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		api.Error(w, http.StatusNotImplemented, errNoAnalysisStore)
		return
	}
	query := r.URL.Query()

	filter := service.AnalysisFilter{
		RiskLevel: domain.RiskLevel(strings.ToUpper(strings.TrimSpace(query.Get("risk_level")))),
		Status:    domain.AnalysisStatus(strings.ToUpper(strings.TrimSpace(query.Get("status")))),
	}

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}

	page, err := h.store.ListAnalyses(r.Context(), filter, query.Get("cursor"), limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, page)
}

func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		api.Error(w, http.StatusNotImplemented, errNoAnalysisStore)
		return
	}
	logID := chi.URLParam(r, "logId")
	if logID == "" {
		api.Error(w, http.StatusBadRequest, "log id is required")
		return
	}

	result, err := h.store.GetAnalysis(r.Context(), logID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, result)
}

// Ask handles POST /ask. A provider outage still answers 200 with the
// failure text, the same way the engine reports it.
func (h *AnalysisHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	answer, err := h.analyst.Ask(r.Context(), req.Question)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, AskResponse{Question: strings.TrimSpace(req.Question), Answer: answer})
}

// Analyze handles POST /analyze: an ad-hoc analysis that is not stored.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	result := h.analyst.Analyze(r.Context(), domain.LogRecord{
		Level:   domain.LevelError,
		App:     req.App,
		Message: req.Message,
	})
	api.Success(w, http.StatusOK, result)
}
