package handlers

import (
	"net/http"

	"github.com/cloo-solutions/logsage/internal/api"
	"github.com/cloo-solutions/logsage/internal/service"
)

type FeedHealth interface {
	Healthy() bool
	Stats() service.FeedStats
}

type IndexStatus interface {
	Size() int
	Generation() uint64
}

type HealthHandler struct {
	feed  FeedHealth
	index IndexStatus
}

// NewHealthHandler builds the health endpoint. feed is nil when the
// pipeline is not running in this process.
func NewHealthHandler(feed FeedHealth, index IndexStatus) *HealthHandler {
	return &HealthHandler{feed: feed, index: index}
}

type HealthResponse struct {
	Status string             `json:"status"`
	Feed   *service.FeedStats `json:"feed,omitempty"`
	Index  *IndexResponse     `json:"index,omitempty"`
}

type IndexResponse struct {
	Documents  int    `json:"documents"`
	Generation uint64 `json:"generation"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	status := http.StatusOK

	if h.feed != nil {
		stats := h.feed.Stats()
		resp.Feed = &stats
		if !h.feed.Healthy() {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	if h.index != nil {
		resp.Index = &IndexResponse{Documents: h.index.Size(), Generation: h.index.Generation()}
	}

	api.JSON(w, status, resp)
}
