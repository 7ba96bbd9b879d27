package api

import (
	"context"
	"net/http"

	service "github.com/okian/tourneyrank/internal/app"
)

// SummaryDependencies defines the interface for the last run's summary.
type SummaryDependencies interface {
	LastSummary(ctx context.Context) (service.Summary, error)
}

// SummaryHandler handles summary requests.
type SummaryHandler struct {
	deps   SummaryDependencies
	status statusFunc
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(deps SummaryDependencies, status statusFunc) *SummaryHandler {
	return &SummaryHandler{deps: deps, status: status}
}

// HandleGetSummary handles GET /summary requests.
func (h *SummaryHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.deps.LastSummary(r.Context())
	if err != nil {
		writeUpstreamError(w, h.status, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
