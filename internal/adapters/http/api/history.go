package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/okian/tourneyrank/internal/domain/model"
	"github.com/okian/tourneyrank/internal/domain/types"
)

// HistoryDependencies defines the interface for event history reads.
type HistoryDependencies interface {
	EventHistory(ctx context.Context, id model.EventID) (types.EventHistory, error)
}

// HistoryHandler handles event history requests.
type HistoryHandler struct {
	deps   HistoryDependencies
	status statusFunc
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryDependencies, status statusFunc) *HistoryHandler {
	return &HistoryHandler{deps: deps, status: status}
}

// HandleGetHistory handles GET /events/{eventID}/history requests.
func (h *HistoryHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "eventID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	eh, err := h.deps.EventHistory(r.Context(), model.EventID(id))
	if err != nil {
		writeUpstreamError(w, h.status, err)
		return
	}
	writeJSON(w, http.StatusOK, eh)
}
