package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/okian/tourneyrank/internal/domain/model"
)

// RankingsDependencies defines the interface for ranking reads.
type RankingsDependencies interface {
	Rankings(ctx context.Context, p model.Pool, limit int) ([]Entry, error)
}

// RankingsHandler handles ranking requests.
type RankingsHandler struct {
	deps     RankingsDependencies
	maxLimit int
	status   statusFunc
}

// NewRankingsHandler creates a new rankings handler.
func NewRankingsHandler(deps RankingsDependencies, maxLimit int, status statusFunc) *RankingsHandler {
	return &RankingsHandler{
		deps:     deps,
		maxLimit: maxLimit,
		status:   status,
	}
}

// HandleGetRankings handles GET /rankings/{pool}?limit=N requests. Without
// a limit the first maxLimit entries are returned.
func (h *RankingsHandler) HandleGetRankings(w http.ResponseWriter, r *http.Request) {
	p, err := parsePool(chi.URLParam(r, "pool"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_pool", err)
		return
	}
	n := h.maxLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err = strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		if n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", ErrLimitExceeded)
			return
		}
	}
	entries, err := h.deps.Rankings(r.Context(), p, n)
	if err != nil {
		writeUpstreamError(w, h.status, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
