package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/okian/tourneyrank/internal/domain/model"
	"github.com/okian/tourneyrank/internal/domain/types"
)

// PlayerDependencies defines the interface for player reads.
type PlayerDependencies interface {
	Player(ctx context.Context, id model.PlayerID) (types.PlayerRatings, error)
}

// PlayerHandler handles player requests.
type PlayerHandler struct {
	deps   PlayerDependencies
	status statusFunc
}

// NewPlayerHandler creates a new player handler.
func NewPlayerHandler(deps PlayerDependencies, status statusFunc) *PlayerHandler {
	return &PlayerHandler{deps: deps, status: status}
}

// HandleGetPlayer handles GET /players/{playerID} requests.
func (h *PlayerHandler) HandleGetPlayer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "playerID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	p, err := h.deps.Player(r.Context(), model.PlayerID(id))
	if err != nil {
		writeUpstreamError(w, h.status, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
