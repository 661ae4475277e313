package leaderboard

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fanpulse/fanpulse-api/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Top handles GET /creators/{creatorID}/leaderboard
func (h *Handler) Top(w http.ResponseWriter, r *http.Request) {
	creatorID, err := uuid.Parse(chi.URLParam(r, "creatorID"))
	if err != nil {
		response.BadRequest(w, "invalid creator id")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.svc.Top(r.Context(), creatorID, limit)
	if err != nil {
		log.Error().Err(err).Str("creator_id", creatorID.String()).Msg("leaderboard read failed")
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{
		"creator_id": creatorID,
		"entries":    entries,
	})
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/{creatorID}/leaderboard", h.Top)
	return r
}
