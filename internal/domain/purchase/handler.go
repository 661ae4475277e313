package purchase

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fanpulse/fanpulse-api/internal/middleware"
	"github.com/fanpulse/fanpulse-api/internal/pkg/checkout"
	"github.com/fanpulse/fanpulse-api/internal/pkg/response"
	"github.com/fanpulse/fanpulse-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type verifyRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

type awardRequest struct {
	UserID   string `json:"user_id" validate:"required,uuid"`
	XPAmount int64  `json:"xp_amount" validate:"required,gt=0"`
}

// Verify handles POST /purchases/verify. Called after checkout redirect or
// webhook delivery; safe to retry, a replay reports already_credited.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	if userID := middleware.GetUserID(r.Context()); userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	result, err := h.svc.CreditFromSession(r.Context(), req.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrSessionNotFound):
			response.NotFound(w, "unknown session")
		case errors.Is(err, checkout.ErrSessionUnpaid):
			response.BadRequest(w, "session not paid")
		case errors.Is(err, checkout.ErrMissingMetadata):
			response.BadRequest(w, "session missing purchase metadata")
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "invalid xp amount")
		default:
			log.Error().Err(err).Str("session_id", req.SessionID).Msg("purchase verification failed")
			response.InternalError(w)
		}
		return
	}

	response.OK(w, result)
}

// Award handles POST /admin/awards
func (h *Handler) Award(w http.ResponseWriter, r *http.Request) {
	var req awardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.BadRequest(w, "invalid user_id")
		return
	}

	result, err := h.svc.ManualAward(r.Context(), userID, req.XPAmount)
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			response.BadRequest(w, "xp_amount must be greater than zero")
			return
		}
		log.Error().Err(err).Str("user_id", req.UserID).Msg("manual award failed")
		response.InternalError(w)
		return
	}

	response.OK(w, result)
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/verify", h.Verify)
	return r
}

func (h *Handler) AdminRoutes(authMiddleware, adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(adminMiddleware)
	r.Post("/", h.Award)
	return r
}
