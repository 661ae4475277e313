package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fanpulse/fanpulse-api/internal/domain/user"
	"github.com/fanpulse/fanpulse-api/internal/middleware"
	"github.com/fanpulse/fanpulse-api/internal/pkg/response"
	"github.com/fanpulse/fanpulse-api/internal/pkg/validator"
)

// UserGetter backs the entitlement lookup on balance reads.
type UserGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

type Handler struct {
	svc   *Service
	users UserGetter
}

func NewHandler(svc *Service, users UserGetter) *Handler {
	return &Handler{svc: svc, users: users}
}

type spendRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	ReferenceID string `json:"reference_id" validate:"required"`
}

type setAllRequest struct {
	XPAmount int64 `json:"xp_amount" validate:"required,gt=0"`
}

type balanceResponse struct {
	*Balance
	Pro bool `json:"pro"`
}

// Balance handles GET /xp/balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	balance, err := h.svc.GetBalance(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("balance read failed")
		response.InternalError(w)
		return
	}

	pro := false
	if h.users != nil {
		if u, err := h.users.GetByID(r.Context(), userID); err == nil {
			pro = user.ProActive(u, time.Now())
		}
	}

	response.OK(w, balanceResponse{Balance: balance, Pro: pro})
}

// Spend handles POST /xp/spend
func (h *Handler) Spend(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req spendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	if err := h.svc.Spend(r.Context(), userID, req.Amount, req.ReferenceID); err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "amount must be greater than zero and reference_id is required")
		case errors.Is(err, ErrInsufficientXP):
			response.Conflict(w, "insufficient xp balance")
		case errors.Is(err, ErrReferenceConflict):
			response.Conflict(w, "reference_id already used with a different amount")
		default:
			response.InternalError(w)
		}
		return
	}

	balance, err := h.svc.GetBalance(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, balance)
}

// SetAll handles POST /admin/xp/set-all
func (h *Handler) SetAll(w http.ResponseWriter, r *http.Request) {
	var req setAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	result, err := h.svc.SetAllBalances(r.Context(), req.XPAmount)
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			response.BadRequest(w, "xp_amount must be greater than zero")
			return
		}
		log.Error().Err(err).Msg("bulk balance rewrite failed")
		response.InternalError(w)
		return
	}

	response.OK(w, result)
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/balance", h.Balance)
	r.Post("/spend", h.Spend)
	return r
}

func (h *Handler) AdminRoutes(authMiddleware, adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(adminMiddleware)
	r.Post("/set-all", h.SetAll)
	return r
}
