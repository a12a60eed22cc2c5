package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"filebot/internal/auth"
	"filebot/internal/middleware"
	"filebot/internal/models"
	"filebot/internal/payments"
	"filebot/internal/validator"

	"github.com/go-chi/chi/v5"
)

type loginRequest struct {
	Password string `json:"password"`
}

func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validator.ValidatePassword(req.Password); err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if h.cfg.AdminPasswordHash == "" || !auth.CheckPassword(h.cfg.AdminPasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := auth.GenerateToken(h.cfg.JWTSecret, h.cfg.AdminID, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) ListPendingPayments(w http.ResponseWriter, r *http.Request) {
	pending, err := h.payments.ListPending(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not list payments")
		return
	}
	if pending == nil {
		pending = []models.PendingPayment{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"payments": pending})
}

func (h *Handler) ApprovePayment(w http.ResponseWriter, r *http.Request) {
	h.decidePayment(w, r, payments.DecisionApprove)
}

func (h *Handler) RejectPayment(w http.ResponseWriter, r *http.Request) {
	h.decidePayment(w, r, payments.DecisionReject)
}

func (h *Handler) decidePayment(w http.ResponseWriter, r *http.Request, decision payments.Decision) {
	paymentID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid payment id")
		return
	}
	adminID := middleware.AdminIDFromContext(r.Context())
	outcome, err := h.payments.Decide(r.Context(), paymentID, adminID, decision)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "decision failed")
		return
	}
	if !outcome.Applied {
		switch outcome.Reason {
		case payments.ReasonNotFound:
			respondError(w, http.StatusNotFound, "payment not found")
		default:
			respondJSON(w, http.StatusConflict, map[string]any{
				"error":  "payment already decided",
				"status": outcome.Payment.Status,
			})
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"payment":     outcome.Payment,
		"new_balance": outcome.NewBalance,
		"decision":    string(decision),
	})
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || validator.ValidateUserID(userID) != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	user, err := h.ledger.GetUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	recent, err := h.conversions.ListByUser(r.Context(), userID, 10)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not load conversions")
		return
	}
	if recent == nil {
		recent = []models.ConversionRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user":               user,
		"recent_conversions": recent,
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userCount, err := h.users.Count(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not load stats")
		return
	}
	totals, err := h.users.CounterTotals(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not load stats")
		return
	}
	dayAgo := time.Now().Add(-24 * time.Hour)
	activeUsers, err := h.activity.CountActiveUsersSince(ctx, dayAgo)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not load stats")
		return
	}
	conversionsToday, err := h.conversions.CountSince(ctx, dayAgo)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not load stats")
		return
	}
	pendingCount, err := h.payments.CountPending(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not load stats")
		return
	}
	topFormats, err := h.conversions.TopTargetFormats(ctx, 5)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not load stats")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"users":                  userCount,
		"active_users_24h":       activeUsers,
		"successful_conversions": totals.Successful,
		"failed_conversions":     totals.Failed,
		"conversions_24h":        conversionsToday,
		"pending_payments":       pendingCount,
		"top_target_formats":     topFormats,
	})
}
