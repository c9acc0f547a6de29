package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopiq/shopiq-backend/internal/http/middleware"
	"github.com/shopiq/shopiq-backend/internal/http/response"
	"github.com/shopiq/shopiq-backend/internal/ratelimit"
	"github.com/shopiq/shopiq-backend/internal/service"
)

type TrialHandler struct {
	referrals *service.ReferralService
	sessions  *service.SessionService
	limiter   ratelimit.Limiter
}

func NewTrialHandler(referrals *service.ReferralService, sessions *service.SessionService, limiter ratelimit.Limiter) *TrialHandler {
	return &TrialHandler{referrals: referrals, sessions: sessions, limiter: limiter}
}

type redeemRequest struct {
	Code     string `json:"code"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Redeem is the public trial-link endpoint. It sits behind the
// strictest limiter in the router because the code is the only secret.
func (h *TrialHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body")
		return
	}
	if req.Code == "" || req.Email == "" || req.Name == "" {
		response.BadRequest(w, r, "code, email and name are required")
		return
	}

	// A bad code is the security-relevant failure here: it feeds the
	// trial-tier backoff under the same bucket the route limiter checks.
	key := ratelimit.Key(ratelimit.ScopeTrial, middleware.ClientIP(r))
	user, err := h.referrals.RedeemTrial(r.Context(), req.Code, req.Email, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidReferralCode):
			if recErr := h.limiter.RecordFailure(r.Context(), key); recErr != nil {
				slog.WarnContext(r.Context(), "failure record skipped", "error", recErr)
			}
			response.BadRequest(w, r, "invalid referral code")
		case errors.Is(err, service.ErrEmailTaken):
			response.BadRequest(w, r, "unable to create an account with these details")
		case isPasswordPolicyError(err):
			response.BadRequest(w, r, err.Error())
		default:
			slog.ErrorContext(r.Context(), "trial redeem failed", "error", err)
			response.Internal(w, r)
		}
		return
	}
	if err := h.limiter.ResetFailures(r.Context(), key); err != nil {
		slog.WarnContext(r.Context(), "failure reset skipped", "error", err)
	}

	if err := h.sessions.CreateUserSession(w, user); err != nil {
		slog.ErrorContext(r.Context(), "session issue failed", "error", err)
		response.Internal(w, r)
		return
	}
	response.JSON(w, r, http.StatusCreated, map[string]any{"user": user})
}
