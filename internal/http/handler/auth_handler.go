package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopiq/shopiq-backend/internal/http/middleware"
	"github.com/shopiq/shopiq-backend/internal/http/response"
	"github.com/shopiq/shopiq-backend/internal/observability"
	"github.com/shopiq/shopiq-backend/internal/ratelimit"
	"github.com/shopiq/shopiq-backend/internal/security"
	"github.com/shopiq/shopiq-backend/internal/service"
)

// Forced-reset cookie lifetime: long enough to fill in the form, short
// enough that an abandoned browser tab is not a standing credential.
const defaultForcedResetTTL = 15 * time.Minute

type AuthHandler struct {
	auth           *service.AuthService
	sessions       *service.SessionService
	limiter        ratelimit.Limiter
	forcedResetTTL time.Duration
	secureCookies  bool
}

func NewAuthHandler(auth *service.AuthService, sessions *service.SessionService, limiter ratelimit.Limiter, forcedResetTTL time.Duration, secureCookies bool) *AuthHandler {
	if forcedResetTTL <= 0 {
		forcedResetTTL = defaultForcedResetTTL
	}
	return &AuthHandler{auth: auth, sessions: sessions, limiter: limiter, forcedResetTTL: forcedResetTTL, secureCookies: secureCookies}
}

type signUpRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body")
		return
	}
	if req.Email == "" || req.Name == "" {
		response.BadRequest(w, r, "email and name are required")
		return
	}

	user, err := h.auth.SignUp(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			// Same shape as validation errors so signup cannot be used
			// to probe which emails exist.
			response.BadRequest(w, r, "unable to create an account with these details")
		case isPasswordPolicyError(err):
			response.BadRequest(w, r, err.Error())
		default:
			slog.ErrorContext(r.Context(), "signup failed", "error", err)
			response.Internal(w, r)
		}
		return
	}

	if err := h.sessions.CreateUserSession(w, user); err != nil {
		slog.ErrorContext(r.Context(), "session issue failed", "error", err)
		response.Internal(w, r)
		return
	}
	response.JSON(w, r, http.StatusCreated, map[string]any{"user": user})
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body")
		return
	}

	// Failure bookkeeping shares the bucket the auth-tier limiter
	// checks, so repeated bad credentials actually engage the backoff.
	key := ratelimit.Key(ratelimit.ScopeAuth, middleware.ClientIP(r))
	principal, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			observability.Audit(r, "signin_failed")
			if recErr := h.limiter.RecordFailure(r.Context(), key); recErr != nil {
				slog.WarnContext(r.Context(), "failure record skipped", "error", recErr)
			}
			response.Error(w, r, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", nil)
			return
		}
		slog.ErrorContext(r.Context(), "signin failed", "error", err)
		response.Internal(w, r)
		return
	}
	if err := h.limiter.ResetFailures(r.Context(), key); err != nil {
		slog.WarnContext(r.Context(), "failure reset skipped", "error", err)
	}

	switch {
	case principal.User != nil:
		if err := h.sessions.CreateUserSession(w, principal.User); err != nil {
			slog.ErrorContext(r.Context(), "session issue failed", "error", err)
			response.Internal(w, r)
			return
		}
		response.JSON(w, r, http.StatusOK, map[string]any{"kind": "user", "user": principal.User})
	default:
		if err := h.sessions.CreateEmployeeSession(w, principal.Employee); err != nil {
			slog.ErrorContext(r.Context(), "session issue failed", "error", err)
			response.Internal(w, r)
			return
		}
		response.JSON(w, r, http.StatusOK, map[string]any{"kind": "employee", "employee": principal.Employee})
	}
}

// SignOut clears every session cookie it can find. Idempotent: signing
// out while signed out is a success.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.sessions.DeleteUserSession(w)
	h.sessions.DeleteEmployeeSession(w)
	h.sessions.DeleteStoreSession(w)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "signed_out"})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		response.BadRequest(w, r, "email is required")
		return
	}
	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		slog.ErrorContext(r.Context(), "forgot password failed", "error", err)
		response.Internal(w, r)
		return
	}
	// Identical response whether or not the email exists.
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "if the account exists, an email is on its way"})
}

// StartReset moves the raw token out of the URL into a short-lived
// HttpOnly cookie before the browser lands on the form, keeping the
// token out of history, referrers and access logs.
func (h *AuthHandler) StartReset(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Redirect(w, r, "/signin", http.StatusFound)
		return
	}
	security.SetSessionCookie(w, security.ForcedResetCookie, token, h.forcedResetTTL, h.secureCookies)
	http.Redirect(w, r, "/reset-password", http.StatusFound)
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body")
		return
	}
	token := req.Token
	if token == "" {
		token = security.GetCookie(r, security.ForcedResetCookie)
	}
	if token == "" {
		response.BadRequest(w, r, "reset token is required")
		return
	}

	key := ratelimit.Key(ratelimit.ScopeAuth, middleware.ClientIP(r))
	err := h.auth.ResetPassword(r.Context(), token, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidResetToken):
			observability.Audit(r, "reset_token_rejected")
			if recErr := h.limiter.RecordFailure(r.Context(), key); recErr != nil {
				slog.WarnContext(r.Context(), "failure record skipped", "error", recErr)
			}
			response.BadRequest(w, r, "invalid or expired reset token")
		case isPasswordPolicyError(err):
			response.BadRequest(w, r, err.Error())
		default:
			slog.ErrorContext(r.Context(), "password reset failed", "error", err)
			response.Internal(w, r)
		}
		return
	}
	if err := h.limiter.ResetFailures(r.Context(), key); err != nil {
		slog.WarnContext(r.Context(), "failure reset skipped", "error", err)
	}
	security.ClearCookie(w, security.ForcedResetCookie, h.secureCookies)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "password updated"})
}

func isPasswordPolicyError(err error) bool {
	return errors.Is(err, security.ErrPasswordTooShort) ||
		errors.Is(err, security.ErrPasswordTooLong) ||
		errors.Is(err, security.ErrPasswordNoUpper) ||
		errors.Is(err, security.ErrPasswordNoLower) ||
		errors.Is(err, security.ErrPasswordNoDigit)
}
