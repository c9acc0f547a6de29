package handler

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopiq/shopiq-backend/internal/http/response"
	"github.com/shopiq/shopiq-backend/internal/observability"
	"github.com/shopiq/shopiq-backend/internal/security"
	"github.com/shopiq/shopiq-backend/internal/service"
)

const defaultStateCookieTTL = 10 * time.Minute

type OAuthHandler struct {
	oauth         *service.OAuthService
	sessions      *service.SessionService
	stateTTL      time.Duration
	secureCookies bool
}

func NewOAuthHandler(oauth *service.OAuthService, sessions *service.SessionService, stateTTL time.Duration, secureCookies bool) *OAuthHandler {
	if stateTTL <= 0 {
		stateTTL = defaultStateCookieTTL
	}
	return &OAuthHandler{oauth: oauth, sessions: sessions, stateTTL: stateTTL, secureCookies: secureCookies}
}

// Connect starts the handshake. An anonymous caller is bounced to
// sign-in with the original request carried as one opaque base64 blob;
// re-encoding the whole URL sidesteps parameter-confusion tricks with
// nested query strings.
func (h *OAuthHandler) Connect(w http.ResponseWriter, r *http.Request) {
	user, err := h.sessions.GetUserWithStores(r)
	if err != nil {
		slog.ErrorContext(r.Context(), "session lookup failed", "error", err)
		response.Internal(w, r)
		return
	}
	if user == nil {
		returnTo := base64.RawURLEncoding.EncodeToString([]byte(r.URL.RequestURI()))
		http.Redirect(w, r, "/signin?return_to="+returnTo, http.StatusFound)
		return
	}

	shop := strings.TrimSpace(r.URL.Query().Get("shop"))
	authorizeURL, nonce, oerr := h.oauth.BeginConnect(shop)
	if oerr != nil {
		http.Redirect(w, r, "/oauth/error?error="+url.QueryEscape(oerr.Code), http.StatusFound)
		return
	}

	security.SetSessionCookie(w, security.OAuthStateCookie, nonce, h.stateTTL, h.secureCookies)
	http.Redirect(w, r, authorizeURL, http.StatusFound)
}

// Callback finishes the handshake. The state cookie is cleared before
// verification so every nonce is single-use no matter how the ladder
// ends.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie := security.GetCookie(r, security.OAuthStateCookie)
	security.ClearCookie(w, security.OAuthStateCookie, h.secureCookies)

	var userID *uint
	if user, err := h.sessions.GetUserWithStores(r); err == nil && user != nil {
		userID = &user.ID
	}

	store, oerr := h.oauth.HandleCallback(r.Context(), r.URL.Query(), stateCookie, userID)
	if oerr != nil {
		observability.Audit(r, "oauth_callback_rejected", "code", oerr.Code)
		slog.WarnContext(r.Context(), "oauth callback rejected", "code", oerr.Code)
		http.Redirect(w, r, "/oauth/error?error="+url.QueryEscape(oerr.Code), http.StatusFound)
		return
	}

	if err := h.sessions.CreateStoreSession(w, store); err != nil {
		slog.ErrorContext(r.Context(), "store session issue failed", "error", err)
		http.Redirect(w, r, "/oauth/error?error="+service.OAuthErrStoreSaveFailed, http.StatusFound)
		return
	}
	http.Redirect(w, r, "/dashboard?connected=1", http.StatusFound)
}
