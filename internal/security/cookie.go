package security

import (
	"net/http"
	"time"
)

// Cookie names are part of the contract with the edge middleware. One
// cookie per session kind lets a browser hold a store session and a user
// session at the same time.
const (
	StoreSessionCookie    = "shopiq_store_session"
	UserSessionCookie     = "shopiq_user_session"
	EmployeeSessionCookie = "shopiq_employee_session"
	OAuthStateCookie      = "shopiq_oauth_state"
	ForcedResetCookie     = "shopiq_forced_reset"
)

func GetCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// SetSessionCookie writes an HttpOnly, SameSite=Lax cookie scoped to the
// whole origin. Secure is driven by the deployment environment, not the
// request scheme, so local development over plain HTTP still works.
func SetSessionCookie(w http.ResponseWriter, name, value string, maxAge time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie is idempotent; clearing an absent cookie is a no-op for the
// browser.
func ClearCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
