package middleware

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/shopiq/shopiq-backend/internal/http/response"
	"github.com/shopiq/shopiq-backend/internal/observability"
	"github.com/shopiq/shopiq-backend/internal/ratelimit"
)

// RateLimitOptions binds one limiter policy to one route scope. KeyFunc
// derives the client identity; an empty identity lands in the shared
// unknown bucket rather than bypassing the limiter.
type RateLimitOptions struct {
	Scope    string
	Config   ratelimit.Config
	FailOpen bool
	KeyFunc  func(r *http.Request) string
}

func RateLimit(limiter ratelimit.Limiter, opts RateLimitOptions) func(http.Handler) http.Handler {
	if opts.Scope == "" {
		opts.Scope = "api"
	}
	keyFunc := opts.KeyFunc
	if keyFunc == nil {
		keyFunc = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ratelimit.Key(opts.Scope, keyFunc(r))
			result, err := limiter.Check(r.Context(), key, opts.Config)
			if err != nil {
				observability.RecordRateLimitDecision(r.Context(), opts.Scope, "backend_error")
				if opts.FailOpen {
					slog.WarnContext(r.Context(), "rate limiter backend unavailable, allowing request",
						"scope", opts.Scope, "error", err.Error())
					next.ServeHTTP(w, r)
					return
				}
				response.RateLimited(w, r, opts.Config.Window)
				return
			}
			if !result.Allowed {
				decision := "deny"
				if result.Blocked {
					decision = "blocked"
				}
				observability.RecordRateLimitDecision(r.Context(), opts.Scope, decision)
				response.RateLimited(w, r, result.RetryAfter)
				return
			}
			observability.RecordRateLimitDecision(r.Context(), opts.Scope, "allow")
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP is the default limiter identity. RealIP runs earlier in the
// chain, so RemoteAddr already reflects X-Forwarded-For when present.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return ""
}
