package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/shopiq/shopiq-backend/internal/http/handler"
	"github.com/shopiq/shopiq-backend/internal/http/middleware"
	"github.com/shopiq/shopiq-backend/internal/http/response"
	"github.com/shopiq/shopiq-backend/internal/ratelimit"
	"github.com/shopiq/shopiq-backend/internal/service"
)

type Dependencies struct {
	AuthHandler    *handler.AuthHandler
	OAuthHandler   *handler.OAuthHandler
	FounderHandler *handler.FounderHandler
	SalesHandler   *handler.SalesHandler
	TrialHandler   *handler.TrialHandler
	MeHandler      *handler.MeHandler
	Sessions       *service.SessionService

	Limiter     ratelimit.Limiter
	CORSOrigins []string

	APIRateLimitRPM   int
	AuthRateLimitRPM  int
	TrialRateLimitRPM int

	// ReadinessChecks are probed by /health/ready; typically one per
	// backing store.
	ReadinessChecks map[string]func(context.Context) error

	EnableOTelHTTP bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))
	r.Use(middleware.RateLimit(dep.Limiter, middleware.RateLimitOptions{
		Scope:    ratelimit.ScopeAPI,
		Config:   ratelimit.Config{MaxRequests: dep.APIRateLimitRPM, Window: time.Minute},
		FailOpen: true,
	}))

	// Auth endpoints carry the backoff policy: repeated failures block
	// the key well past the plain request window.
	authLimiter := middleware.RateLimit(dep.Limiter, middleware.RateLimitOptions{
		Scope: ratelimit.ScopeAuth,
		Config: ratelimit.Config{
			MaxRequests: dep.AuthRateLimitRPM,
			Window:      time.Minute,
			MaxFailures: 5,
			BaseBlock:   time.Second,
		},
	})
	trialLimiter := middleware.RateLimit(dep.Limiter, middleware.RateLimitOptions{
		Scope: ratelimit.ScopeTrial,
		Config: ratelimit.Config{
			MaxRequests: dep.TrialRateLimitRPM,
			Window:      time.Minute,
			MaxFailures: 3,
			BaseBlock:   2 * time.Second,
		},
	})

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}
		ready := true
		for name, probe := range dep.ReadinessChecks {
			if err := probe(r.Context()); err != nil {
				checks[name] = err.Error()
				ready = false
				continue
			}
			checks[name] = "ok"
		}
		if !ready {
			response.Error(w, r, http.StatusServiceUnavailable, "dependency_unready", "dependencies are not ready", checks)
			return
		}
		response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": checks})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter).Post("/signup", dep.AuthHandler.SignUp)
			r.With(authLimiter).Post("/signin", dep.AuthHandler.SignIn)
			r.Post("/signout", dep.AuthHandler.SignOut)
			r.With(authLimiter).Post("/forgot-password", dep.AuthHandler.ForgotPassword)
			r.With(authLimiter).Post("/reset-password", dep.AuthHandler.ResetPassword)
		})

		r.Route("/shopify", func(r chi.Router) {
			r.Get("/connect", dep.OAuthHandler.Connect)
			r.Get("/callback", dep.OAuthHandler.Callback)
		})

		r.Get("/me", dep.MeHandler.Me)

		r.Route("/founder", func(r chi.Router) {
			r.Use(middleware.FounderGuard(dep.Sessions))
			r.Get("/employees", dep.FounderHandler.ListEmployees)
			r.Post("/employees", dep.FounderHandler.Invite)
			r.Patch("/employees/{id}/approval", dep.FounderHandler.SetApproval)
			r.Post("/employees/{id}/force-reset", dep.FounderHandler.ForceReset)
		})

		r.Route("/sales", func(r chi.Router) {
			r.Use(middleware.SalesGuard(dep.Sessions))
			r.Get("/dashboard", dep.SalesHandler.Dashboard)
			r.Get("/referrals", dep.SalesHandler.ListReferrals)
			r.Post("/referrals", dep.SalesHandler.CreateReferral)
			r.Get("/pending-approval", dep.SalesHandler.PendingApproval)
		})

		r.With(trialLimiter).Post("/trial/redeem", dep.TrialHandler.Redeem)
	})

	// The form entry point lives outside /api/v1: it is the link users
	// click from email.
	r.Get("/reset-password/start", dep.AuthHandler.StartReset)

	if dep.EnableOTelHTTP {
		return otelhttp.NewHandler(r, "http.server")
	}
	return r
}
