package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/shopiq/shopiq-backend/internal/ratelimit"
)

func limitedHandler(limiter ratelimit.Limiter, cfg ratelimit.Config) http.Handler {
	mw := RateLimit(limiter, RateLimitOptions{Scope: "test", Config: cfg})
	return mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestRateLimitAllowsUnderLimit(t *testing.T) {
	h := limitedHandler(ratelimit.NewMemoryLimiter(), ratelimit.Config{MaxRequests: 2, Window: time.Minute})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("request %d: status %d", i+1, rr.Code)
		}
	}
}

func TestRateLimitDenies(t *testing.T) {
	h := limitedHandler(ratelimit.NewMemoryLimiter(), ratelimit.Config{MaxRequests: 1, Window: time.Minute})

	first := httptest.NewRequest(http.MethodGet, "/x", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	h.ServeHTTP(httptest.NewRecorder(), first)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.0.0.1:9999"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	seconds, err := strconv.Atoi(rr.Header().Get("Retry-After"))
	if err != nil {
		t.Fatalf("Retry-After %q not an integer", rr.Header().Get("Retry-After"))
	}
	if seconds < 1 || seconds > 60 {
		t.Fatalf("Retry-After = %d, want within the window", seconds)
	}
}

func TestRateLimitKeysByClientIP(t *testing.T) {
	h := limitedHandler(ratelimit.NewMemoryLimiter(), ratelimit.Config{MaxRequests: 1, Window: time.Minute})

	a := httptest.NewRequest(http.MethodGet, "/x", nil)
	a.RemoteAddr = "10.0.0.1:1234"
	h.ServeHTTP(httptest.NewRecorder(), a)

	b := httptest.NewRequest(http.MethodGet, "/x", nil)
	b.RemoteAddr = "10.0.0.2:1234"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, b)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("distinct client denied: status %d", rr.Code)
	}
}

func TestRateLimitUnknownClientsShareBucket(t *testing.T) {
	h := limitedHandler(ratelimit.NewMemoryLimiter(), ratelimit.Config{MaxRequests: 1, Window: time.Minute})

	a := httptest.NewRequest(http.MethodGet, "/x", nil)
	a.RemoteAddr = "not-an-ip"
	h.ServeHTTP(httptest.NewRecorder(), a)

	b := httptest.NewRequest(http.MethodGet, "/x", nil)
	b.RemoteAddr = "also-not-an-ip"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, b)

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("unattributable clients must share one bucket, got %d", rr.Code)
	}
}
