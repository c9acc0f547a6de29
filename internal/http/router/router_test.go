package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shopiq/shopiq-backend/internal/http/handler"
	"github.com/shopiq/shopiq-backend/internal/mail"
	"github.com/shopiq/shopiq-backend/internal/ratelimit"
	"github.com/shopiq/shopiq-backend/internal/repository"
	"github.com/shopiq/shopiq-backend/internal/security"
	"github.com/shopiq/shopiq-backend/internal/service"
)

// fastVerifier keeps the router tests quick; bcrypt at cost 12 is too
// slow to run on every request here.
type fastVerifier struct{}

func (fastVerifier) Hash(plaintext string) (string, error) { return "h:" + plaintext, nil }
func (fastVerifier) Verify(plaintext, hash string) bool    { return hash == "h:"+plaintext }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	users := repository.NewUserRepository(db)
	employees := repository.NewEmployeeRepository(db)
	stores := repository.NewStoreRepository(db)
	referrals := repository.NewReferralRepository(db)

	signer, err := security.NewSessionSigner("shopiq-test", "0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	sessions := service.NewSessionService(signer, users, employees, stores, time.Hour, false)
	mailer := mail.NewLogMailer()
	auth, err := service.NewAuthService(users, employees, fastVerifier{}, mailer, "http://app.test")
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	employeeSvc := service.NewEmployeeService(employees, users, fastVerifier{}, mailer, "http://app.test")
	referralSvc := service.NewReferralService(referrals, users, employees, fastVerifier{})

	limiter := ratelimit.NewMemoryLimiter()

	return NewRouter(Dependencies{
		AuthHandler:       handler.NewAuthHandler(auth, sessions, limiter, 15*time.Minute, false),
		OAuthHandler:      handler.NewOAuthHandler(nil, sessions, 10*time.Minute, false),
		FounderHandler:    handler.NewFounderHandler(employeeSvc),
		SalesHandler:      handler.NewSalesHandler(referralSvc),
		TrialHandler:      handler.NewTrialHandler(referralSvc, sessions, limiter),
		MeHandler:         handler.NewMeHandler(sessions),
		Sessions:          sessions,
		Limiter:           limiter,
		CORSOrigins:       []string{"http://app.test"},
		APIRateLimitRPM:   1000,
		AuthRateLimitRPM:  100,
		TrialRateLimitRPM: 100,
		ReadinessChecks: map[string]func(context.Context) error{
			"database": func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
		},
	})
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "10.1.1.1:5000"
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestRouter(t)

	rr := doJSON(t, h, http.MethodGet, "/health/live", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("live status %d", rr.Code)
	}
	rr = doJSON(t, h, http.MethodGet, "/health/ready", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("ready status %d: %s", rr.Code, rr.Body.String())
	}
}

func TestSignUpThenMe(t *testing.T) {
	h := newTestRouter(t)

	rr := doJSON(t, h, http.MethodPost, "/api/v1/auth/signup",
		`{"email":"m@example.com","name":"Merchant","password":"Secret1pass"}`, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup status %d: %s", rr.Code, rr.Body.String())
	}

	var sessionCookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == security.UserSessionCookie {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("no user session cookie set")
	}
	if !sessionCookie.HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}

	rr = doJSON(t, h, http.MethodGet, "/api/v1/me", "", []*http.Cookie{sessionCookie})
	if rr.Code != http.StatusOK {
		t.Fatalf("me status %d: %s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if _, ok := payload.Data["user"]; !ok {
		t.Fatalf("me payload missing user: %s", rr.Body.String())
	}
}

func TestSignInRejectsBadPassword(t *testing.T) {
	h := newTestRouter(t)

	doJSON(t, h, http.MethodPost, "/api/v1/auth/signup",
		`{"email":"m@example.com","name":"Merchant","password":"Secret1pass"}`, nil)

	rr := doJSON(t, h, http.MethodPost, "/api/v1/auth/signin",
		`{"email":"m@example.com","password":"WrongPass1"}`, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rr.Code)
	}

	// Unknown email fails with the identical status and body shape.
	rr2 := doJSON(t, h, http.MethodPost, "/api/v1/auth/signin",
		`{"email":"ghost@example.com","password":"WrongPass1"}`, nil)
	if rr2.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rr2.Code)
	}
}

func TestFounderRoutesRedirectAnonymous(t *testing.T) {
	h := newTestRouter(t)

	rr := doJSON(t, h, http.MethodGet, "/api/v1/founder/employees", "", nil)
	if rr.Code != http.StatusFound {
		t.Fatalf("status %d, want 302", rr.Code)
	}
	if got := rr.Header().Get("Location"); got != "/signin" {
		t.Fatalf("location %q", got)
	}
}

func TestMeWithoutSession(t *testing.T) {
	h := newTestRouter(t)

	rr := doJSON(t, h, http.MethodGet, "/api/v1/me", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rr.Code)
	}
}

func TestSecurityHeadersPresent(t *testing.T) {
	h := newTestRouter(t)

	rr := doJSON(t, h, http.MethodGet, "/health/live", "", nil)
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing nosniff header")
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatal("missing request id header")
	}
}
