package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/shopiq/shopiq-backend/internal/config"
	"github.com/shopiq/shopiq-backend/internal/http/handler"
	"github.com/shopiq/shopiq-backend/internal/http/router"
	"github.com/shopiq/shopiq-backend/internal/mail"
	"github.com/shopiq/shopiq-backend/internal/observability"
	"github.com/shopiq/shopiq-backend/internal/ratelimit"
	"github.com/shopiq/shopiq-backend/internal/repository"
	"github.com/shopiq/shopiq-backend/internal/security"
	"github.com/shopiq/shopiq-backend/internal/service"
	"github.com/shopiq/shopiq-backend/internal/shopify"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime

	db    *gorm.DB
	redis *redis.Client
}

// New wires the whole service graph from configuration. It fails fast:
// a missing secret or unreachable database stops the boot rather than
// limping into a half-working process.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, obs *observability.Runtime) (*App, error) {
	// Open migrates the schema itself.
	db, err := repository.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	users := repository.NewUserRepository(db)
	employees := repository.NewEmployeeRepository(db)
	stores := repository.NewStoreRepository(db)
	referrals := repository.NewReferralRepository(db)

	signer, err := security.NewSessionSigner(cfg.SessionIssuer, cfg.SessionSecret)
	if err != nil {
		return nil, err
	}
	sessions := service.NewSessionService(signer, users, employees, stores, cfg.SessionTTL, cfg.SecureCookies())

	mailer := mail.NewLogMailer()
	verifier := service.BcryptVerifier{}

	auth, err := service.NewAuthService(users, employees, verifier, mailer, cfg.AppBaseURL)
	if err != nil {
		return nil, err
	}
	employeeSvc := service.NewEmployeeService(employees, users, verifier, mailer, cfg.AppBaseURL)
	referralSvc := service.NewReferralService(referrals, users, employees, verifier)

	shopifyClient := shopify.NewHTTPClient(cfg.ShopifyAPIKey, cfg.ShopifyAPISecret, cfg.ShopifyScopes, cfg.ShopifyRedirectURL)
	oauthSvc := service.NewOAuthService(shopifyClient, stores, cfg.ShopifyAPISecret)

	var redisClient *redis.Client
	var limiter ratelimit.Limiter
	if cfg.RateLimitUseRedis {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		limiter = ratelimit.NewRedisLimiter(redisClient, "")
	} else {
		limiter = ratelimit.NewMemoryLimiter()
	}

	readiness := map[string]func(context.Context) error{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		readiness["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	mux := router.NewRouter(router.Dependencies{
		AuthHandler:       handler.NewAuthHandler(auth, sessions, limiter, cfg.ForcedResetTTL, cfg.SecureCookies()),
		OAuthHandler:      handler.NewOAuthHandler(oauthSvc, sessions, cfg.OAuthStateTTL, cfg.SecureCookies()),
		FounderHandler:    handler.NewFounderHandler(employeeSvc),
		SalesHandler:      handler.NewSalesHandler(referralSvc),
		TrialHandler:      handler.NewTrialHandler(referralSvc, sessions, limiter),
		MeHandler:         handler.NewMeHandler(sessions),
		Sessions:          sessions,
		Limiter:           limiter,
		CORSOrigins:       cfg.CORSOrigins,
		APIRateLimitRPM:   cfg.APIRateLimitRPM,
		AuthRateLimitRPM:  cfg.AuthRateLimitRPM,
		TrialRateLimitRPM: cfg.RedeemRateLimitRPM,
		ReadinessChecks:   readiness,
		EnableOTelHTTP:    cfg.OTELTracesEnabled,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		Server:        server,
		Observability: obs,
		db:            db,
		redis:         redisClient,
	}, nil
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", "addr", a.Server.Addr, "env", a.Config.Environment)
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Close releases backing connections after the server has stopped.
func (a *App) Close(ctx context.Context) error {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warn("redis close failed", "error", err)
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.Logger.Warn("database close failed", "error", err)
		}
	}
	if a.Observability != nil {
		return a.Observability.Shutdown(ctx)
	}
	return nil
}
