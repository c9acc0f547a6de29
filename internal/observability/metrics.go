package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopiq/shopiq-backend/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

type AppMetrics struct {
	signInCounter        metric.Int64Counter
	passwordResetCounter metric.Int64Counter
	oauthCallbackCounter metric.Int64Counter
	rateLimitCounter     metric.Int64Counter
	repositoryCounter    metric.Int64Counter
	trialRedeemCounter   metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("shopiq-backend")
	m := &AppMetrics{}
	if m.signInCounter, err = meter.Int64Counter("auth.signin.attempts"); err != nil {
		return nil, err
	}
	if m.passwordResetCounter, err = meter.Int64Counter("auth.password_reset.events"); err != nil {
		return nil, err
	}
	if m.oauthCallbackCounter, err = meter.Int64Counter("oauth.callback.results"); err != nil {
		return nil, err
	}
	if m.rateLimitCounter, err = meter.Int64Counter("ratelimit.decisions"); err != nil {
		return nil, err
	}
	if m.repositoryCounter, err = meter.Int64Counter("repository.operations"); err != nil {
		return nil, err
	}
	if m.trialRedeemCounter, err = meter.Int64Counter("trial.redeem.attempts"); err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

// RecordSignIn labels by principal kind (user/employee) and outcome only;
// email addresses never become metric labels.
func RecordSignIn(kind, status string) {
	m := current()
	if m == nil {
		return
	}
	m.signInCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

func RecordPasswordReset(flow, status string) {
	m := current()
	if m == nil {
		return
	}
	m.passwordResetCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("flow", flow),
			attribute.String("status", status),
		),
	)
}

func RecordOAuthCallback(status string) {
	m := current()
	if m == nil {
		return
	}
	m.oauthCallbackCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordRateLimitDecision(ctx context.Context, scope, decision string) {
	m := current()
	if m == nil {
		return
	}
	m.rateLimitCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("scope", scope),
			attribute.String("decision", decision),
		),
	)
}

func RecordRepositoryOperation(ctx context.Context, entity, op, status string) {
	m := current()
	if m == nil {
		return
	}
	m.repositoryCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("entity", entity),
			attribute.String("operation", op),
			attribute.String("status", status),
		),
	)
}

func RecordTrialRedeem(status string) {
	m := current()
	if m == nil {
		return
	}
	m.trialRedeemCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}
