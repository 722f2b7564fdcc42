package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sandeepkv93/tenant-session-core/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "tenant-session-core"

type AppMetrics struct {
	authLoginCounter       metric.Int64Counter
	contextSelectCounter   metric.Int64Counter
	tokenRefreshCounter    metric.Int64Counter
	authLogoutCounter      metric.Int64Counter
	sessionRevokeCounter   metric.Int64Counter
	deviceRegisterCounter  metric.Int64Counter
	securityEventCounter   metric.Int64Counter
	repositoryOpCounter    metric.Int64Counter
	tokenValidationCounter metric.Int64Counter
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
	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	m, err := NewAppMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	SetAppMetrics(m)

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func NewAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	m := &AppMetrics{}
	counters := []struct {
		name string
		dst  *metric.Int64Counter
	}{
		{"auth.login.attempts", &m.authLoginCounter},
		{"auth.context.selections", &m.contextSelectCounter},
		{"auth.refresh.attempts", &m.tokenRefreshCounter},
		{"auth.logout.attempts", &m.authLogoutCounter},
		{"session.revocations", &m.sessionRevokeCounter},
		{"device.registrations", &m.deviceRegisterCounter},
		{"security.events", &m.securityEventCounter},
		{"repository.operations", &m.repositoryOpCounter},
		{"auth.access_token.validations", &m.tokenValidationCounter},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name)
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", c.name, err)
		}
		*c.dst = counter
	}
	return m, nil
}

// SetAppMetrics swaps the process-wide counters. Passing nil disables recording.
func SetAppMetrics(m *AppMetrics) {
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()
}

func currentMetrics() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordAuthLogin(status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authLoginCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordContextSelection(status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.contextSelectCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordTokenRefresh(status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.tokenRefreshCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordAuthLogout(scope, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authLogoutCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("scope", scope),
			attribute.String("status", status),
		),
	)
}

func RecordSessionRevocations(ctx context.Context, reason string, count int64) {
	m := currentMetrics()
	if m == nil || count <= 0 {
		return
	}
	m.sessionRevokeCounter.Add(ctx, count, metric.WithAttributes(attribute.String("reason", reason)))
}

func RecordDeviceRegistration(ctx context.Context, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.deviceRegisterCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordSecurityEvent(ctx context.Context, eventType, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.securityEventCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("event_type", eventType),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordRepositoryOperation(ctx context.Context, repository, operation, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.repositoryOpCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("repository", repository),
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordAccessTokenValidation(ctx context.Context, outcome, source string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.tokenValidationCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("source", source),
		),
	)
}
