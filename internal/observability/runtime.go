package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/sandeepkv93/tenant-session-core/internal/config"
)

type Runtime struct {
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
	LoggerProvider *sdklog.LoggerProvider
}

// InitRuntime installs the global meter and tracer providers. lp is the log
// provider built alongside the logger and may be nil.
func InitRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, lp *sdklog.LoggerProvider) (*Runtime, error) {
	mp, err := InitMetrics(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	tp, err := InitTracing(ctx, cfg, logger)
	if err != nil {
		return nil, errors.Join(err, mp.Shutdown(ctx))
	}
	return &Runtime{MeterProvider: mp, TracerProvider: tp, LoggerProvider: lp}, nil
}

type providerShutdown struct {
	name string
	fn   func(context.Context) error
}

// Shutdown flushes traces first and logs last so that records emitted while
// the other providers stop are still exported.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	var steps []providerShutdown
	if r.TracerProvider != nil {
		steps = append(steps, providerShutdown{"tracer", r.TracerProvider.Shutdown})
	}
	if r.MeterProvider != nil {
		steps = append(steps, providerShutdown{"meter", r.MeterProvider.Shutdown})
	}
	if r.LoggerProvider != nil {
		steps = append(steps, providerShutdown{"logger", r.LoggerProvider.Shutdown})
	}
	var errs []error
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s provider: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}
