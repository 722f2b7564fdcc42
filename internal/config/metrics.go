package config

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	loadCounterOnce sync.Once
	loadCounter     metric.Int64Counter
)

var profileAliases = map[string]string{
	"dev":         "development",
	"development": "development",
	"local":       "development",
	"test":        "test",
	"stage":       "staging",
	"staging":     "staging",
	"prod":        "production",
	"production":  "production",
}

// recordConfigLoad counts one Load call. Attribute values are bounded so the
// counter stays low-cardinality whatever AUTHCORE_APP_ENV holds.
func recordConfigLoad(ctx context.Context, cfg *Config, err error) {
	loadCounterOnce.Do(func() {
		counter, cerr := otel.Meter("tenant-session-core/config").Int64Counter("config.load.events")
		if cerr == nil {
			loadCounter = counter
		}
	})
	if loadCounter == nil {
		return
	}
	profile, outcome := "", "success"
	if cfg != nil {
		profile = cfg.AppEnv
	}
	if err != nil {
		outcome = "failure"
	}
	loadCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("profile", profileLabel(profile)),
		attribute.String("outcome", outcome),
		attribute.String("error_class", loadErrorClass(err)),
	))
}

func profileLabel(profile string) string {
	v := strings.TrimSpace(strings.ToLower(profile))
	if v == "" {
		return "unknown"
	}
	if known, ok := profileAliases[v]; ok {
		return known
	}
	return "custom"
}

func loadErrorClass(err error) string {
	if err == nil {
		return "none"
	}
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "validate config:"):
		return "validation"
	case strings.HasPrefix(msg, "load env file"):
		return "env_file"
	case strings.HasPrefix(msg, "read config file"):
		return "config_file"
	case strings.HasPrefix(msg, "parse "):
		return "parse"
	default:
		return "load"
	}
}
