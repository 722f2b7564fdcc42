package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "AUTHCORE_"

type Config struct {
	AppEnv   string `yaml:"app_env"`
	HTTPAddr string `yaml:"http_addr"`

	DatabaseDriver string `yaml:"database_driver"`
	DatabaseURL    string `yaml:"database_url"`

	RedisEnabled   bool   `yaml:"redis_enabled"`
	RedisAddr      string `yaml:"redis_addr"`
	RedisPassword  string `yaml:"redis_password"`
	RedisDB        int    `yaml:"redis_db"`
	RedisKeyPrefix string `yaml:"redis_key_prefix"`

	KafkaBrokers      []string          `yaml:"kafka_brokers"`
	KafkaTopics       map[string]string `yaml:"kafka_topics"`
	EmailRequestTopic string            `yaml:"email_request_topic"`

	JWTIssuer       string `yaml:"jwt_issuer"`
	JWTAudience     string `yaml:"jwt_audience"`
	JWTAccessSecret string `yaml:"jwt_access_secret"`
	BcryptCost      int    `yaml:"bcrypt_cost"`

	CORSOrigins      []string `yaml:"cors_origins"`
	AuthRateLimitRPM int      `yaml:"auth_rate_limit_rpm"`
	APIRateLimitRPM  int      `yaml:"api_rate_limit_rpm"`

	UserAgentCacheSize int           `yaml:"user_agent_cache_size"`
	UserAgentCacheTTL  time.Duration `yaml:"user_agent_cache_ttl"`

	SideEffectTimeout     time.Duration `yaml:"side_effect_timeout"`
	SideEffectConcurrency int           `yaml:"side_effect_concurrency"`
	SessionCleanupCron    string        `yaml:"session_cleanup_cron"`
	ShutdownTimeout       time.Duration `yaml:"shutdown_timeout"`

	LogLevel                  string        `yaml:"log_level"`
	OTELServiceName           string        `yaml:"otel_service_name"`
	OTELEnvironment           string        `yaml:"otel_environment"`
	OTELExporterOTLPEndpoint  string        `yaml:"otel_exporter_otlp_endpoint"`
	OTELExporterOTLPInsecure  bool          `yaml:"otel_exporter_otlp_insecure"`
	OTELMetricsEnabled        bool          `yaml:"otel_metrics_enabled"`
	OTELTracingEnabled        bool          `yaml:"otel_tracing_enabled"`
	OTELLogsEnabled           bool          `yaml:"otel_logs_enabled"`
	OTELMetricsExportInterval time.Duration `yaml:"otel_metrics_export_interval"`
	OTELTraceSamplingRatio    float64       `yaml:"otel_trace_sampling_ratio"`

	Security SecurityPolicy `yaml:"security"`
}

func Default() *Config {
	return &Config{
		AppEnv:                    "development",
		HTTPAddr:                  ":8080",
		DatabaseDriver:            "sqlite",
		DatabaseURL:               "file:authcore.db?_foreign_keys=on",
		RedisAddr:                 "localhost:6379",
		RedisKeyPrefix:            "authcore",
		KafkaTopics:               map[string]string{},
		EmailRequestTopic:         "notifications.email.requested",
		JWTIssuer:                 "tenant-session-core",
		JWTAudience:               "tenant-session-core-api",
		BcryptCost:                12,
		CORSOrigins:               []string{"http://localhost:3000"},
		AuthRateLimitRPM:          30,
		APIRateLimitRPM:           300,
		UserAgentCacheSize:        2048,
		UserAgentCacheTTL:         time.Hour,
		SideEffectTimeout:         10 * time.Second,
		SideEffectConcurrency:     16,
		SessionCleanupCron:        "*/10 * * * *",
		ShutdownTimeout:           15 * time.Second,
		LogLevel:                  "info",
		OTELServiceName:           "tenant-session-core",
		OTELEnvironment:           "development",
		OTELExporterOTLPEndpoint:  "localhost:4317",
		OTELExporterOTLPInsecure:  true,
		OTELMetricsExportInterval: 15 * time.Second,
		OTELTraceSamplingRatio:    1.0,
		Security:                  DefaultSecurityPolicy(),
	}
}

// Load resolves configuration as defaults, then the optional YAML file named
// by AUTHCORE_CONFIG_FILE, then environment variables (a local .env file is
// merged into the environment first without overriding existing values).
func Load() (*Config, error) {
	cfg, err := load()
	recordConfigLoad(context.Background(), cfg, err)
	return cfg, err
}

func load() (*Config, error) {
	if err := LoadEnvFile(envOr(envPrefix+"ENV_FILE", ".env")); err != nil {
		return nil, err
	}
	cfg := Default()
	if path := os.Getenv(envPrefix + "CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs into the process environment. A missing
// file is not an error and existing variables win.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	e := envReader{}
	e.str("APP_ENV", &c.AppEnv)
	e.str("HTTP_ADDR", &c.HTTPAddr)
	e.str("DATABASE_DRIVER", &c.DatabaseDriver)
	e.str("DATABASE_URL", &c.DatabaseURL)
	e.boolean("REDIS_ENABLED", &c.RedisEnabled)
	e.str("REDIS_ADDR", &c.RedisAddr)
	e.str("REDIS_PASSWORD", &c.RedisPassword)
	e.integer("REDIS_DB", &c.RedisDB)
	e.str("REDIS_KEY_PREFIX", &c.RedisKeyPrefix)
	e.list("KAFKA_BROKERS", &c.KafkaBrokers)
	e.str("EMAIL_REQUEST_TOPIC", &c.EmailRequestTopic)
	e.str("JWT_ISSUER", &c.JWTIssuer)
	e.str("JWT_AUDIENCE", &c.JWTAudience)
	e.str("JWT_ACCESS_SECRET", &c.JWTAccessSecret)
	e.integer("BCRYPT_COST", &c.BcryptCost)
	e.list("CORS_ORIGINS", &c.CORSOrigins)
	e.integer("AUTH_RATE_LIMIT_RPM", &c.AuthRateLimitRPM)
	e.integer("API_RATE_LIMIT_RPM", &c.APIRateLimitRPM)
	e.integer("USER_AGENT_CACHE_SIZE", &c.UserAgentCacheSize)
	e.duration("USER_AGENT_CACHE_TTL", &c.UserAgentCacheTTL)
	e.duration("SIDE_EFFECT_TIMEOUT", &c.SideEffectTimeout)
	e.integer("SIDE_EFFECT_CONCURRENCY", &c.SideEffectConcurrency)
	e.str("SESSION_CLEANUP_CRON", &c.SessionCleanupCron)
	e.duration("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout)
	e.str("LOG_LEVEL", &c.LogLevel)
	e.str("OTEL_SERVICE_NAME", &c.OTELServiceName)
	e.str("OTEL_ENVIRONMENT", &c.OTELEnvironment)
	e.str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.OTELExporterOTLPEndpoint)
	e.boolean("OTEL_EXPORTER_OTLP_INSECURE", &c.OTELExporterOTLPInsecure)
	e.boolean("OTEL_METRICS_ENABLED", &c.OTELMetricsEnabled)
	e.boolean("OTEL_TRACING_ENABLED", &c.OTELTracingEnabled)
	e.boolean("OTEL_LOGS_ENABLED", &c.OTELLogsEnabled)
	e.duration("OTEL_METRICS_EXPORT_INTERVAL", &c.OTELMetricsExportInterval)

	p := &c.Security
	e.integer("LOCKOUT_MAX_FAILED_ATTEMPTS", &p.Lockout.MaxFailedAttempts)
	e.duration("LOCKOUT_DURATION", &p.Lockout.Duration)
	e.integer("SESSION_MAX_CONCURRENT", &p.Session.MaxConcurrent)
	e.duration("SESSION_NORMAL_TTL", &p.Session.NormalTTL)
	e.duration("SESSION_EXTENDED_TTL", &p.Session.ExtendedTTL)
	e.duration("SESSION_ADMIN_TTL", &p.Session.AdminTTL)
	e.duration("SESSION_INACTIVITY_TIMEOUT", &p.Session.InactivityTimeout)
	e.duration("TOKEN_ACCESS_TTL", &p.Token.AccessTTL)
	e.duration("TOKEN_REFRESH_TTL", &p.Token.RefreshTTL)
	e.integer("DEVICE_MAX_PER_USER", &p.Device.MaxDevicesPerUser)
	e.integer("DEVICE_INITIAL_TRUST", &p.Device.InitialTrustScore)
	e.integer("DEVICE_TRUST_INCREMENT", &p.Device.TrustIncrement)
	e.duration("DEVICE_TRUST_BUMP_INTERVAL", &p.Device.TrustBumpInterval)
	e.boolean("DEVICE_ALERT_ON_NEW", &p.Device.AlertOnNewDevice)
	e.duration("AUDIT_BRUTE_FORCE_WINDOW", &p.Audit.BruteForceWindow)
	e.integer("AUDIT_BRUTE_FORCE_THRESHOLD", &p.Audit.BruteForceThreshold)
	return e.err
}

func (c *Config) Validate() error {
	var problems []string
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("unsupported database driver %q", c.DatabaseDriver))
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		problems = append(problems, "database url is required")
	}
	if len(c.JWTAccessSecret) < 32 {
		problems = append(problems, "jwt access secret must be at least 32 bytes")
	}
	if c.RedisEnabled && strings.TrimSpace(c.RedisAddr) == "" {
		problems = append(problems, "redis addr is required when redis is enabled")
	}
	p := c.Security
	if p.Lockout.MaxFailedAttempts < 1 || p.Lockout.Duration <= 0 {
		problems = append(problems, "lockout policy requires a positive threshold and duration")
	}
	if p.Session.MaxConcurrent < 1 {
		problems = append(problems, "session max concurrent must be >= 1")
	}
	if p.Session.NormalTTL <= 0 || p.Session.ExtendedTTL <= 0 || p.Session.AdminTTL <= 0 {
		problems = append(problems, "session lifetimes must be positive")
	}
	if p.Token.AccessTTL <= 0 || p.Token.RefreshTTL <= 0 {
		problems = append(problems, "token lifetimes must be positive")
	}
	if p.Device.MaxDevicesPerUser < 1 {
		problems = append(problems, "device limit must be >= 1")
	}
	if p.Device.InitialTrustScore < 0 || p.Device.InitialTrustScore > 100 || p.Device.TrustIncrement < 0 {
		problems = append(problems, "device trust settings out of range")
	}
	if p.Audit.BruteForceThreshold < 1 || p.Audit.BruteForceWindow <= 0 {
		problems = append(problems, "audit brute force policy requires a positive threshold and window")
	}
	if len(problems) > 0 {
		return fmt.Errorf("validate config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type envReader struct{ err error }

func (e *envReader) lookup(name string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.lookup(name); ok {
		*dst = v
	}
}

func (e *envReader) list(name string, dst *[]string) {
	v, ok := e.lookup(name)
	if !ok {
		return
	}
	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (e *envReader) integer(name string, dst *int) {
	v, ok := e.lookup(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.err = fmt.Errorf("parse %s%s: %w", envPrefix, name, err)
		return
	}
	*dst = n
}

func (e *envReader) boolean(name string, dst *bool) {
	v, ok := e.lookup(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.err = fmt.Errorf("parse %s%s: %w", envPrefix, name, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(name string, dst *time.Duration) {
	v, ok := e.lookup(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.err = fmt.Errorf("parse %s%s: %w", envPrefix, name, err)
		return
	}
	*dst = d
}
