package app

import (
	"context"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sandeepkv93/tenant-session-core/internal/clientinfo"
	"github.com/sandeepkv93/tenant-session-core/internal/config"
	"github.com/sandeepkv93/tenant-session-core/internal/database"
	"github.com/sandeepkv93/tenant-session-core/internal/health"
	"github.com/sandeepkv93/tenant-session-core/internal/http/handler"
	"github.com/sandeepkv93/tenant-session-core/internal/http/router"
	"github.com/sandeepkv93/tenant-session-core/internal/notify"
	"github.com/sandeepkv93/tenant-session-core/internal/repository"
	"github.com/sandeepkv93/tenant-session-core/internal/security"
	"github.com/sandeepkv93/tenant-session-core/internal/service"
)

const (
	userLockTTL  = 10 * time.Second
	userLockWait = 3 * time.Second
)

func provideDB(cfg *config.Config, logger *slog.Logger) (*gorm.DB, func(), error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := database.Close(db); err != nil {
			logger.Warn("close database", "error", err)
		}
	}
	return db, cleanup, nil
}

// provideRedis returns nil when Redis is disabled; consumers fall back to
// in-process implementations.
func provideRedis(cfg *config.Config, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if !cfg.RedisEnabled {
		return nil, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("close redis", "error", err)
		}
	}
	return client, cleanup, nil
}

func provideUserLocker(cfg *config.Config, client redis.UniversalClient) service.UserLocker {
	if client == nil {
		return service.NewInMemoryUserLocker()
	}
	return service.NewRedisUserLocker(client, cfg.RedisKeyPrefix+":user_lock", userLockTTL, userLockWait)
}

func providePublisher(cfg *config.Config, logger *slog.Logger) (notify.Publisher, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("kafka brokers not configured, publishing notifications to the log")
		return notify.NewLogPublisher(logger), func() {}, nil
	}
	topics := maps.Clone(cfg.KafkaTopics)
	if topics == nil {
		topics = map[string]string{}
	}
	if _, ok := topics[notify.EventEmailRequested]; !ok && cfg.EmailRequestTopic != "" {
		topics[notify.EventEmailRequested] = cfg.EmailRequestTopic
	}
	pub, err := notify.NewKafkaPublisher(cfg.KafkaBrokers, topics)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := pub.Close(); err != nil {
			logger.Warn("close kafka publisher", "error", err)
		}
	}
	return pub, cleanup, nil
}

func provideEmailSender(pub notify.Publisher) notify.EmailSender {
	return notify.NewPublishingEmailSender(pub)
}

func provideDispatcher(cfg *config.Config, logger *slog.Logger) *notify.Dispatcher {
	return notify.NewDispatcher(logger, cfg.SideEffectConcurrency, cfg.SideEffectTimeout)
}

func provideClientParser(cfg *config.Config) clientinfo.Parser {
	return clientinfo.NewCachedParser(clientinfo.NewUserAgentParser(), cfg.UserAgentCacheSize, cfg.UserAgentCacheTTL)
}

func provideIDCodec() security.PublicIDCodec {
	return security.NewPrefixedIDCodec()
}

func provideDigester() security.Digester {
	return security.SHA256Digester{}
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret)
}

func provideHasher(cfg *config.Config) service.CredentialHasher {
	return security.NewBcryptHasher(cfg.BcryptCost)
}

func provideAuditService(events repository.SecurityEventRepository, audits repository.AuditLogRepository, ids security.PublicIDCodec, digester security.Digester, cfg *config.Config, logger *slog.Logger) *service.SecurityAuditService {
	return service.NewSecurityAuditService(events, audits, ids, digester, cfg.Security.Audit, logger)
}

func provideSessionService(sessions repository.SessionRepository, audit *service.SecurityAuditService, locker service.UserLocker, ids security.PublicIDCodec, cfg *config.Config, logger *slog.Logger) *service.SessionService {
	return service.NewSessionService(sessions, audit, locker, ids, cfg.Security.Session, logger)
}

func provideDeviceService(
	devices repository.DeviceRepository,
	users repository.UserRepository,
	audit *service.SecurityAuditService,
	parser clientinfo.Parser,
	email notify.EmailSender,
	async service.AsyncRunner,
	locker service.UserLocker,
	ids security.PublicIDCodec,
	digester security.Digester,
	cfg *config.Config,
	logger *slog.Logger,
) *service.DeviceService {
	return service.NewDeviceService(devices, users, audit, parser, email, async, locker, ids, digester, cfg.Security.Device, logger)
}

func provideTokenService(issuer service.TokenIssuer, credentials repository.RefreshCredentialRepository, digester security.Digester, cfg *config.Config) *service.TokenService {
	return service.NewTokenService(issuer, credentials, digester, cfg.Security.Token)
}

func provideAuthService(
	users repository.UserRepository,
	memberships repository.MembershipRepository,
	hasher service.CredentialHasher,
	tokens *service.TokenService,
	sessions *service.SessionService,
	devices *service.DeviceService,
	audit *service.SecurityAuditService,
	publisher notify.Publisher,
	email notify.EmailSender,
	async service.AsyncRunner,
	ids security.PublicIDCodec,
	cfg *config.Config,
	logger *slog.Logger,
) *service.AuthService {
	return service.NewAuthService(service.AuthDeps{
		Users:       users,
		Memberships: memberships,
		Hasher:      hasher,
		Tokens:      tokens,
		Sessions:    sessions,
		Devices:     devices,
		Audit:       audit,
		Publisher:   publisher,
		Email:       email,
		Async:       async,
		IDs:         ids,
	}, cfg.Security.Lockout, logger)
}

func provideReadiness(db *gorm.DB, client redis.UniversalClient) *health.ProbeRunner {
	checkers := []health.Checker{
		health.CheckFunc{Name: "db", Fn: func(ctx context.Context) error { return database.Ping(ctx, db) }},
	}
	if client != nil {
		checkers = append(checkers, health.CheckFunc{Name: "redis", Fn: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
	}
	return health.NewProbeRunner(2*time.Second, 2*time.Second, checkers...)
}

func provideRouter(cfg *config.Config, auth *handler.AuthHandler, user *handler.UserHandler, jwtMgr *security.JWTManager, sessions *service.SessionService, readiness *health.ProbeRunner) http.Handler {
	return router.NewRouter(router.Dependencies{
		AuthHandler:       auth,
		UserHandler:       user,
		JWTManager:        jwtMgr,
		SessionGuard:      sessions,
		InactivityTimeout: cfg.Security.Session.InactivityTimeout,
		CORSOrigins:       cfg.CORSOrigins,
		AuthRateLimitRPM:  cfg.AuthRateLimitRPM,
		APIRateLimitRPM:   cfg.APIRateLimitRPM,
		Readiness:         readiness,
		EnableOTelHTTP:    cfg.OTELTracingEnabled || cfg.OTELMetricsEnabled,
	})
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
